package storage

import (
	"context"
	"fmt"

	"github.com/sjawhar/panner/internal/content"
)

// AppendVerses stores units after the current tail in a single transaction.
// Invalid units are skipped; the number actually stored is returned.
func (s *SQLiteStore) AppendVerses(ctx context.Context, units []content.TextUnit) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append verses: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// seq stays dense from 1 so a rank maps straight onto the primary key.
	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM verses`).Scan(&next); err != nil {
		return 0, fmt.Errorf("query verse tail: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO verses(seq, text, reference, grp) VALUES(?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare verse insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	stored := 0
	for _, u := range units {
		if !u.Valid() {
			continue
		}
		next++
		if _, err := stmt.ExecContext(ctx, next, u.Text, u.Reference, u.Group); err != nil {
			return 0, fmt.Errorf("insert verse %q: %w", u.Reference, err)
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append verses: %w", err)
	}
	return stored, nil
}

func (s *SQLiteStore) CountVerses(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM verses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count verses: %w", err)
	}
	return n, nil
}

// ReadVerses returns up to limit units starting at the zero-based rank offset,
// in insertion order.
func (s *SQLiteStore) ReadVerses(ctx context.Context, offset, limit int64) ([]content.TextUnit, error) {
	if offset < 0 || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT text, reference, grp FROM verses WHERE seq > ? ORDER BY seq ASC LIMIT ?`,
		offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query verses at %d: %w", offset, err)
	}
	defer func() { _ = rows.Close() }()

	units := make([]content.TextUnit, 0, limit)
	for rows.Next() {
		var u content.TextUnit
		if err := rows.Scan(&u.Text, &u.Reference, &u.Group); err != nil {
			return nil, fmt.Errorf("scan verse: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verse rows: %w", err)
	}

	return units, nil
}

// ClearVerses removes every stored unit so a forced ingest starts from seq 1.
func (s *SQLiteStore) ClearVerses(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM verses`); err != nil {
		return fmt.Errorf("clear verses: %w", err)
	}
	return nil
}
