package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sjawhar/panner/internal/content"
)

// ReplaceMedia swaps the whole media index for refs. The delete and every
// insert share one transaction, so on any error the previous index survives.
func (s *SQLiteStore) ReplaceMedia(ctx context.Context, refs []content.MediaRef) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin media replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM media`); err != nil {
		return fmt.Errorf("clear media: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO media(rank, id, locator, mime, size) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare media insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, ref := range refs {
		if ref.ID == "" || ref.Locator == "" {
			return fmt.Errorf("insert media at %d: id and locator are required", i)
		}
		if _, err := stmt.ExecContext(ctx, i, ref.ID, ref.Locator, ref.MIME, ref.Size); err != nil {
			return fmt.Errorf("insert media %s: %w", ref.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit media replace: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountMedia(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count media: %w", err)
	}
	return n, nil
}

// ReadMediaAt returns the item at the zero-based rank. ok is false when the
// rank is past the end of the index.
func (s *SQLiteStore) ReadMediaAt(ctx context.Context, rank int64) (content.MediaRef, bool, error) {
	var ref content.MediaRef
	err := s.db.QueryRowContext(ctx,
		`SELECT id, locator, mime, size FROM media WHERE rank = ?`, rank,
	).Scan(&ref.ID, &ref.Locator, &ref.MIME, &ref.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return content.MediaRef{}, false, nil
	}
	if err != nil {
		return content.MediaRef{}, false, fmt.Errorf("read media at %d: %w", rank, err)
	}
	return ref, true, nil
}

// GetMedia looks an item up by its id.
func (s *SQLiteStore) GetMedia(ctx context.Context, id string) (content.MediaRef, error) {
	var ref content.MediaRef
	err := s.db.QueryRowContext(ctx,
		`SELECT id, locator, mime, size FROM media WHERE id = ?`, id,
	).Scan(&ref.ID, &ref.Locator, &ref.MIME, &ref.Size)
	if err != nil {
		return content.MediaRef{}, fmt.Errorf("get media %s: %w", id, err)
	}
	return ref, nil
}
