package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Presentation is one row of session history.
type Presentation struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Label       string     `json:"label"`
	OpenedAt    time.Time  `json:"opened_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CloseReason string     `json:"close_reason,omitempty"`
}

func (s *SQLiteStore) RecordPresentation(ctx context.Context, p Presentation) error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("presentation id is required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO presentations(id, kind, label, opened_at) VALUES(?, ?, ?, ?)`,
		p.ID,
		p.Kind,
		p.Label,
		p.OpenedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record presentation %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLiteStore) FinishPresentation(ctx context.Context, id string, closedAt time.Time, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE presentations SET closed_at = ?, close_reason = ? WHERE id = ?`,
		closedAt.UTC().Format(time.RFC3339Nano),
		reason,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish presentation %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish presentation rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) ListPresentations(ctx context.Context, date string) ([]Presentation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, label, opened_at, closed_at, close_reason
		 FROM presentations
		 WHERE substr(opened_at, 1, 10) = ?
		 ORDER BY opened_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query presentations by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	list := make([]Presentation, 0, 16)
	for rows.Next() {
		var p Presentation
		var openedAt string
		var closedAt sql.NullString
		if err := rows.Scan(&p.ID, &p.Kind, &p.Label, &openedAt, &closedAt, &p.CloseReason); err != nil {
			return nil, fmt.Errorf("scan presentation: %w", err)
		}

		parsed, err := time.Parse(time.RFC3339Nano, openedAt)
		if err != nil {
			return nil, fmt.Errorf("parse opened_at: %w", err)
		}
		p.OpenedAt = parsed

		if closedAt.Valid {
			parsedEnd, err := time.Parse(time.RFC3339Nano, closedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse closed_at: %w", err)
			}
			p.ClosedAt = &parsedEnd
		}

		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate presentation rows: %w", err)
	}

	return list, nil
}

func (s *SQLiteStore) PresentationDates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT substr(opened_at, 1, 10) AS date FROM presentations ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}
