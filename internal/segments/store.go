package segments

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store is the segment persistence collaborator. SaveSegments replaces the
// whole list of a lesson.
type Store interface {
	LoadSegments(ctx context.Context, lessonID string) ([]Segment, error)
	SaveSegments(ctx context.Context, lessonID string, list []Segment) error
}

// DB is implemented by *pgxpool.Pool and can be mocked for testing.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) LoadSegments(ctx context.Context, lessonID string) ([]Segment, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id::text, label, start_time, end_time, position
		FROM lesson_segments
		WHERE lesson_id = $1
		ORDER BY position ASC
	`, lessonID)
	if err != nil {
		return nil, fmt.Errorf("load segments: %w", err)
	}
	defer rows.Close()

	list := []Segment{}
	for rows.Next() {
		var s Segment
		if err := rows.Scan(&s.ID, &s.Label, &s.StartTime, &s.EndTime, &s.Position); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load segments: %w", err)
	}
	return list, nil
}

// SaveSegments deletes the stored list and inserts list in one transaction.
// Ids in list are ignored; the database assigns new ones.
func (p *PostgresStore) SaveSegments(ctx context.Context, lessonID string, list []Segment) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM lesson_segments WHERE lesson_id = $1`, lessonID); err != nil {
		return fmt.Errorf("clear segments: %w", err)
	}
	for _, s := range list {
		if _, err := tx.Exec(ctx, `
			INSERT INTO lesson_segments (lesson_id, label, start_time, end_time, position)
			VALUES ($1, $2, $3, $4, $5)
		`, lessonID, s.Label, s.StartTime, s.EndTime, s.Position); err != nil {
			return fmt.Errorf("insert segment %d: %w", s.Position, err)
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE lessons SET updated_at = now() WHERE id = $1`, lessonID); err != nil {
		return fmt.Errorf("touch lesson: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
