package practice

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"practice-service/internal/segments"
)

// ErrLessonNotFound is returned by LessonStore writes on unknown ids.
var ErrLessonNotFound = errors.New("lesson not found")

// DB is the pool shared by the lesson and segment stores.
type DB = segments.DB

// LessonStore reads and updates lesson rows.
type LessonStore struct {
	db DB
}

func NewLessonStore(db DB) *LessonStore {
	return &LessonStore{db: db}
}

// Get returns pgx.ErrNoRows for unknown ids.
func (l *LessonStore) Get(ctx context.Context, id string) (*Lesson, error) {
	var ls Lesson
	err := l.db.QueryRow(ctx, `
		SELECT id, title, video_url, status, audio_url, created_at, updated_at
		FROM lessons
		WHERE id = $1
	`, id).Scan(&ls.ID, &ls.Title, &ls.VideoURL, &ls.Status, &ls.AudioURL, &ls.CreatedAt, &ls.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ls, nil
}

func (l *LessonStore) Create(ctx context.Context, title, videoURL string) (*Lesson, error) {
	ls := Lesson{Title: title, VideoURL: videoURL}
	err := l.db.QueryRow(ctx, `
		INSERT INTO lessons (title, video_url)
		VALUES ($1, $2)
		RETURNING id, status, created_at, updated_at
	`, title, videoURL).Scan(&ls.ID, &ls.Status, &ls.CreatedAt, &ls.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ls, nil
}

func (l *LessonStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lessons WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// AttachAudio stores audioURL and marks the lesson submitted.
func (l *LessonStore) AttachAudio(ctx context.Context, id, audioURL string) error {
	tag, err := l.db.Exec(ctx, `
		UPDATE lessons
		SET audio_url = $2, status = $3, updated_at = now()
		WHERE id = $1
	`, id, audioURL, statusSubmitted)
	if err != nil {
		return fmt.Errorf("attach audio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLessonNotFound
	}
	return nil
}

// ClearAudio resets the lesson to pending and returns the previous audio url.
func (l *LessonStore) ClearAudio(ctx context.Context, id string) (string, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var prev string
	err = tx.QueryRow(ctx, `SELECT audio_url FROM lessons WHERE id = $1 FOR UPDATE`, id).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrLessonNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lock lesson: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE lessons
		SET audio_url = '', status = $2, updated_at = now()
		WHERE id = $1
	`, id, statusPending); err != nil {
		return "", fmt.Errorf("clear audio: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return prev, nil
}
