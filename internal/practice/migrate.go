package practice

import (
	"context"
	"fmt"
)

func AutoMigrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS lessons (
          id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
          title       TEXT NOT NULL DEFAULT '',
          video_url   TEXT NOT NULL DEFAULT '',
          status      TEXT NOT NULL DEFAULT 'pending',
          audio_url   TEXT NOT NULL DEFAULT '',
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
          updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return fmt.Errorf("migrate lessons: %w", err)
	}

	if _, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS lesson_segments (
          id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          lesson_id   TEXT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
          label       TEXT NOT NULL,
          start_time  DOUBLE PRECISION NOT NULL,
          end_time    DOUBLE PRECISION NOT NULL,
          position    INT NOT NULL,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return fmt.Errorf("migrate lesson_segments: %w", err)
	}

	if _, err := db.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_lesson_segments_lesson_position
      ON lesson_segments(lesson_id, position)
    `); err != nil {
		return fmt.Errorf("migrate lesson_segments index: %w", err)
	}

	return nil
}
