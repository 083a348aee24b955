package practice

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// setupIntegrationDB starts a throwaway Postgres or skips the test.
func setupIntegrationDB(t *testing.T) *pgxpool.Pool {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("practice"),
		postgres.WithUsername("practice"),
		postgres.WithPassword("practice"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("Skipping integration test: cannot start postgres: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, AutoMigrate(ctx, pool))
	require.NoError(t, AutoMigrate(ctx, pool), "migrations are re-runnable")
	return pool
}

func TestIntegration_LessonLifecycle(t *testing.T) {
	pool := setupIntegrationDB(t)
	ctx := context.Background()

	srv := NewServer(pool, nil, Config{AudioDir: t.TempDir(), PublicBaseURL: testBaseURL}, nil)
	r := srv.Router()

	w := doJSON(t, r, "POST", "/lessons", map[string]string{"title": "Numbers", "videoUrl": "https://video/n"})
	require.Equal(t, http.StatusCreated, w.Code)
	lessonID := decodeBody(t, w)["id"].(string)

	w = doJSON(t, r, "PUT", "/lessons/"+lessonID+"/segments", map[string]any{
		"segments": []map[string]any{
			{"label": "two", "start_time": 2, "end_time": 3},
			{"label": "one", "start_time": 0.5, "end_time": 1.25},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	list, err := srv.segments.LoadSegments(ctx, lessonID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "one", list[0].Label)
	assert.Equal(t, 1, list[0].Position)
	assert.Equal(t, 1.25, list[0].EndTime)
	assert.Equal(t, "two", list[1].Label)
	assert.NotEmpty(t, list[0].ID)

	require.NoError(t, srv.attachAudio(ctx, lessonID, testBaseURL+"/audio/x.wav"))
	lesson, err := srv.lessons.Get(ctx, lessonID)
	require.NoError(t, err)
	assert.Equal(t, statusSubmitted, lesson.Status)

	require.NoError(t, srv.deleteAudio(ctx, lessonID))
	lesson, err = srv.lessons.Get(ctx, lessonID)
	require.NoError(t, err)
	assert.Equal(t, statusPending, lesson.Status)
	assert.Empty(t, lesson.AudioURL)

	assert.ErrorIs(t, srv.deleteAudio(ctx, "missing"), ErrLessonNotFound)
}
