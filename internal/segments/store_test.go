package segments

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewPostgresStore(mock), mock
}

func TestPostgresStore_Load(t *testing.T) {
	store, mock := setupMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM lesson_segments").
		WithArgs("l1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "label", "start_time", "end_time", "position"}).
			AddRow("s1", "hello", 0.5, 1.5, 1).
			AddRow("s2", "world", 2.0, 3.25, 2))

	got, err := store.LoadSegments(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, []Segment{
		{ID: "s1", Label: "hello", StartTime: 0.5, EndTime: 1.5, Position: 1},
		{ID: "s2", Label: "world", StartTime: 2.0, EndTime: 3.25, Position: 2},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadEmpty(t *testing.T) {
	store, mock := setupMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM lesson_segments").
		WithArgs("l1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "label", "start_time", "end_time", "position"}))

	got, err := store.LoadSegments(context.Background(), "l1")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPostgresStore_SaveReplacesWholeList(t *testing.T) {
	store, mock := setupMockStore(t)
	defer mock.Close()

	list := []Segment{
		{ID: "local-1", Label: "a", StartTime: 0, EndTime: 1, Position: 1},
		{ID: "local-2", Label: "b", StartTime: 1, EndTime: 2, Position: 2},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM lesson_segments").
		WithArgs("l1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	for _, s := range list {
		mock.ExpectExec("INSERT INTO lesson_segments").
			WithArgs("l1", s.Label, s.StartTime, s.EndTime, s.Position).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectExec("UPDATE lessons SET updated_at").
		WithArgs("l1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveSegments(context.Background(), "l1", list))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRollsBackOnError(t *testing.T) {
	store, mock := setupMockStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM lesson_segments").
		WithArgs("l1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("INSERT INTO lesson_segments").
		WithArgs("l1", "a", 0.0, 1.0, 1).
		WillReturnError(errors.New("constraint violated"))
	mock.ExpectRollback()

	err := store.SaveSegments(context.Background(), "l1", []Segment{{Label: "a", EndTime: 1, Position: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "constraint violated")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizeIsStable(t *testing.T) {
	list := []Segment{
		{ID: "c", StartTime: 2},
		{ID: "a", StartTime: 1},
		{ID: "b", StartTime: 1},
	}
	Normalize(list)
	assert.Equal(t, []string{"a", "b", "c"}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, []int{1, 2, 3}, positions(list))
}

func TestValidateLabels(t *testing.T) {
	assert.NoError(t, ValidateLabels(nil))
	assert.NoError(t, ValidateLabels([]Segment{{ID: "a", Label: "x"}}))

	err := ValidateLabels([]Segment{{ID: "a", Label: "x"}, {ID: "b", Label: "  "}, {ID: "c"}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"b", "c"}, verr.SegmentIDs)
	assert.Equal(t, "2 segments have no label", verr.Message)
}
