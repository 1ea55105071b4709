package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/chunkgen/internal/platform/logger"
	"github.com/phrazzld/chunkgen/internal/store"
	"github.com/phrazzld/chunkgen/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var progressColumns = []string{"region", "center_x", "center_z", "radius", "position", "state", "updated_at"}

func setupMockStore(t *testing.T) (*ProgressStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	return NewProgressStore(db), mock
}

func sampleProgress(region string, offset int64) task.Progress {
	return task.Progress{
		Region:    region,
		CenterX:   -12,
		CenterZ:   40,
		Radius:    16,
		Offset:    offset,
		State:     task.StatePaused,
		UpdatedAt: time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC),
	}
}

func TestProgressStore_Save(t *testing.T) {
	t.Parallel()
	s, mock := setupMockStore(t)
	p := sampleProgress("world", 10)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO generation_progress")).
		WithArgs("world", int64(-12), int64(40), 16, int64(10), "paused", p.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Save(context.Background(), p))
}

func TestProgressStore_SaveRejectsEmptyRegion(t *testing.T) {
	t.Parallel()
	s, _ := setupMockStore(t)

	err := s.Save(context.Background(), task.Progress{})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestProgressStore_SaveCheckViolation(t *testing.T) {
	t.Parallel()
	s, mock := setupMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO generation_progress")).
		WillReturnError(&pgconn.PgError{Code: checkViolationCode, ConstraintName: "generation_progress_radius_check"})

	err := s.Save(context.Background(), sampleProgress("world", 1))
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	var storeErr *store.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "save", storeErr.Operation)
}

func TestProgressStore_Load(t *testing.T) {
	t.Parallel()
	s, mock := setupMockStore(t)
	want := sampleProgress("world", 10)

	mock.ExpectQuery(regexp.QuoteMeta("FROM generation_progress")).
		WithArgs("world").
		WillReturnRows(sqlmock.NewRows(progressColumns).
			AddRow("world", -12, 40, 16, 10, "paused", want.UpdatedAt))

	got, err := s.Load(context.Background(), "world")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestProgressStore_LoadNotFound(t *testing.T) {
	t.Parallel()
	s, mock := setupMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM generation_progress")).
		WithArgs("world").
		WillReturnRows(sqlmock.NewRows(progressColumns))

	_, err := s.Load(context.Background(), "world")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, err, store.ErrProgressNotFound)
}

func TestProgressStore_LoadSchemaMissing(t *testing.T) {
	t.Parallel()
	s, mock := setupMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM generation_progress")).
		WithArgs("world").
		WillReturnError(&pgconn.PgError{Code: undefinedTableCode})

	_, err := s.Load(context.Background(), "world")
	assert.ErrorIs(t, err, ErrSchemaMissing)
	assert.False(t, store.IsNotFoundError(err))
}

func TestProgressStore_Delete(t *testing.T) {
	t.Parallel()
	s, mock := setupMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM generation_progress")).
		WithArgs("world").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM generation_progress")).
		WithArgs("world").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Delete(context.Background(), "world"))
	require.NoError(t, s.Delete(context.Background(), "world"), "deleting a missing record is not an error")
}

func TestProgressStore_DeleteFailure(t *testing.T) {
	t.Parallel()
	s, mock := setupMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM generation_progress")).
		WithArgs("world").
		WillReturnError(sql.ErrConnDone)

	err := s.Delete(context.Background(), "world")
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestProgressStore_LoadAll(t *testing.T) {
	t.Parallel()
	s, mock := setupMockStore(t)
	updated := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY region")).
		WillReturnRows(sqlmock.NewRows(progressColumns).
			AddRow("world", 0, 0, 4, 12, "running", updated).
			AddRow("world_nether", 5, 5, 2, 3, "paused", updated))

	records, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "world", records[0].Region)
	assert.Equal(t, task.StateRunning, records[0].State)
	assert.Equal(t, int64(12), records[0].Offset)
	assert.Equal(t, "world_nether", records[1].Region)
	assert.Equal(t, task.StatePaused, records[1].State)
}

func TestProgressStore_LoadAllRowError(t *testing.T) {
	t.Parallel()
	s, mock := setupMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY region")).
		WillReturnRows(sqlmock.NewRows(progressColumns).
			AddRow("world", 0, 0, 4, 12, "running", time.Now()).
			RowError(0, errors.New("connection reset")))

	_, err := s.LoadAll(context.Background())
	assert.Error(t, err)
}

func TestMapError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, MapError(nil))
	assert.ErrorIs(t, MapError(sql.ErrNoRows), store.ErrNotFound)
	assert.ErrorIs(t, MapError(&pgconn.PgError{Code: notNullViolationCode, ColumnName: "state"}), store.ErrInvalidEntity)
	assert.ErrorIs(t, MapError(&pgconn.PgError{Code: undefinedTableCode}), ErrSchemaMissing)

	plain := errors.New("boom")
	assert.Same(t, plain, MapError(plain))

	assert.True(t, IsCheckConstraintViolation(&pgconn.PgError{Code: checkViolationCode}))
	assert.False(t, IsCheckConstraintViolation(plain))
}

func TestMigrate_UnknownCommand(t *testing.T) {
	t.Parallel()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = Migrate(context.Background(), db, "sideways", logger.DiscardLogger())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown migration command")
}

func TestMigrationsEmbedded(t *testing.T) {
	t.Parallel()

	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	data, err := migrationsFS.ReadFile("migrations/" + entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), "+goose Up")
	assert.Contains(t, string(data), "generation_progress")
}
