package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralborta/pdf-microservice/constants"
	"github.com/ralborta/pdf-microservice/internal/common"
	"github.com/ralborta/pdf-microservice/internal/entity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := Open(context.Background(), Config{DSN: "sqlite://:memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { Close(db, logger) })
	return db
}

func TestRunRepositoryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewRunRepository(db, nil)
	ctx := context.Background()

	res := entity.ExtractionResult{
		Status:    constants.StatusOK,
		Records:   make([]entity.ProductRecord, 30),
		Profile:   constants.ProfileGeneric,
		Method:    constants.MethodLLMChunked,
		Quality:   constants.QualityMedium,
		Chunks:    &entity.ChunkStats{Total: 4, Succeeded: 3, Failed: 1},
		Cost:      0.025,
		RequestID: "req-1",
		Elapsed:   1500 * time.Millisecond,
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := entity.NewRun("lista.txt", res, now)
	require.NoError(t, repo.Insert(ctx, run))

	got, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run, got)
	assert.Equal(t, 30, got.RecordCount)
	assert.Equal(t, 3, got.ChunksSucceeded)
	assert.Equal(t, int64(1500), got.ElapsedMS)
}

func TestRunRepositoryGetMissing(t *testing.T) {
	repo := NewRunRepository(openTestDB(t), nil)
	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRunRepositoryListRecent(t *testing.T) {
	repo := NewRunRepository(openTestDB(t), nil)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := entity.NewRun("f.txt", entity.ExtractionResult{Status: constants.StatusFailed}, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, repo.Insert(ctx, run))
	}

	runs, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, base.Add(2*time.Hour), runs[0].CreatedAt)
	assert.Equal(t, base.Add(time.Hour), runs[1].CreatedAt)
}

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: DialectPostgres}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))
	lite := &DB{Dialect: DialectSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, HealthCheck(context.Background(), db, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil))))
}
