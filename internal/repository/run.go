package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ralborta/pdf-microservice/internal/common"
	"github.com/ralborta/pdf-microservice/internal/entity"
)

type RunRepository interface {
	Insert(ctx context.Context, run entity.Run) error
	Get(ctx context.Context, id uuid.UUID) (entity.Run, error)
	ListRecent(ctx context.Context, limit int) ([]entity.Run, error)
}

type runRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewRunRepository(db *DB, logger *slog.Logger) RunRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &runRepo{db: db, logger: logger}
}

const runColumns = `id, request_id, filename, profile, method, status, quality, record_count,
	chunks_total, chunks_succeeded, cost, elapsed_ms, error_message, created_at`

func (r *runRepo) Insert(ctx context.Context, run entity.Run) error {
	q := r.db.rebind(`INSERT INTO extraction_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.SQL.ExecContext(ctx, q,
		run.ID.String(), run.RequestID, run.Filename, run.Profile, run.Method, run.Status, run.Quality,
		run.RecordCount, run.ChunksTotal, run.ChunksSucceeded, run.Cost, run.ElapsedMS, run.ErrorMessage,
		run.CreatedAt.UnixNano(),
	)
	if err != nil {
		r.logger.Error("failed to insert extraction run", "run_id", run.ID, "request_id", run.RequestID, "error", err)
		return common.NewAppError(common.CodeStorage, "insert extraction run", errors.Join(common.ErrDatabase, err))
	}
	return nil
}

func (r *runRepo) Get(ctx context.Context, id uuid.UUID) (entity.Run, error) {
	q := r.db.rebind(`SELECT ` + runColumns + ` FROM extraction_runs WHERE id = ?`)
	run, err := scanRun(r.db.SQL.QueryRowContext(ctx, q, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Run{}, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get extraction run", "run_id", id, "error", err)
		return entity.Run{}, common.NewAppError(common.CodeStorage, "get extraction run", errors.Join(common.ErrDatabase, err))
	}
	return run, nil
}

// ListRecent returns the newest runs first.
func (r *runRepo) ListRecent(ctx context.Context, limit int) ([]entity.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.rebind(`SELECT ` + runColumns + ` FROM extraction_runs ORDER BY created_at DESC LIMIT ?`)
	rows, err := r.db.SQL.QueryContext(ctx, q, limit)
	if err != nil {
		r.logger.Error("failed to list extraction runs", "error", err)
		return nil, common.NewAppError(common.CodeStorage, "list extraction runs", errors.Join(common.ErrDatabase, err))
	}
	defer rows.Close()

	var out []entity.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, common.NewAppError(common.CodeStorage, "scan extraction run", errors.Join(common.ErrDatabase, err))
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (entity.Run, error) {
	var (
		run     entity.Run
		id      string
		created int64
	)
	err := s.Scan(&id, &run.RequestID, &run.Filename, &run.Profile, &run.Method, &run.Status, &run.Quality,
		&run.RecordCount, &run.ChunksTotal, &run.ChunksSucceeded, &run.Cost, &run.ElapsedMS, &run.ErrorMessage,
		&created)
	if err != nil {
		return entity.Run{}, err
	}
	run.ID, err = uuid.Parse(id)
	if err != nil {
		return entity.Run{}, err
	}
	run.CreatedAt = time.Unix(0, created).UTC()
	return run, nil
}
