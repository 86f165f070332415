// Package remote runs the model-assisted stage: it chunks the text, calls the
// structured-extraction collaborator per chunk and merges what comes back.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ralborta/pdf-microservice/constants"
	"github.com/ralborta/pdf-microservice/internal/common"
	"github.com/ralborta/pdf-microservice/internal/entity"
	"github.com/ralborta/pdf-microservice/internal/llm"
)

// Limiter throttles collaborator calls. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Config bounds the remote stage.
type Config struct {
	ChunkSize    int
	Concurrency  int
	ChunkTimeout time.Duration
}

// Result is the merged outcome of all chunks.
type Result struct {
	Records []entity.RawRecord
	Quality constants.Quality
	Stats   entity.ChunkStats
}

// Extractor orchestrates chunked calls to a llm.StructuredExtractor.
type Extractor struct {
	client  llm.StructuredExtractor
	limiter Limiter
	cfg     Config
	logger  *slog.Logger
}

// NewExtractor wires the collaborator. limiter may be nil.
func NewExtractor(client llm.StructuredExtractor, limiter Limiter, cfg Config, logger *slog.Logger) *Extractor {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.ChunkTimeout <= 0 {
		cfg.ChunkTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{client: client, limiter: limiter, cfg: cfg, logger: logger}
}

// Extract runs every chunk, concurrently up to the configured cap. A failed or timed-out
// chunk is logged and skipped. The error is non-nil only when no chunk succeeded.
func (e *Extractor) Extract(ctx context.Context, text, filenameHint string, profile constants.Profile) (Result, error) {
	chunks := Chunk(text, e.cfg.ChunkSize)
	total := len(chunks)
	if total == 0 {
		return Result{Quality: constants.QualityLow}, fmt.Errorf("%w: empty text", common.ErrNoChunksSucceeded)
	}
	rid := common.RequestIDFromContext(ctx)
	schema := llm.BuildProductRecordArraySchema()
	start := time.Now()

	perChunk := make([][]entity.RawRecord, total)
	var (
		mu        sync.Mutex
		succeeded int
		lastErr   error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			recs, err := e.runChunk(gctx, llm.ChunkRequest{
				ChunkText:    chunk,
				ChunkIndex:   i,
				ChunkTotal:   total,
				FilenameHint: filenameHint,
				Profile:      string(profile),
				OutputSchema: schema,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				lastErr = err
				e.logger.Warn("remote.chunk.failed", "req_id", rid, "chunk", i, "chunk_total", total, "error", err)
				return nil
			}
			succeeded++
			perChunk[i] = recs
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		Stats:   entity.ChunkStats{Total: total, Succeeded: succeeded, Failed: total - succeeded},
		Quality: quality(succeeded, total),
	}
	for _, recs := range perChunk {
		res.Records = append(res.Records, recs...)
	}

	e.logger.Info("remote.extract.done",
		"req_id", rid,
		"chunks", total,
		"succeeded", succeeded,
		"records", len(res.Records),
		"quality", res.Quality,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if succeeded == 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("%w: %w", common.ErrNoChunksSucceeded, ctxErr)
		}
		return res, fmt.Errorf("%w: %d of %d chunks failed: %w", common.ErrNoChunksSucceeded, total, total, lastErr)
	}
	return res, nil
}

func (e *Extractor) runChunk(ctx context.Context, req llm.ChunkRequest) ([]entity.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ChunkText) == "" {
		return nil, nil
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	cctx, cancel := context.WithTimeout(ctx, e.cfg.ChunkTimeout)
	defer cancel()

	resp, err := e.client.ExtractChunk(cctx, req)
	if err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("chunk %d timed out after %s: %w", req.ChunkIndex, e.cfg.ChunkTimeout, err)
		}
		return nil, err
	}
	return resp.Records, nil
}

// quality grades coverage: every chunk ok is high, more than half is medium.
func quality(succeeded, total int) constants.Quality {
	switch {
	case total > 0 && succeeded == total:
		return constants.QualityHigh
	case succeeded*2 > total:
		return constants.QualityMedium
	default:
		return constants.QualityLow
	}
}

// EstimateCost prices a billable extraction: the first free records cost nothing,
// every further record costs perRecord.
func EstimateCost(records, free int, perRecord float64) float64 {
	billable := records - free
	if billable <= 0 || perRecord <= 0 {
		return 0
	}
	return float64(billable) * perRecord
}
