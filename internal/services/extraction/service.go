// Package extraction is the application layer over the cascade: it adapts inputs
// from every surface and records each top-level run.
package extraction

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ralborta/pdf-microservice/constants"
	"github.com/ralborta/pdf-microservice/internal/common"
	"github.com/ralborta/pdf-microservice/internal/entity"
	"github.com/ralborta/pdf-microservice/internal/ingest"
	"github.com/ralborta/pdf-microservice/internal/pipeline"
	"github.com/ralborta/pdf-microservice/internal/repository"
	"github.com/ralborta/pdf-microservice/internal/sheet"
)

// Service handles extraction requests.
type Service struct {
	proc   *pipeline.Processor
	runs   repository.RunRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the processor. runs may be nil, which disables the run log.
func NewService(proc *pipeline.Processor, runs repository.RunRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{proc: proc, runs: runs, logger: logger, now: time.Now}
}

// TextRequest is plain text plus an optional filename hint.
type TextRequest struct {
	Text     string
	Filename string
}

// WorkbookRequest is an XLSX payload.
type WorkbookRequest struct {
	Body     io.Reader
	Filename string
	Sheet    string
}

func (s *Service) ExtractText(ctx context.Context, req TextRequest) entity.ExtractionResult {
	ctx, _ = common.EnsureRequestID(ctx)
	res := s.proc.Extract(ctx, pipeline.Input{Text: req.Text, Filename: req.Filename})
	s.record(ctx, req.Filename, res)
	return res
}

func (s *Service) ExtractWorkbook(ctx context.Context, req WorkbookRequest) entity.ExtractionResult {
	ctx, rid := common.EnsureRequestID(ctx)
	rows, err := sheet.ReadRows(req.Body, req.Sheet)
	if err != nil {
		s.logger.Warn("extraction.workbook.unreadable", "req_id", rid, "filename", req.Filename, "error", err)
		res := invalidResult(rid, err)
		s.record(ctx, req.Filename, res)
		return res
	}
	res := s.proc.ExtractRows(ctx, pipeline.RowsInput{Rows: rows, Filename: req.Filename})
	s.record(ctx, req.Filename, res)
	return res
}

// ExtractDocument handles a file loaded by the ingester.
func (s *Service) ExtractDocument(ctx context.Context, doc ingest.Document) entity.ExtractionResult {
	ctx, _ = common.EnsureRequestID(ctx)
	var res entity.ExtractionResult
	if doc.IsSpreadsheet() {
		res = s.proc.ExtractRows(ctx, pipeline.RowsInput{Rows: doc.Rows, Filename: doc.Filename})
	} else {
		res = s.proc.Extract(ctx, pipeline.Input{Text: doc.Text, Filename: doc.Filename})
	}
	s.record(ctx, doc.Filename, res)
	return res
}

// GetRun looks a run up by its id.
func (s *Service) GetRun(ctx context.Context, id string) (entity.Run, error) {
	runID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		s.logger.Error("invalid run id format", "run_id", id, "error", err)
		return entity.Run{}, common.NewAppError(common.CodeInput, "run id must be a UUID", common.ErrInvalidInput)
	}
	if s.runs == nil {
		return entity.Run{}, common.NewAppError(common.CodeStorage, "run log is disabled", common.ErrNotFound)
	}
	return s.runs.Get(ctx, runID)
}

// ListRuns returns the newest runs first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]entity.Run, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListRecent(ctx, limit)
}

// record stores the run. A storage failure is logged and never changes the result.
func (s *Service) record(ctx context.Context, filename string, res entity.ExtractionResult) {
	if s.runs == nil {
		return
	}
	run := entity.NewRun(filename, res, s.now())
	if err := s.runs.Insert(ctx, run); err != nil {
		s.logger.Error("extraction.run.record_failed", "req_id", res.RequestID, "error", err)
		return
	}
	s.logger.Debug("extraction.run.recorded", "req_id", res.RequestID, "run_id", run.ID)
}

func invalidResult(rid string, err error) entity.ExtractionResult {
	return entity.ExtractionResult{
		Status:    constants.StatusInvalidInput,
		Records:   []entity.ProductRecord{},
		Profile:   constants.ProfileGeneric,
		Method:    constants.MethodNone,
		Quality:   constants.QualityLow,
		Error:     err.Error(),
		RequestID: rid,
	}
}
