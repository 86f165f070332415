// Package pipeline runs the extraction cascade: profile pattern extractor, generic
// fallback, then the remote model stage, stopping at the first stage with records.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ralborta/pdf-microservice/constants"
	"github.com/ralborta/pdf-microservice/internal/common"
	"github.com/ralborta/pdf-microservice/internal/detect"
	"github.com/ralborta/pdf-microservice/internal/entity"
	"github.com/ralborta/pdf-microservice/internal/extract"
	"github.com/ralborta/pdf-microservice/internal/normalize"
	"github.com/ralborta/pdf-microservice/internal/remote"
	"github.com/ralborta/pdf-microservice/internal/textnorm"
)

// Counter is a request-scoped hook called once per stage attempt. The caller owns it.
type Counter interface {
	Inc(method constants.Method)
}

// Input is a plain-text document.
type Input struct {
	Text     string
	Filename string
	Counter  Counter
}

// RowsInput is a table already read from a workbook.
type RowsInput struct {
	Rows     [][]string
	Filename string
	Counter  Counter
}

// Config holds the cascade thresholds.
type Config struct {
	MinTextLength   int
	MaxTextLength   int
	GenericMinPrice float64
	FreeProducts    int
	CostPerProduct  float64
}

// Processor is stateless apart from its wiring and is safe for concurrent use.
type Processor struct {
	logger   *slog.Logger
	cfg      Config
	patterns func(constants.Profile) (extract.Extractor, bool)
	generic  extract.Extractor
	remote   Stage
}

type Option func(*Processor)

// WithProfileExtractors replaces the profile -> extractor lookup.
func WithProfileExtractors(f func(constants.Profile) (extract.Extractor, bool)) Option {
	return func(p *Processor) {
		if f != nil {
			p.patterns = f
		}
	}
}

// WithGeneric replaces the generic fallback extractor.
func WithGeneric(ex extract.Extractor) Option {
	return func(p *Processor) {
		if ex != nil {
			p.generic = ex
		}
	}
}

// WithRemote appends a remote stage to the cascade.
func WithRemote(s Stage) Option {
	return func(p *Processor) { p.remote = s }
}

// WithRemoteExtractor is WithRemote for the chunked model extractor.
func WithRemoteExtractor(ex *remote.Extractor) Option {
	return func(p *Processor) {
		if ex != nil {
			p.remote = NewRemoteStage(ex)
		}
	}
}

func NewProcessor(logger *slog.Logger, cfg Config, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = 50
	}
	if cfg.GenericMinPrice <= 0 {
		cfg.GenericMinPrice = extract.DefaultMinPrice
	}
	p := &Processor{
		logger:   logger,
		cfg:      cfg,
		patterns: extract.ForProfile,
		generic:  extract.NewGeneric(cfg.GenericMinPrice),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Stages returns the cascade for a profile, cheapest first.
func (p *Processor) Stages(profile constants.Profile) []Stage {
	var stages []Stage
	if ex, ok := p.patterns(profile); ok {
		stages = append(stages, NewPatternStage(constants.PatternMethod(profile), ex))
	}
	stages = append(stages, NewPatternStage(constants.MethodGeneric, p.generic))
	if p.remote != nil {
		stages = append(stages, p.remote)
	}
	return stages
}

// Extract runs the cascade. It always returns a result; Status tells success,
// failure and rejected input apart.
func (p *Processor) Extract(ctx context.Context, in Input) entity.ExtractionResult {
	start := time.Now()
	ctx, rid := common.EnsureRequestID(ctx)
	res := newResult(rid)

	if err := p.validate(in.Text); err != nil {
		p.logger.Warn("pipeline.extract.invalid_input", "req_id", rid, "filename", in.Filename, "error", err)
		res.Status = constants.StatusInvalidInput
		res.Error = err.Error()
		res.Elapsed = time.Since(start)
		return res
	}

	text := textnorm.Clean(in.Text)
	profile := detect.Detect(text, in.Filename)
	res.Profile = profile
	p.logger.Info("pipeline.extract.start", "req_id", rid, "filename", in.Filename, "profile", profile, "text_len", len(text))

	var lastErr error
	for _, st := range p.Stages(profile) {
		method := st.Method()
		res.Method = method
		if in.Counter != nil {
			in.Counter.Inc(method)
		}

		stageStart := time.Now()
		out, err := st.Run(ctx, text, in.Filename, profile)
		records := normalize.Dedupe(normalize.NormalizeAll(out.Records))
		res.Chunks = out.Chunks
		if err != nil {
			lastErr = err
			p.logger.Warn("pipeline.stage.failed", "req_id", rid, "method", method, "error", err,
				"elapsed_ms", time.Since(stageStart).Milliseconds())
			continue
		}
		if len(records) == 0 && !out.Conclusive {
			p.logger.Info("pipeline.stage.miss", "req_id", rid, "method", method,
				"elapsed_ms", time.Since(stageStart).Milliseconds())
			continue
		}

		res.Status = constants.StatusOK
		res.Records = records
		res.Quality = out.Quality
		if method == constants.MethodLLMChunked {
			res.Cost = remote.EstimateCost(len(records), p.cfg.FreeProducts, p.cfg.CostPerProduct)
		}
		res.Elapsed = time.Since(start)
		p.logger.Info("pipeline.stage.ok", "req_id", rid, "method", method, "records", len(records),
			"raw_records", len(out.Records), "quality", res.Quality, "elapsed_ms", res.Elapsed.Milliseconds())
		return res
	}

	if lastErr == nil {
		lastErr = common.ErrExtractionFailed
	}
	res.Status = constants.StatusFailed
	res.Error = common.NewAppError(common.CodeExtraction, "no stage produced records", lastErr).Error()
	res.Elapsed = time.Since(start)
	p.logger.Error("pipeline.extract.failed", "req_id", rid, "profile", profile, "last_method", res.Method,
		"error", lastErr, "elapsed_ms", res.Elapsed.Milliseconds())
	return res
}

// ExtractRows maps spreadsheet rows by column name first and falls back to the
// text cascade over the tab-joined rows when that finds nothing.
func (p *Processor) ExtractRows(ctx context.Context, in RowsInput) entity.ExtractionResult {
	start := time.Now()
	ctx, rid := common.EnsureRequestID(ctx)

	if len(in.Rows) == 0 {
		res := newResult(rid)
		res.Status = constants.StatusInvalidInput
		res.Error = common.NewAppError(common.CodeInput, "workbook has no rows", common.ErrInvalidInput).Error()
		return res
	}

	text := joinRows(in.Rows)
	if in.Counter != nil {
		in.Counter.Inc(constants.MethodSpreadsheet)
	}
	records := normalize.Dedupe(normalize.NormalizeAll(extract.Rows(in.Rows, p.cfg.GenericMinPrice)))
	if len(records) == 0 {
		p.logger.Info("pipeline.stage.miss", "req_id", rid, "method", constants.MethodSpreadsheet)
		return p.Extract(ctx, Input{Text: text, Filename: in.Filename, Counter: in.Counter})
	}

	res := newResult(rid)
	res.Status = constants.StatusOK
	res.Profile = detect.Detect(text, in.Filename)
	res.Method = constants.MethodSpreadsheet
	res.Quality = constants.QualityHigh
	res.Records = records
	res.Cost = remote.EstimateCost(len(records), p.cfg.FreeProducts, p.cfg.CostPerProduct)
	res.Elapsed = time.Since(start)
	p.logger.Info("pipeline.stage.ok", "req_id", rid, "method", res.Method, "records", len(records),
		"elapsed_ms", res.Elapsed.Milliseconds())
	return res
}

func (p *Processor) validate(text string) error {
	v := common.NewValidator().
		Field("text", text, common.Required, common.MinLength(p.cfg.MinTextLength), common.MaxLength(p.cfg.MaxTextLength))
	return v.Error()
}

func newResult(rid string) entity.ExtractionResult {
	return entity.ExtractionResult{
		Status:    constants.StatusFailed,
		Records:   []entity.ProductRecord{},
		Profile:   constants.ProfileGeneric,
		Method:    constants.MethodNone,
		Quality:   constants.QualityLow,
		RequestID: rid,
	}
}

func joinRows(rows [][]string) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	return b.String()
}
