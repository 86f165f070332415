package extraction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ralborta/pdf-microservice/constants"
	"github.com/ralborta/pdf-microservice/internal/async"
	"github.com/ralborta/pdf-microservice/internal/entity"
	"github.com/ralborta/pdf-microservice/internal/export"
	"github.com/ralborta/pdf-microservice/internal/ingest"
)

// BatchOptions configures a directory run.
type BatchOptions struct {
	Root       string
	SkipHidden bool
	Workers    int
	Timeout    time.Duration // per file
	OutDir     string        // when set, one XLSX per successful file
}

// BatchFile is the outcome for one processed file.
type BatchFile struct {
	Path      string           `json:"path" yaml:"path"`
	RequestID string           `json:"request_id" yaml:"request_id"`
	Status    constants.Status `json:"status" yaml:"status"`
	Method    constants.Method `json:"method" yaml:"method"`
	Records   int              `json:"records" yaml:"records"`
	Cost      float64          `json:"cost" yaml:"cost"`
	Output    string           `json:"output,omitempty" yaml:"output,omitempty"`
	Error     string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// BatchReport aggregates a directory run.
type BatchReport struct {
	Stats     ingest.DirStats `json:"stats" yaml:"stats"`
	OK        int             `json:"ok" yaml:"ok"`
	Failed    int             `json:"failed" yaml:"failed"`
	Invalid   int             `json:"invalid_input" yaml:"invalid_input"`
	Records   int             `json:"records" yaml:"records"`
	Cost      float64         `json:"cost" yaml:"cost"`
	Files     []BatchFile     `json:"files" yaml:"files"`
	ElapsedMS int64           `json:"elapsed_ms" yaml:"elapsed_ms"`
}

func (r *BatchReport) add(f BatchFile) {
	switch f.Status {
	case constants.StatusOK:
		r.OK++
	case constants.StatusInvalidInput:
		r.Invalid++
	default:
		r.Failed++
	}
	r.Records += f.Records
	r.Cost += f.Cost
	r.Files = append(r.Files, f)
}

// RunBatch extracts every allowed file under opts.Root on a worker queue.
func (s *Service) RunBatch(ctx context.Context, ing *ingest.FSIngestor, opts BatchOptions) (BatchReport, error) {
	start := time.Now()
	if opts.OutDir != "" {
		if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
			return BatchReport{}, fmt.Errorf("create output dir: %w", err)
		}
	}

	var (
		mu     sync.Mutex
		report BatchReport
	)
	q := async.NewProcessorQueue(func(ctx context.Context, job async.Job) error {
		f := s.process(ctx, job.Doc, opts.OutDir)
		mu.Lock()
		report.add(f)
		mu.Unlock()
		if f.Error != "" && f.Status == constants.StatusOK {
			return fmt.Errorf("%s", f.Error)
		}
		return nil
	}, s.logger, async.WithWorkers(opts.Workers), async.WithProcessTimeout(opts.Timeout))

	_, stats, walkErr := ing.IngestDirectory(ctx, opts.Root, opts.SkipHidden, func(ctx context.Context, doc ingest.Document) error {
		return q.Enqueue(ctx, async.Job{Doc: doc})
	})

	// drain even after a walk error so finished files are reported
	shutdownErr := q.Shutdown(context.WithoutCancel(ctx))

	mu.Lock()
	defer mu.Unlock()
	report.Stats = stats
	report.ElapsedMS = time.Since(start).Milliseconds()
	s.logger.Info("extraction.batch.done", "root", opts.Root, "ok", report.OK, "failed", report.Failed,
		"invalid_input", report.Invalid, "records", report.Records, "elapsed_ms", report.ElapsedMS)
	if walkErr != nil {
		return report, walkErr
	}
	return report, shutdownErr
}

// WatchOptions configures a watch run.
type WatchOptions struct {
	Roots      []string
	SkipHidden bool
	Debounce   time.Duration
	OutDir     string
}

// Watch extracts files as they appear under the roots until ctx is done.
func (s *Service) Watch(ctx context.Context, ing *ingest.FSIngestor, opts WatchOptions, onFile func(BatchFile)) error {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       opts.Roots,
		AllowedExts: ing.AllowedExts,
		SkipHidden:  opts.SkipHidden,
		InitialScan: true,
		Debounce:    opts.Debounce,
	}, s.logger)
	if err != nil {
		return err
	}
	for {
		select {
		case path, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			doc, err := ing.Load(path)
			if err != nil {
				s.logger.Warn("extraction.watch.load_failed", "path", path, "error", err)
				continue
			}
			f := s.process(ctx, doc, opts.OutDir)
			if onFile != nil {
				onFile(f)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("extraction.watch.error", "error", err)
		}
	}
}

func (s *Service) process(ctx context.Context, doc ingest.Document, outDir string) BatchFile {
	res := s.ExtractDocument(ctx, doc)
	f := BatchFile{
		Path:      doc.SourcePath,
		RequestID: res.RequestID,
		Status:    res.Status,
		Method:    res.Method,
		Records:   len(res.Records),
		Cost:      res.Cost,
		Error:     res.Error,
	}
	if outDir == "" || !res.OK() {
		return f
	}
	out, err := s.writeWorkbook(outDir, doc.Filename, res.Records)
	if err != nil {
		f.Error = err.Error()
		return f
	}
	f.Output = out
	return f
}

func (s *Service) writeWorkbook(outDir, filename string, records []entity.ProductRecord) (string, error) {
	data, err := export.WriteProductsXLSX(records, s.logger)
	if err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	out := filepath.Join(outDir, base+".productos.xlsx")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	return out, nil
}
