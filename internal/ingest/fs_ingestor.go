package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ralborta/pdf-microservice/constants"
	"github.com/ralborta/pdf-microservice/internal/common"
	"github.com/ralborta/pdf-microservice/internal/sheet"
)

// FSIngestor reads from the local filesystem.
type FSIngestor struct {
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> constants.AllowedExtensions
	MaxBytes    int64               // 0 -> no limit
	logger      *slog.Logger
}

func NewFSIngestor(logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{logger: logger}
}

// Load reads one file. Workbooks come back as rows, everything else as text.
func (i *FSIngestor) Load(path string) (Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Document{}, fmt.Errorf("abs path: %w", err)
	}
	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext, i.AllowedExts) {
		return Document{}, common.NewAppError(common.CodeInput,
			fmt.Sprintf("unsupported or missing extension: %q", ext), common.ErrInvalidInput)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		i.logger.Error("ingest.read.failed", "path", abs, "error", err)
		return Document{}, fmt.Errorf("read: %w", err)
	}
	if i.MaxBytes > 0 && int64(len(data)) > i.MaxBytes {
		return Document{}, common.NewAppError(common.CodeInput,
			fmt.Sprintf("file is %d bytes, limit is %d", len(data), i.MaxBytes), common.ErrInvalidInput)
	}
	sum := sha256.Sum256(data)

	doc := Document{
		SourcePath: abs,
		Filename:   filepath.Base(abs),
		Ext:        ext,
		HashHex:    hex.EncodeToString(sum[:]),
		Size:       int64(len(data)),
	}
	if doc.IsSpreadsheet() {
		doc.Rows, err = sheet.ReadRows(bytes.NewReader(data), "")
		if err != nil {
			return Document{}, err
		}
		return doc, nil
	}
	if !utf8.Valid(data) {
		return Document{}, common.NewAppError(common.CodeInput, "text file is not valid UTF-8", common.ErrInvalidInput)
	}
	doc.Text = string(data)
	return doc, nil
}

// IngestDirectory walks root, skips hidden entries if requested, loads every allowed
// file and hands it to emit. Files whose content was already emitted during this walk
// are counted as deduplicated and not emitted again.
func (i *FSIngestor) IngestDirectory(
	ctx context.Context,
	root string,
	skipHidden bool,
	emit func(context.Context, Document) error,
) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.NewAppError(common.CodeInput, "root_path is required", common.ErrInvalidInput)
	}

	var results []IngestionResult
	var stats DirStats
	seen := map[string]struct{}{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path), i.AllowedExts) {
			return nil
		}
		stats.Matched++

		doc, err := i.Load(path)
		if err != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		if _, dup := seen[doc.HashHex]; dup {
			results = append(results, IngestionResult{SourcePath: doc.SourcePath, HashHex: doc.HashHex, Deduplicated: true})
			stats.Deduplicated++
			return nil
		}
		seen[doc.HashHex] = struct{}{}

		if err := emit(ctx, doc); err != nil {
			results = append(results, IngestionResult{SourcePath: doc.SourcePath, HashHex: doc.HashHex, Err: err.Error()})
			stats.Failed++
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		}
		results = append(results, IngestionResult{SourcePath: doc.SourcePath, HashHex: doc.HashHex})
		stats.Succeeded++
		return nil
	})

	i.logger.Info("ingest.directory.done", "root", root,
		"scanned", stats.Scanned, "matched", stats.Matched, "succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated, "failed", stats.Failed)
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
