// Package ingest discovers and loads price list files from the local filesystem.
package ingest

import (
	"path/filepath"
	"strings"

	"github.com/ralborta/pdf-microservice/constants"
)

// Document is one loaded input file. Exactly one of Text or Rows is set.
type Document struct {
	SourcePath string
	Filename   string
	Ext        string
	HashHex    string
	Size       int64
	Text       string
	Rows       [][]string
}

func (d Document) IsSpreadsheet() bool { return constants.IsSpreadsheetExt(d.Ext) }

// IngestionResult is the per-file discovery outcome.
type IngestionResult struct {
	SourcePath   string
	HashHex      string
	Deduplicated bool
	Err          string
}

// DirStats summarizes a directory walk.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// AllowedExt checks ext against exts, or constants.AllowedExtensions when exts is nil.
func AllowedExt(ext string, exts map[string]struct{}) bool {
	if exts == nil {
		exts = constants.AllowedExtensions
	}
	_, ok := exts[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// ParseExts turns "txt, .XLSX" style lists into an extension set. Empty input yields nil.
func ParseExts(list []string) map[string]struct{} {
	var out map[string]struct{}
	for _, e := range list {
		for _, part := range strings.Split(e, ",") {
			part = constants.NormalizeExt(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			if out == nil {
				out = map[string]struct{}{}
			}
			out[part] = struct{}{}
		}
	}
	return out
}
