package constants

import "strings"

// InputFormats holds the formats accepted by the extract surfaces.
var InputFormats = []string{"TEXT", "XLSX"}

// AllowedExtensions holds the default file extensions picked up by batch processing.
var AllowedExtensions = map[string]struct{}{
	"txt":  {},
	"text": {},
	"xlsx": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsSpreadsheetExt reports whether ext names a workbook handled by the row extractor.
func IsSpreadsheetExt(ext string) bool {
	return NormalizeExt(ext) == "xlsx"
}
