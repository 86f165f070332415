package remote

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the per-request character budget of the collaborator.
const DefaultChunkSize = 12000

// Chunk splits text into sequential, non-overlapping pieces of at most max bytes.
// A piece ends at the last line break inside the window when there is one, so rows
// are not cut in half; concatenating the pieces gives back text exactly.
func Chunk(text string, max int) []string {
	if max <= 0 {
		max = DefaultChunkSize
	}
	var out []string
	for len(text) > max {
		cut := strings.LastIndexByte(text[:max], '\n') + 1
		if cut <= 0 {
			cut = max
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = max
			}
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
