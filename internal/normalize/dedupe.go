package normalize

import (
	"strings"

	"github.com/ralborta/pdf-microservice/internal/entity"
)

const keySep = "\x1f"

// Key is the dedupe identity of a record: code and trimmed description, case-insensitive.
func Key(r entity.ProductRecord) string {
	return strings.ToLower(r.Code) + keySep + strings.ToLower(strings.TrimSpace(r.Description))
}

// Dedupe keeps one record per Key. On a collision the higher price wins
// (ties keep the earlier record); output follows the order of first occurrence.
// Higher price is a heuristic for "more specific row", not a correctness guarantee.
func Dedupe(records []entity.ProductRecord) []entity.ProductRecord {
	if len(records) == 0 {
		return records
	}
	idx := make(map[string]int, len(records))
	out := make([]entity.ProductRecord, 0, len(records))
	for _, r := range records {
		k := Key(r)
		if i, ok := idx[k]; ok {
			if r.Price > out[i].Price {
				out[i] = r
			}
			continue
		}
		idx[k] = len(out)
		out = append(out, r)
	}
	return out
}
