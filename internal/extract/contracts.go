// Package extract holds the deterministic, zero-cost extractors of the cascade.
package extract

import "github.com/ralborta/pdf-microservice/internal/entity"

// Extractor turns raw text into raw records. Implementations never fail:
// lines they cannot read are skipped.
type Extractor interface {
	Extract(text string) []entity.RawRecord
}

// Func adapts a plain function to Extractor.
type Func func(text string) []entity.RawRecord

func (f Func) Extract(text string) []entity.RawRecord { return f(text) }
