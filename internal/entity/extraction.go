package entity

import (
	"time"

	"github.com/ralborta/pdf-microservice/constants"
)

// ChunkStats summarizes a chunked remote extraction.
type ChunkStats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ExtractionResult is always returned from the top-level entry point; Status tells success from failure.
type ExtractionResult struct {
	Status    constants.Status  `json:"status"`
	Records   []ProductRecord   `json:"records"`
	Profile   constants.Profile `json:"profile"`
	Method    constants.Method  `json:"method"`
	Quality   constants.Quality `json:"quality"`
	Error     string            `json:"error,omitempty"`
	Chunks    *ChunkStats       `json:"chunks,omitempty"`
	Cost      float64           `json:"cost"`
	RequestID string            `json:"request_id,omitempty"`
	Elapsed   time.Duration     `json:"elapsed_ns"`
}

// OK reports whether the extraction succeeded, including the legitimately empty case.
func (r ExtractionResult) OK() bool {
	return r.Status == constants.StatusOK
}
