package entity

import (
	"time"

	"github.com/google/uuid"
)

// Run is one recorded extraction, kept for cost accounting and auditing.
type Run struct {
	ID              uuid.UUID `json:"id"`
	RequestID       string    `json:"request_id"`
	Filename        string    `json:"filename"`
	Profile         string    `json:"profile"`
	Method          string    `json:"method"`
	Status          string    `json:"status"`
	Quality         string    `json:"quality"`
	RecordCount     int       `json:"record_count"`
	ChunksTotal     int       `json:"chunks_total"`
	ChunksSucceeded int       `json:"chunks_succeeded"`
	Cost            float64   `json:"cost"`
	ElapsedMS       int64     `json:"elapsed_ms"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewRun builds a run log row from a finished extraction.
func NewRun(filename string, res ExtractionResult, now time.Time) Run {
	run := Run{
		ID:           uuid.New(),
		RequestID:    res.RequestID,
		Filename:     filename,
		Profile:      string(res.Profile),
		Method:       string(res.Method),
		Status:       string(res.Status),
		Quality:      string(res.Quality),
		RecordCount:  len(res.Records),
		Cost:         res.Cost,
		ElapsedMS:    res.Elapsed.Milliseconds(),
		ErrorMessage: res.Error,
		CreatedAt:    now.UTC(),
	}
	if res.Chunks != nil {
		run.ChunksTotal = res.Chunks.Total
		run.ChunksSucceeded = res.Chunks.Succeeded
	}
	return run
}
