// Package async runs extraction jobs on a bounded pool of background workers.
package async

import (
	"context"
	"errors"
	"time"

	"github.com/ralborta/pdf-microservice/internal/ingest"
)

// ErrQueueClosed is returned by Enqueue after Shutdown started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one document waiting for extraction.
type Job struct {
	Doc         ingest.Document
	SubmittedAt time.Time
	RequestID   string
}

// Handler processes one job. Returned errors are logged, not retried.
type Handler func(ctx context.Context, job Job) error

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context) error
}
