package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralborta/pdf-microservice/internal/common"
	"github.com/ralborta/pdf-microservice/internal/ingest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueueProcessesAllJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]string{}
	q := NewProcessorQueue(func(ctx context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen[job.Doc.Filename] = common.RequestIDFromContext(ctx)
		if job.Doc.Filename == "bad" {
			return errors.New("boom")
		}
		return nil
	}, quietLogger(), WithWorkers(3), WithQueueSize(2))

	for _, name := range []string{"a", "b", "bad", "c", "d"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{Doc: ingest.Document{Filename: name}, RequestID: "rid-" + name}))
	}
	require.NoError(t, q.Shutdown(context.Background()))

	assert.Len(t, seen, 5)
	assert.Equal(t, "rid-c", seen["c"])
}

func TestQueueRejectsAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(func(context.Context, Job) error { return nil }, quietLogger())
	require.NoError(t, q.Shutdown(context.Background()))
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{}), ErrQueueClosed)
	assert.NoError(t, q.Shutdown(context.Background()))
}

func TestQueueBackpressureHonorsContext(t *testing.T) {
	release := make(chan struct{})
	q := NewProcessorQueue(func(context.Context, Job) error {
		<-release
		return nil
	}, quietLogger(), WithWorkers(1), WithQueueSize(1))

	require.NoError(t, q.Enqueue(context.Background(), Job{})) // picked up by the worker
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{})) // fills the buffer

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(ctx, Job{}), context.DeadlineExceeded)

	close(release)
	require.NoError(t, q.Shutdown(context.Background()))
}

func TestQueueTimeoutAndPanic(t *testing.T) {
	var timedOut, after atomic.Bool
	q := NewProcessorQueue(func(ctx context.Context, job Job) error {
		if job.Doc.Filename == "panic" {
			panic("bad input")
		}
		<-ctx.Done()
		timedOut.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		after.Store(true)
		return ctx.Err()
	}, quietLogger(), WithWorkers(1), WithProcessTimeout(10*time.Millisecond))

	require.NoError(t, q.Enqueue(context.Background(), Job{Doc: ingest.Document{Filename: "panic"}}))
	require.NoError(t, q.Enqueue(context.Background(), Job{Doc: ingest.Document{Filename: "slow"}}))
	require.NoError(t, q.Shutdown(context.Background()))
	assert.True(t, after.Load())
	assert.True(t, timedOut.Load())
}
