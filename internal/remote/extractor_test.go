package remote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ralborta/pdf-microservice/constants"
	"github.com/ralborta/pdf-microservice/internal/common"
	"github.com/ralborta/pdf-microservice/internal/entity"
	"github.com/ralborta/pdf-microservice/internal/llm"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChunk(t *testing.T) {
	text := strings.Repeat("12-45 linea de producto $ 1.000\n", 100)
	chunks := Chunk(text, 200)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, text, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 200)
		assert.True(t, strings.HasSuffix(c, "\n"))
	}
}

func TestChunkWithoutLineBreaks(t *testing.T) {
	text := strings.Repeat("ñ", 50) // two bytes each
	chunks := Chunk(text, 7)
	assert.Equal(t, text, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 7)
		assert.True(t, strings.HasPrefix(c, "ñ"))
	}
}

func TestChunkSmallAndEmpty(t *testing.T) {
	assert.Equal(t, []string{"abc"}, Chunk("abc", 100))
	assert.Empty(t, Chunk("", 100))
}

// fakeClient answers per chunk index.
type fakeClient struct {
	fail     map[int]bool
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
	delay    time.Duration
}

func (f *fakeClient) ExtractChunk(ctx context.Context, req llm.ChunkRequest) (llm.ChunkResponse, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return llm.ChunkResponse{}, ctx.Err()
		}
	}
	if f.fail[req.ChunkIndex] {
		return llm.ChunkResponse{}, errors.New("collaborator down")
	}
	return llm.ChunkResponse{Records: []entity.RawRecord{
		{Code: "C" + string(rune('A'+req.ChunkIndex)), Description: "chunk", Price: "1.000"},
	}}, nil
}

func fourChunks() string {
	return strings.Repeat(strings.Repeat("x", 99)+"\n", 40) // 4000 bytes -> 4 chunks of 1000
}

func TestExtractAllChunksSucceed(t *testing.T) {
	client := &fakeClient{delay: 5 * time.Millisecond}
	ex := NewExtractor(client, nil, Config{ChunkSize: 1000, Concurrency: 2}, quietLogger())

	res, err := ex.Extract(context.Background(), fourChunks(), "lista.pdf", constants.ProfileGeneric)
	require.NoError(t, err)
	assert.Equal(t, constants.QualityHigh, res.Quality)
	assert.Equal(t, entity.ChunkStats{Total: 4, Succeeded: 4, Failed: 0}, res.Stats)
	require.Len(t, res.Records, 4)
	assert.Equal(t, "CA", res.Records[0].Code)
	assert.Equal(t, "CD", res.Records[3].Code)
	assert.LessOrEqual(t, client.maxSeen.Load(), int32(2))
}

func TestExtractQualityGrades(t *testing.T) {
	tests := []struct {
		name string
		fail map[int]bool
		want constants.Quality
	}{
		{"one of four fails", map[int]bool{2: true}, constants.QualityMedium},
		{"half fail", map[int]bool{0: true, 3: true}, constants.QualityLow},
		{"three of four fail", map[int]bool{0: true, 1: true, 2: true}, constants.QualityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := NewExtractor(&fakeClient{fail: tt.fail}, nil, Config{ChunkSize: 1000}, quietLogger())
			res, err := ex.Extract(context.Background(), fourChunks(), "", constants.ProfileGeneric)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Quality)
			assert.Len(t, res.Records, 4-len(tt.fail))
		})
	}
}

func TestExtractAllChunksFail(t *testing.T) {
	fail := map[int]bool{0: true, 1: true, 2: true, 3: true}
	ex := NewExtractor(&fakeClient{fail: fail}, nil, Config{ChunkSize: 1000}, quietLogger())

	res, err := ex.Extract(context.Background(), fourChunks(), "", constants.ProfileGeneric)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNoChunksSucceeded)
	assert.Empty(t, res.Records)
	assert.Equal(t, 0, res.Stats.Succeeded)
	assert.Equal(t, constants.QualityLow, res.Quality)
}

func TestExtractChunkTimeoutIsChunkFailure(t *testing.T) {
	client := &fakeClient{delay: time.Second}
	ex := NewExtractor(client, nil, Config{ChunkSize: 1000, ChunkTimeout: 10 * time.Millisecond}, quietLogger())

	start := time.Now()
	_, err := ex.Extract(context.Background(), "short text", "", constants.ProfileGeneric)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNoChunksSucceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestExtractCancellation(t *testing.T) {
	client := &fakeClient{delay: time.Second}
	ex := NewExtractor(client, nil, Config{ChunkSize: 1000, Concurrency: 1}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	var err error
	go func() {
		defer wg.Done()
		_, err = ex.Extract(ctx, fourChunks(), "", constants.ProfileGeneric)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	wg.Wait()

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, client.calls.Load(), int32(4))
}

func TestExtractUsesLimiter(t *testing.T) {
	client := &fakeClient{}
	limiter := rate.NewLimiter(rate.Every(time.Millisecond), 1)
	ex := NewExtractor(client, limiter, Config{ChunkSize: 1000, Concurrency: 4}, quietLogger())

	res, err := ex.Extract(context.Background(), fourChunks(), "", constants.ProfileGeneric)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Stats.Succeeded)
}

func TestExtractEmptyText(t *testing.T) {
	ex := NewExtractor(&fakeClient{}, nil, Config{}, quietLogger())
	_, err := ex.Extract(context.Background(), "", "", constants.ProfileGeneric)
	assert.ErrorIs(t, err, common.ErrNoChunksSucceeded)
}

func TestEstimateCost(t *testing.T) {
	assert.Equal(t, 0.0, EstimateCost(25, 25, 0.005))
	assert.InDelta(t, 0.375, EstimateCost(100, 25, 0.005), 1e-9)
	assert.Equal(t, 0.0, EstimateCost(100, 25, 0))
}
