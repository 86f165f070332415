package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralborta/pdf-microservice/internal/llm"
)

func chatResponse(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	return b
}

func newTestClient(t *testing.T, h http.HandlerFunc, lenient bool) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:          "test-key",
		BaseURL:         srv.URL,
		LenientOptional: lenient,
		MaxRetries:      2,
		RetryBackoff:    time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExtractChunkValid(t *testing.T) {
	var gotAuth, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "json_object", body["response_format"].(map[string]any)["type"])
		_, _ = w.Write(chatResponse(`{"records":[{"code":"12-45","description":"Clio","price":"66.791","stock":100,"unit":"UN"}]}`))
	}, false)

	resp, err := c.ExtractChunk(context.Background(), llm.ChunkRequest{ChunkText: "12-45 Clio $ 66.791", ChunkTotal: 1})
	require.NoError(t, err)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "12-45", resp.Records[0].Code)
	assert.Equal(t, "66.791", resp.Records[0].Price)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "/chat/completions", gotPath)
}

func TestExtractChunkLenientRepair(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(chatResponse("```json\n{\"productos\":[{\"codigo\":\"A1\",\"descripcion\":\"Filtro\",\"precio\":1200,\"marca\":\"X\"},{\"descripcion\":\"sin codigo\"}]}\n```"))
	}, true)

	resp, err := c.ExtractChunk(context.Background(), llm.ChunkRequest{ChunkText: "A1 Filtro", ChunkTotal: 1})
	require.NoError(t, err)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "A1", resp.Records[0].Code)
	assert.Equal(t, 1200.0, resp.Records[0].Price)
	assert.Equal(t, "UN", resp.Records[0].Unit)
}

func TestExtractChunkStrictRejects(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(chatResponse(`{"productos":[]}`))
	}, false)

	_, err := c.ExtractChunk(context.Background(), llm.ChunkRequest{ChunkText: "x", ChunkTotal: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
}

func TestExtractChunkRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write(chatResponse(`{"records":[]}`))
	}, false)

	resp, err := c.ExtractChunk(context.Background(), llm.ChunkRequest{ChunkText: "x", ChunkTotal: 1})
	require.NoError(t, err)
	assert.Empty(t, resp.Records)
	assert.Equal(t, int32(2), calls.Load())
}

func TestExtractChunkDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}, false)

	_, err := c.ExtractChunk(context.Background(), llm.ChunkRequest{ChunkText: "x", ChunkTotal: 1})
	require.Error(t, err)
	var httpErr *llm.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(` {"a":1} `))
}
