package llm

import (
	"context"

	"github.com/ralborta/pdf-microservice/internal/entity"
)

// ChunkRequest is one slice of a document sent to the structured-extraction collaborator.
type ChunkRequest struct {
	ChunkText    string
	ChunkIndex   int // zero-based
	ChunkTotal   int
	FilenameHint string
	Profile      string
	OutputSchema map[string]any
}

// ChunkResponse is the schema-conformant answer for one chunk.
type ChunkResponse struct {
	Records []entity.RawRecord `json:"records"`
}

// StructuredExtractor is the capability the remote stage depends on. Any provider
// that honours the request/response shape can be plugged in.
type StructuredExtractor interface {
	ExtractChunk(ctx context.Context, req ChunkRequest) (ChunkResponse, error)
}

// ExtractorFunc adapts a function to StructuredExtractor.
type ExtractorFunc func(ctx context.Context, req ChunkRequest) (ChunkResponse, error)

func (f ExtractorFunc) ExtractChunk(ctx context.Context, req ChunkRequest) (ChunkResponse, error) {
	return f(ctx, req)
}
