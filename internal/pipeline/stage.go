package pipeline

import (
	"context"

	"github.com/ralborta/pdf-microservice/constants"
	"github.com/ralborta/pdf-microservice/internal/entity"
	"github.com/ralborta/pdf-microservice/internal/extract"
	"github.com/ralborta/pdf-microservice/internal/remote"
)

// StageOutput is what one cascade step hands back before normalization.
type StageOutput struct {
	Records []entity.RawRecord
	Quality constants.Quality
	Chunks  *entity.ChunkStats
	// Conclusive marks an empty answer as trustworthy ("the document has no products")
	// rather than a miss that should fall through.
	Conclusive bool
}

// Stage is one step of the cascade. Stages are ordered by cost.
type Stage interface {
	Method() constants.Method
	Run(ctx context.Context, text, filename string, profile constants.Profile) (StageOutput, error)
}

// PatternStage wraps a deterministic extractor. It never returns an error.
type PatternStage struct {
	method    constants.Method
	extractor extract.Extractor
}

func NewPatternStage(method constants.Method, ex extract.Extractor) *PatternStage {
	return &PatternStage{method: method, extractor: ex}
}

func (s *PatternStage) Method() constants.Method { return s.method }

func (s *PatternStage) Run(_ context.Context, text, _ string, _ constants.Profile) (StageOutput, error) {
	return StageOutput{Records: s.extractor.Extract(text), Quality: constants.QualityHigh}, nil
}

// RemoteStage runs the chunked model-assisted extractor.
type RemoteStage struct {
	extractor *remote.Extractor
}

func NewRemoteStage(ex *remote.Extractor) *RemoteStage {
	return &RemoteStage{extractor: ex}
}

func (s *RemoteStage) Method() constants.Method { return constants.MethodLLMChunked }

func (s *RemoteStage) Run(ctx context.Context, text, filename string, profile constants.Profile) (StageOutput, error) {
	res, err := s.extractor.Extract(ctx, text, filename, profile)
	stats := res.Stats
	out := StageOutput{Records: res.Records, Quality: res.Quality, Chunks: &stats}
	if err != nil {
		return out, err
	}
	out.Conclusive = true
	return out, nil
}
