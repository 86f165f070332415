package extraction

import (
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/ralborta/pdf-microservice/internal/common"
	"github.com/ralborta/pdf-microservice/internal/llm/openai"
	"github.com/ralborta/pdf-microservice/internal/pipeline"
	"github.com/ralborta/pdf-microservice/internal/remote"
)

// NewProcessor builds the cascade from configuration. The remote stage is only
// wired when an API key is configured.
func NewProcessor(cfg *common.Config, logger *slog.Logger) *pipeline.Processor {
	if logger == nil {
		logger = slog.Default()
	}
	x := cfg.Extraction
	pcfg := pipeline.Config{
		MinTextLength:   x.MinTextLength,
		MaxTextLength:   x.MaxTextLength,
		GenericMinPrice: x.GenericMinPrice,
		FreeProducts:    x.FreeProducts,
		CostPerProduct:  x.CostPerProduct,
	}
	if cfg.LLM.APIKey == "" {
		logger.Info("remote stage disabled: no api key configured")
		return pipeline.NewProcessor(logger, pcfg)
	}

	client := openai.NewClient(openai.Config{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.Temperature,
		Timeout:         cfg.LLM.Timeout,
		LenientOptional: cfg.LLM.Lenient,
		MaxRetries:      2,
	}, logger)

	var limiter remote.Limiter
	if x.RatePerSecond > 0 {
		burst := x.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(x.RatePerSecond), burst)
	}
	rx := remote.NewExtractor(client, limiter, remote.Config{
		ChunkSize:    x.ChunkSize,
		Concurrency:  x.Concurrency,
		ChunkTimeout: x.ChunkTimeout,
	}, logger)

	logger.Info("remote stage enabled", "model", cfg.LLM.Model, "chunk_size", x.ChunkSize,
		"concurrency", x.Concurrency, "rate_per_second", x.RatePerSecond)
	return pipeline.NewProcessor(logger, pcfg, pipeline.WithRemoteExtractor(rx))
}
