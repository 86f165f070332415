package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ralborta/pdf-microservice/internal/common"
	"github.com/ralborta/pdf-microservice/internal/llm"
)

// ExtractChunk implements llm.StructuredExtractor using chat/completions in JSON mode.
func (c *Client) ExtractChunk(ctx context.Context, req llm.ChunkRequest) (llm.ChunkResponse, error) {
	_, rid := common.EnsureRequestID(ctx)
	start := time.Now()
	log := c.logger.With("req_id", rid, "chunk", req.ChunkIndex, "chunk_total", req.ChunkTotal)

	log.Info("llm.extract.start",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.ChunkText),
		"filename", req.FilenameHint,
	)

	schema := req.OutputSchema
	if schema == nil {
		schema = llm.BuildProductRecordArraySchema()
		req.OutputSchema = schema
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages":        llm.BuildMessages(req),
	}

	raw, err := c.post(ctx, body)
	if err != nil {
		log.Error("llm.extract.http_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.ChunkResponse{}, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		log.Error("llm.extract.decode_error", "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.ChunkResponse{}, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		log.Error("llm.extract.no_choices", "elapsed_ms", time.Since(start).Milliseconds())
		return llm.ChunkResponse{}, fmt.Errorf("no choices in openai response")
	}
	content := []byte(stripCodeFence(cc.Choices[0].Message.Content))

	if err := llm.ValidateJSONAgainstSchema(schema, content); err != nil {
		if !c.cfg.LenientOptional {
			log.Error("llm.extract.schema_validation_failed", "error", err,
				"elapsed_ms", time.Since(start).Milliseconds())
			return llm.ChunkResponse{}, fmt.Errorf("schema validation failed: %w", err)
		}
		cleaned, dropped, sErr := llm.SanitizeRecords(content, log)
		if sErr != nil {
			log.Error("llm.extract.sanitize_failed", "error", sErr,
				"elapsed_ms", time.Since(start).Milliseconds())
			return llm.ChunkResponse{}, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			log.Error("llm.extract.schema_validation_failed", "error", vErr,
				"elapsed_ms", time.Since(start).Milliseconds())
			return llm.ChunkResponse{}, fmt.Errorf("schema validation failed: %w", vErr)
		}
		log.Warn("llm.extract.lenient_sanitize_applied", "dropped", len(dropped))
		content = cleaned
	}

	var out llm.ChunkResponse
	if err := json.Unmarshal(content, &out); err != nil {
		log.Error("llm.extract.unmarshal_failed", "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.ChunkResponse{}, fmt.Errorf("unmarshal records: %w", err)
	}

	log.Info("llm.extract.ok",
		"records", len(out.Records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// post sends the request, retrying rate limits and server errors with exponential backoff.
func (c *Client) post(ctx context.Context, body map[string]any) ([]byte, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	delay := c.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
		if err == nil {
			return raw, nil
		}
		var httpErr *llm.HTTPError
		if !errors.As(err, &httpErr) || !httpErr.Retryable() || attempt >= c.cfg.MaxRetries {
			return nil, fmt.Errorf("openai request: %w", err)
		}
		wait := delay
		if httpErr.RetryAfter > wait {
			wait = httpErr.RetryAfter
		}
		c.logger.Warn("llm.extract.retry", "attempt", attempt+1, "status", httpErr.Status, "wait_ms", wait.Milliseconds())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		delay *= 2
	}
}

// stripCodeFence removes a ```json fence some models wrap around JSON mode output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
