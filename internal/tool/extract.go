// Package tool exposes the extraction cascade as MCP tools.
package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ralborta/pdf-microservice/constants"
	"github.com/ralborta/pdf-microservice/internal/entity"
	"github.com/ralborta/pdf-microservice/internal/services/extraction"
)

// MetadataExtractPriceList describes the extract_price_list tool.
var MetadataExtractPriceList = &mcp.Tool{
	Name: "extract_price_list",
	Description: "Extract product records (code, description, price, stock, unit, category) from the plain " +
		"text of a Spanish-language supplier price list. Deterministic pattern extractors run first; " +
		"a model-assisted fallback runs only when configured and when they find nothing. " +
		"The result always carries a status: ok (records may still be empty), failed, or invalid_input. " +
		"Detected profiles: " + strings.Join(constants.ProfilesAsStringSlice(), ", ") + ".",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"text"},
		"properties": map[string]interface{}{
			"text": map[string]interface{}{
				"type":        "string",
				"description": "Plain text of the price list, one product per line where possible",
			},
			"filename": map[string]interface{}{
				"type":        "string",
				"description": "Optional original filename. Used as a hint when detecting the catalog profile.",
			},
		},
	},
}

// InputExtractPriceList is the input for the extract_price_list tool.
type InputExtractPriceList struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

// OutputExtractPriceList is the output for the extract_price_list tool.
type OutputExtractPriceList struct {
	Status    string                 `json:"status"`
	Records   []entity.ProductRecord `json:"records"`
	Profile   string                 `json:"profile"`
	Method    string                 `json:"method"`
	Quality   string                 `json:"quality"`
	Error     string                 `json:"error,omitempty"`
	Cost      float64                `json:"cost"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ExtractPriceList returns the tool handler bound to svc.
func ExtractPriceList(svc *extraction.Service) mcp.ToolHandlerFor[InputExtractPriceList, OutputExtractPriceList] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input InputExtractPriceList) (*mcp.CallToolResult, OutputExtractPriceList, error) {
		if strings.TrimSpace(input.Text) == "" {
			return nil, OutputExtractPriceList{}, fmt.Errorf("text is required")
		}
		res := svc.ExtractText(ctx, extraction.TextRequest{Text: input.Text, Filename: input.Filename})
		if res.Status == constants.StatusInvalidInput {
			return nil, OutputExtractPriceList{}, fmt.Errorf("invalid input: %s", res.Error)
		}
		return nil, toOutput(res), nil
	}
}

func toOutput(res entity.ExtractionResult) OutputExtractPriceList {
	return OutputExtractPriceList{
		Status:    string(res.Status),
		Records:   res.Records,
		Profile:   string(res.Profile),
		Method:    string(res.Method),
		Quality:   string(res.Quality),
		Error:     res.Error,
		Cost:      res.Cost,
		RequestID: res.RequestID,
	}
}

// NewServer registers every tool on a new MCP server.
func NewServer(svc *extraction.Service, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "pricelist", Version: version}, nil)
	mcp.AddTool(server, MetadataExtractPriceList, ExtractPriceList(svc))
	return server
}
