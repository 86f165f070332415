package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BuildSystemPrompt tells the model what a product row looks like in these price lists.
func BuildSystemPrompt(profile string) string {
	parts := []string{
		"You extract product rows from Spanish-language price lists and catalogs.",
		"Return ONLY JSON that matches the JSON Schema provided, shaped as {\"records\": [...]}.",
		"Each record needs code, description, price, stock and unit.",
		"Copy prices exactly as printed (for example \"66.791\" or \"1.234,56\"); do not convert them.",
		"If a row says SIN STOCK or AGOTADO, set stock to 0 and price to 0 when no price is shown.",
		"If stock is not shown, use 100. If unit is not shown, use \"UN\".",
		"Skip headers, page numbers, totals and legal text. Never invent rows.",
	}
	if p := strings.TrimSpace(profile); p != "" && p != "generic" {
		parts = append(parts, "Document profile: "+p+".")
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt carries the filename hint, chunk position and chunk text.
func BuildUserPrompt(req ChunkRequest) string {
	var b strings.Builder
	b.WriteString("Filename: ")
	b.WriteString(req.FilenameHint)
	fmt.Fprintf(&b, "\nChunk %d of %d\n\nText:\n", req.ChunkIndex+1, req.ChunkTotal)
	b.WriteString(req.ChunkText)
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// BuildMessages assembles the chat messages for one chunk request.
func BuildMessages(req ChunkRequest) []map[string]any {
	schema := req.OutputSchema
	if schema == nil {
		schema = BuildProductRecordArraySchema()
	}
	return []map[string]any{
		{"role": "system", "content": BuildSystemPrompt(req.Profile)},
		{"role": "user", "content": BuildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
		{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
	}
}
