package llm

// BuildProductRecordArraySchema returns the JSON-Schema (draft 2020-12 subset) for a chunk
// answer. It is sent to the model as the output constraint and reused locally to validate.
func BuildProductRecordArraySchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"code":        map[string]any{"type": "string", "minLength": 1},
			"description": map[string]any{"type": "string"},
			"price":       map[string]any{"type": []string{"number", "string"}},
			"stock":       map[string]any{"type": []string{"integer", "number", "string"}},
			"unit":        map[string]any{"type": "string"},
			"category":    map[string]any{"type": "string"},
			"application": map[string]any{"type": "string"},
			"content":     map[string]any{"type": "string"},
		},
		"required": []string{"code", "description", "price", "stock", "unit"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"records": map[string]any{"type": "array", "items": item},
		},
		"required": []string{"records"},
	}
}
