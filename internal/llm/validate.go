package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ralborta/pdf-microservice/internal/common"
)

// compiled schemas keyed by their JSON text; every chunk of a document validates
// against the same record array schema.
var schemaCache sync.Map

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	if s, ok := schemaCache.Load(string(b)); ok {
		return s.(*jsonschema.Schema), nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("records.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("records.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	schemaCache.Store(string(b), schema)
	return schema, nil
}

// ValidateJSONAgainstSchema checks a chunk answer against a record array schema.
// Mismatches wrap common.ErrValidation and name the first offending location,
// e.g. "/records/3/code".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	schema, err := compileSchema(schemaMap)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: answer is not json: %w", common.ErrValidation, err)
	}
	if err := schema.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return fmt.Errorf("%w: %w", common.ErrValidation, err)
		}
		leaf := firstLeaf(ve)
		loc := leaf.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return fmt.Errorf("%w: records do not match schema at %s: %s", common.ErrValidation, loc, leaf.Message)
	}
	return nil
}

func firstLeaf(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}
