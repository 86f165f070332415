package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"

	"github.com/ralborta/pdf-microservice/constants"
)

var recordKeys = map[string]struct{}{
	"code": {}, "description": {}, "price": {}, "stock": {}, "unit": {},
	"category": {}, "application": {}, "content": {},
}

// synonyms maps keys models tend to emit (often in Spanish) onto the schema keys.
// Earlier entries win when several synonyms of the same key are present.
var synonyms = [][2]string{
	{"codigo", "code"},
	{"código", "code"},
	{"sku", "code"},
	{"descripcion", "description"},
	{"descripción", "description"},
	{"detalle", "description"},
	{"precio", "price"},
	{"cantidad", "stock"},
	{"existencia", "stock"},
	{"unidad", "unit"},
	{"categoria", "category"},
	{"categoría", "category"},
	{"aplicacion", "application"},
	{"aplicación", "application"},
	{"contenido", "content"},
}

// SanitizeRecords repairs a chunk answer so it can pass the strict schema:
//   - accepts a bare array or a "productos"/"products"/"items" wrapper
//   - renames known synonyms
//   - drops unknown keys and records without a code; numeric codes become strings
//   - fills missing stock/unit with the record defaults
func SanitizeRecords(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	items, dropped, err := decodeRecordList(raw)
	if err != nil {
		return nil, nil, err
	}

	cleaned := make([]map[string]any, 0, len(items))
	for i, m := range items {
		for _, syn := range synonyms {
			from, to := syn[0], syn[1]
			if v, ok := m[from]; ok {
				if _, exists := m[to]; !exists {
					m[to] = v
				}
				delete(m, from)
				dropped = append(dropped, fmt.Sprintf("[%d].%s->%s", i, from, to))
			}
		}
		for k := range maps.Clone(m) {
			if _, ok := recordKeys[k]; !ok {
				delete(m, k)
				dropped = append(dropped, fmt.Sprintf("[%d].%s(unknown)", i, k))
			}
		}
		for k, v := range m {
			switch t := v.(type) {
			case string:
				m[k] = strings.TrimSpace(t)
			case nil:
				delete(m, k)
			}
		}
		// Numeric codes ("code": 12345) are common; the schema wants a string.
		if n, ok := m["code"].(float64); ok {
			m["code"] = strconv.FormatFloat(n, 'f', -1, 64)
		}
		code, _ := m["code"].(string)
		if code == "" {
			dropped = append(dropped, fmt.Sprintf("[%d](no code)", i))
			continue
		}
		if _, ok := m["description"]; !ok {
			m["description"] = ""
		}
		if _, ok := m["price"]; !ok {
			m["price"] = 0
		}
		if _, ok := m["stock"]; !ok {
			m["stock"] = constants.DefaultStock
		}
		if _, ok := m["unit"]; !ok {
			m["unit"] = constants.DefaultUnit
		}
		cleaned = append(cleaned, m)
	}

	out, err := json.Marshal(map[string]any{"records": cleaned})
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

func decodeRecordList(raw []byte) ([]map[string]any, []string, error) {
	var arr []map[string]any
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, []string{"(bare array)"}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	for _, key := range []string{"records", "productos", "products", "items"} {
		body, ok := obj[key]
		if !ok {
			continue
		}
		var items []map[string]any
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, nil, fmt.Errorf("sanitize: decode %s: %w", key, err)
		}
		var dropped []string
		if key != "records" {
			dropped = append(dropped, key+"->records")
		}
		return items, dropped, nil
	}
	return nil, nil, fmt.Errorf("sanitize: no record list in response")
}
