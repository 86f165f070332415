package normalize

import (
	"math"
	"strconv"
	"strings"
)

// ParsePriceString reads a price written with either separator convention.
// The last separator followed by one or two digits is the decimal point; every
// other separator groups thousands. "66.791" -> 66791, "1.234,56" -> 1234.56.
// ok is false when no finite number can be read.
func ParsePriceString(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	clean := strings.Trim(b.String(), ".,")
	if clean == "" {
		return 0, false
	}

	neg := strings.HasPrefix(clean, "-")
	clean = strings.ReplaceAll(clean, "-", "")

	intPart, frac := clean, ""
	if i := strings.LastIndexAny(clean, ".,"); i >= 0 {
		tail := clean[i+1:]
		if len(tail) >= 1 && len(tail) <= 2 {
			intPart, frac = clean[:i], tail
		}
	}
	intPart = strings.NewReplacer(".", "", ",", "").Replace(intPart)
	if intPart == "" {
		intPart = "0"
	}
	num := intPart
	if frac != "" {
		num += "." + frac
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}

// ParsePrice coerces any raw price shape into a non-negative amount. Unreadable input maps to 0.
func ParsePrice(v any) float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		parsed, ok := ParsePriceString(t)
		if !ok {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return math.Round(f*100) / 100
}
