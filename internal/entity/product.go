package entity

// ProductRecord is the canonical output unit. Only the normalizer builds these.
type ProductRecord struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Unit        string  `json:"unit"`
	Category    string  `json:"category"`
	Application string  `json:"application,omitempty"`
	Content     string  `json:"content,omitempty"`
}

// RawRecord is what an extractor produces before normalization.
// Price and Stock keep whatever shape the source had (string, float64, int or nil).
type RawRecord struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Price       any    `json:"price"`
	Stock       any    `json:"stock,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Category    string `json:"category,omitempty"`
	Application string `json:"application,omitempty"`
	Content     string `json:"content,omitempty"`

	// NoStock is set when the source carried an explicit out-of-stock marker.
	NoStock bool `json:"-"`
}
