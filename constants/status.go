package constants

// Status is the top-level outcome of an extraction. Callers branch on it instead of on errors.
type Status string

// Stable values (stored as-is in the run log).
const (
	StatusOK           Status = "ok"            // records found, or a well-formed empty document
	StatusFailed       Status = "failed"        // every stage came back empty and no remote chunk succeeded
	StatusInvalidInput Status = "invalid_input" // rejected before any stage ran
)

// Quality grades how much of the input a stage actually covered.
type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

// Method names the cascade stage that produced a result.
type Method string

const (
	MethodGeneric     Method = "generic_pattern"
	MethodLLMChunked  Method = "llm_chunked"
	MethodSpreadsheet Method = "spreadsheet_rows"
	MethodNone        Method = "none"
)

// PatternMethod is the method tag for a profile's own pattern extractor.
func PatternMethod(p Profile) Method {
	return Method("pattern_" + string(p))
}
