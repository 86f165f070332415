package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestAppErrorUnwrap(t *testing.T) {
	err := NewAppError(CodeExtraction, "no stage produced records", ErrExtractionFailed)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Equal(t, "EXTRACTION_ERROR: no stage produced records: extraction failed", err.Error())
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"invalid input", fmt.Errorf("%w: text too short", ErrInvalidInput), codes.InvalidArgument},
		{"schema mismatch", fmt.Errorf("%w: /records/0", ErrValidation), codes.InvalidArgument},
		{"missing run", NewAppError(CodeStorage, "get run", ErrNotFound), codes.NotFound},
		{"storage", NewAppError(CodeStorage, "insert run", ErrDatabase), codes.Internal},
		{"already a status", InvalidArgumentErrorf("bad %s", "id"), codes.InvalidArgument},
		{"encode", InternalErrorf("encode response: %v", errors.New("boom")), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status.Code(ToStatus(tt.err)))
		})
	}
	assert.NoError(t, ToStatus(nil))
}

func TestValidateAndReturnError(t *testing.T) {
	require.NoError(t, ValidateAndReturnError(NewValidator().Field("id", "abc", Required)))

	err := ValidateAndReturnError(NewValidator().Field("id", " ", Required).Field("format", "xml", OneOf("json", "yaml")))
	require.Error(t, err)
	st := status.Convert(err)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Contains(t, st.Message(), "'id': is required")
	assert.Contains(t, st.Message(), "'format'")
}
