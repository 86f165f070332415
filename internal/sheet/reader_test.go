package sheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ralborta/pdf-microservice/internal/common"
)

func workbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Codigo", "Descripcion", "Precio"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"12-45", "12x45 Clio", 66791}))
	_, err := f.NewSheet("Otra")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Otra", "A1", &[]any{"x"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadRowsFirstSheet(t *testing.T) {
	rows, err := ReadRows(bytes.NewReader(workbook(t)), "")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Codigo", "Descripcion", "Precio"},
		{"12-45", "12x45 Clio", "66791"},
	}, rows)
}

func TestReadRowsNamedSheet(t *testing.T) {
	rows, err := ReadRows(bytes.NewReader(workbook(t)), "Otra")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x"}}, rows)

	_, err = ReadRows(bytes.NewReader(workbook(t)), "Missing")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestReadRowsNotAWorkbook(t *testing.T) {
	_, err := ReadRows(strings.NewReader("plain text"), "")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
