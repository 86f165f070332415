// Package sheet reads tabular price lists out of XLSX workbooks.
package sheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ralborta/pdf-microservice/internal/common"
)

// ReadRows returns the rows of the named sheet, or of the first sheet when name is empty.
// Cells come back as formatted strings; trailing empty cells are dropped by excelize.
func ReadRows(r io.Reader, name string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, common.NewAppError(common.CodeInput, "open workbook", fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, common.NewAppError(common.CodeInput, "workbook has no sheets", common.ErrInvalidInput)
	}
	if name == "" {
		name = sheets[0]
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, common.NewAppError(common.CodeInput, fmt.Sprintf("read sheet %q", name), fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}
	return rows, nil
}
