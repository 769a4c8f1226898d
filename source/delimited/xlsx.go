package delimited

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ErrSheetNotFound is returned when the configured sheet is not in the workbook.
var ErrSheetNotFound = errors.New("sheet not found")

// xlsxReader streams rows from one worksheet of an XLSX workbook.
type xlsxReader struct {
	file  *excelize.File
	rows  *excelize.Rows
	width int
	row   int
}

func openXLSX(path, sheet string) (*xlsxReader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}

	sheets := f.GetSheetList()
	if sheet == "" && len(sheets) > 0 {
		sheet = sheets[0]
	}
	found := false
	for _, s := range sheets {
		if s == sheet {
			found = true
			break
		}
	}
	if !found {
		f.Close()
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &xlsxReader{file: f, rows: rows}, nil
}

// setWidth pads short rows to n cells. Worksheets omit trailing empty cells.
func (x *xlsxReader) setWidth(n int) {
	x.width = n
}

func (x *xlsxReader) Position() string {
	return fmt.Sprintf("row %d", x.row)
}

// Read returns the next non-empty row or io.EOF.
func (x *xlsxReader) Read() ([]string, error) {
	for x.rows.Next() {
		x.row++
		cols, err := x.rows.Columns()
		if err != nil {
			return nil, &malformedError{line: x.row, err: err}
		}
		if len(cols) == 0 {
			continue
		}
		for len(cols) < x.width {
			cols = append(cols, "")
		}
		return cols, nil
	}
	if err := x.rows.Error(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (x *xlsxReader) Close() error {
	return errors.Join(x.rows.Close(), x.file.Close())
}
