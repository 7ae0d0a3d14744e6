package workbook

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// WriteXLSX writes sheets as an xlsx workbook, in order. It is the inverse
// of Read for string and numeric cells and is used to produce fixtures and
// templates.
func WriteXLSX(w io.Writer, sheets []Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	const defaultSheet = "Sheet1"
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, s.Name); err != nil {
				return fmt.Errorf("rename sheet %q: %w", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("add sheet %q: %w", s.Name, err)
		}
		for r, row := range s.Grid {
			if len(row) == 0 {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			values := []any(row)
			if err := f.SetSheetRow(s.Name, cell, &values); err != nil {
				return fmt.Errorf("sheet %q row %d: %w", s.Name, r+1, err)
			}
		}
	}
	_, err := f.WriteTo(w)
	return err
}
