package workbook

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/extrame/xls"
)

// readXLS reads a BIFF8 workbook. Cells are read as the text the file
// stores; rows are indexed from column A so positions match xlsx grids.
func readXLS(ctx context.Context, data []byte) (sheets []Sheet, err error) {
	// The BIFF parser indexes into record tables without bounds checks.
	defer func() {
		if p := recover(); p != nil {
			sheets, err = nil, fmt.Errorf("malformed xls: %v", p)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb == nil {
		return nil, errors.New("no Workbook stream")
	}

	n := wb.NumSheets()
	sheets = make([]Sheet, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		sheets = append(sheets, Sheet{Name: ws.Name, Grid: toGrid(xlsRows(ws))})
	}
	return sheets, nil
}

func xlsRows(ws *xls.WorkSheet) [][]string {
	if ws.MaxRow == 0 && ws.Row(0) == nil {
		return nil
	}
	rows := make([][]string, 0, int(ws.MaxRow)+1)
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := range cells {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	return rows
}
