// CLAUDE:SUMMARY Reads spreadsheet sources (xlsx via excelize, legacy xls via extrame/xls, csv) into ordered named grids.
// Package workbook reads spreadsheet files into named grids of cell values.
//
// Supported formats:
//   - .xlsx: Office Open XML workbooks, read with excelize using raw cell
//     values so numbers are not re-formatted by the cell's display style
//   - .xls: legacy BIFF8 workbooks, read with extrame/xls
//   - .csv: a single sheet named after the file
//
// Usage:
//
//	r := workbook.New(workbook.Config{})
//	wb, err := r.ReadFile(ctx, "/data/uploads/taxonomy.xlsx")
//	fmt.Println(wb.Names())
package workbook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/merceaemil/taxonomy-navigator/horosafe"
	"github.com/merceaemil/taxonomy-navigator/sheet"
)

// Reader turns source bytes into a Workbook.
type Reader struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Reader with the given configuration.
func New(cfg Config) *Reader {
	cfg.defaults()
	return &Reader{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Detect is the package-level Detect.
func (r *Reader) Detect(name string) (Format, error) {
	return Detect(name)
}

// Detect returns the source format based on file extension.
func Detect(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// IsSource reports whether name has a spreadsheet extension.
func IsSource(name string) bool {
	_, err := Detect(name)
	return err == nil
}

// ReadFile opens path and reads it.
func (r *Reader) ReadFile(ctx context.Context, path string) (*Workbook, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > r.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, info.Size(), r.cfg.MaxFileSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return r.Read(ctx, filepath.Base(path), f)
}

// Read parses src as the format implied by name.
func (r *Reader) Read(ctx context.Context, name string, src io.Reader) (*Workbook, error) {
	format, err := r.Detect(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := horosafe.LimitedReadAll(src, r.cfg.MaxFileSize)
	if err != nil {
		if errors.Is(err, horosafe.ErrTooLarge) {
			return nil, fmt.Errorf("%w: %s (max %d bytes)", ErrTooLarge, name, r.cfg.MaxFileSize)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	r.logger.Debug("reading workbook", "name", name, "format", format, "bytes", len(data))

	var sheets []Sheet
	switch format {
	case FormatXLSX:
		sheets, err = readXLSX(ctx, data)
	case FormatCSV:
		sheets, err = readCSV(name, data)
	case FormatXLS:
		sheets, err = readXLS(ctx, data)
	default:
		return nil, fmt.Errorf("%w: no reader for %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, name, err)
	}

	return &Workbook{Name: name, Format: format, Sheets: sheets}, nil
}

func readXLSX(ctx context.Context, data []byte) ([]Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	names := f.GetSheetList()
	sheets := make([]Sheet, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		sheets = append(sheets, Sheet{Name: name, Grid: toGrid(rows)})
	}
	return sheets, nil
}

// toGrid converts string rows into cell rows. Empty cells become nil so they
// read the same as cells past the end of a ragged row.
func toGrid(rows [][]string) sheet.Grid {
	g := make(sheet.Grid, len(rows))
	for i, row := range rows {
		cells := make(sheet.Row, len(row))
		for j, v := range row {
			if v != "" {
				cells[j] = v
			}
		}
		g[i] = cells
	}
	return g
}
