package excel

import (
	"errors"
	"fmt"
	"path/filepath"

	"geo-match/internal/loader"
	"geo-match/internal/models"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

var ErrNoSheets = errors.New("workbook has no sheets")

var resultHeaders = []interface{}{
	"Source Lat", "Source Lon",
	"Matched Lat", "Matched Lon",
	"Distance (km)",
}

func OpenFile(filename string) (*excelize.File, error) {
	return excelize.OpenFile(filename)
}

// ReadSheet loads coordinates from a sheet whose first row is a header with
// lat/lon columns. An empty sheet name selects the first sheet.
func ReadSheet(f *excelize.File, sheetName string, opts ...loader.Option) (*models.Dataset, error) {
	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoSheets
		}
		sheetName = sheets[0]
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}

	label := sheetName
	if f.Path != "" {
		label = filepath.Base(f.Path) + ":" + sheetName
	}

	ds, err := loader.FromRows(rows, label, opts...)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}
	return ds, nil
}

// LoadFile opens a workbook and reads one sheet from it.
func LoadFile(path, sheetName string, opts ...loader.Option) (*models.Dataset, error) {
	f, err := OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load xlsx: %w", err)
	}
	defer f.Close()

	return ReadSheet(f, sheetName, opts...)
}

// WriteResult writes nearest-match records, one row per record.
func WriteResult(path string, data []models.MatchRecord, sheetName string) error {
	rows := make([][]interface{}, 0, len(data))
	for _, r := range data {
		rows = append(rows, []interface{}{
			r.Source.Lat, r.Source.Lon,
			r.Matched.Lat, r.Matched.Lon,
			r.DistanceKm,
		})
	}
	return writeRows(path, sheetName, rows)
}

// WriteRadiusResult writes every pair found by a radius search.
func WriteRadiusResult(path string, data []models.RadiusMatch, sheetName string) error {
	rows := make([][]interface{}, 0, len(data))
	for _, r := range data {
		rows = append(rows, []interface{}{
			r.Source.Lat, r.Source.Lon,
			r.Matched.Lat, r.Matched.Lon,
			r.DistanceKm,
		})
	}
	return writeRows(path, sheetName, rows)
}

func writeRows(path, sheetName string, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("write result: new sheet: %w", err)
	}

	// Stream writer keeps memory flat for large result sets.
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("write result: stream writer: %w", err)
	}

	if err := sw.SetRow("A1", resultHeaders); err != nil {
		return fmt.Errorf("write result: header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("write result: row %d: %w", i+2, err)
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write result: row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("write result: flush: %w", err)
	}

	f.SetActiveSheet(index)
	if sheetName != defaultSheet {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("write result: delete default sheet: %w", err)
		}
	}

	return f.SaveAs(path)
}
