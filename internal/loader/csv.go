package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"geo-match/internal/models"
)

// LoadCSV reads a CSV document with a header row.
func LoadCSV(r io.Reader, label string, opts ...Option) (*models.Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("load csv %s: %w", label, err)
	}

	ds, err := FromRows(rows, label, opts...)
	if err != nil {
		return nil, fmt.Errorf("load csv %s: %w", label, err)
	}
	return ds, nil
}

// LoadCSVFile loads a CSV file, labelling it with the file's base name.
func LoadCSVFile(path string, opts ...Option) (*models.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load csv: %w", err)
	}
	defer f.Close()

	return LoadCSV(f, filepath.Base(path), opts...)
}
