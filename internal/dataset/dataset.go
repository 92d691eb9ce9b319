// Package dataset loads a coordinate dataset from any supported file type.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"geo-match/internal/excel"
	"geo-match/internal/loader"
	"geo-match/internal/models"
)

// Load picks a loader from the file extension. sheet is only used for
// workbooks; an empty sheet selects the first one.
func Load(path, sheet string, opts ...loader.Option) (*models.Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return loader.LoadCSVFile(path, opts...)
	case ".json":
		return loader.LoadJSONFile(path, opts...)
	case ".xlsx":
		return excel.LoadFile(path, sheet, opts...)
	default:
		return nil, fmt.Errorf("load %s: %w: %q", path, loader.ErrUnsupportedFormat, ext)
	}
}
