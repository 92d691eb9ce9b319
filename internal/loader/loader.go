// Package loader turns CSV, JSON and interactively typed coordinates into
// datasets for the matcher. Records that cannot be parsed are reported in
// Dataset.Skipped, or fail the load when Strict is set.
package loader

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"geo-match/internal/models"
)

var (
	ErrMissingHeader       = errors.New("missing header row")
	ErrNoCoordinateColumns = errors.New("no latitude/longitude columns found")
	ErrNotArray            = errors.New("document is not an array of objects")
	ErrUnsupportedFormat   = errors.New("unsupported file format")
)

type options struct {
	strict bool
}

// Option configures a loader.
type Option func(*options)

// Strict makes a loader fail with a *models.RowError on the first bad record.
func Strict() Option {
	return func(o *options) { o.strict = true }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// skip records a bad row, or returns it as an error in strict mode.
func (o options) skip(ds *models.Dataset, row int, reason string) error {
	if o.strict {
		return &models.RowError{Row: row, Reason: reason}
	}
	ds.Skipped = append(ds.Skipped, models.RowError{Row: row, Reason: reason})
	return nil
}

// ParseCoord parses a decimal degree value. A decimal comma is accepted.
// NaN and infinities are rejected.
func ParseCoord(val string) (float64, error) {
	val = strings.TrimSpace(strings.ReplaceAll(val, ",", "."))
	if val == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", val)
	}
	return v, nil
}

// DetectColumns finds the latitude column (first header containing "lat")
// and the longitude column (first header containing "lon" or "lng").
func DetectColumns(header []string) (latIdx, lonIdx int, err error) {
	latIdx, lonIdx = -1, -1
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if latIdx < 0 && strings.Contains(h, "lat") {
			latIdx = i
		}
		if lonIdx < 0 && (strings.Contains(h, "lon") || strings.Contains(h, "lng")) {
			lonIdx = i
		}
	}
	if latIdx < 0 || lonIdx < 0 {
		return -1, -1, ErrNoCoordinateColumns
	}
	return latIdx, lonIdx, nil
}

// FromRows builds a dataset from tabular rows whose first row is the header.
// Row numbers in RowError count the header as row 1.
func FromRows(rows [][]string, label string, opts ...Option) (*models.Dataset, error) {
	o := buildOptions(opts)
	if len(rows) == 0 {
		return nil, ErrMissingHeader
	}

	latIdx, lonIdx, err := DetectColumns(rows[0])
	if err != nil {
		return nil, err
	}
	need := max(latIdx, lonIdx) + 1

	ds := &models.Dataset{Label: label, Points: models.CoordinateSet{}}
	for i, row := range rows[1:] {
		rowNum := i + 2
		if len(row) < need {
			if err := o.skip(ds, rowNum, "missing coordinate column"); err != nil {
				return nil, err
			}
			continue
		}

		lat, err1 := ParseCoord(row[latIdx])
		lon, err2 := ParseCoord(row[lonIdx])
		if err1 != nil || err2 != nil {
			reason := fmt.Sprintf("invalid coordinate %q, %q", row[latIdx], row[lonIdx])
			if err := o.skip(ds, rowNum, reason); err != nil {
				return nil, err
			}
			continue
		}

		ds.Points = append(ds.Points, models.Coordinate{Lat: lat, Lon: lon})
	}
	return ds, nil
}
