package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"geo-match/internal/models"
)

var (
	latKeys = []string{"lat", "latitude"}
	lonKeys = []string{"lon", "lng", "longitude"}
)

// LoadJSON reads a top-level array of objects carrying lat/latitude and
// lon/lng/longitude keys. Values may be numbers or numeric strings.
// JSON rows are numbered by array index.
func LoadJSON(r io.Reader, label string, opts ...Option) (*models.Dataset, error) {
	o := buildOptions(opts)

	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("load json %s: %w", label, err)
	}
	items, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("load json %s: %w", label, ErrNotArray)
	}

	ds := &models.Dataset{Label: label, Points: models.CoordinateSet{}}
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			if err := o.skip(ds, i, "not an object"); err != nil {
				return nil, err
			}
			continue
		}

		lat, latOK := lookup(obj, latKeys)
		lon, lonOK := lookup(obj, lonKeys)
		if !latOK || !lonOK {
			if err := o.skip(ds, i, "missing latitude/longitude key"); err != nil {
				return nil, err
			}
			continue
		}

		latV, err1 := toFloat(lat)
		lonV, err2 := toFloat(lon)
		if err1 != nil || err2 != nil {
			if err := o.skip(ds, i, fmt.Sprintf("invalid coordinate %v, %v", lat, lon)); err != nil {
				return nil, err
			}
			continue
		}

		ds.Points = append(ds.Points, models.Coordinate{Lat: latV, Lon: lonV})
	}
	return ds, nil
}

// LoadJSONFile loads a JSON file, labelling it with the file's base name.
func LoadJSONFile(path string, opts ...Option) (*models.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load json: %w", err)
	}
	defer f.Close()

	return LoadJSON(f, filepath.Base(path), opts...)
}

func lookup(obj map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case json.Number:
		return t.Float64()
	case string:
		return ParseCoord(t)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
