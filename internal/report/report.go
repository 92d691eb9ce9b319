// Package report serializes match results as a JSON document carrying a
// generation timestamp and the labels of both input sets.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"geo-match/internal/models"
)

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Result is one serialized match. Non-finite distances are written as null.
type Result struct {
	From       Point    `json:"from"`
	To         Point    `json:"to"`
	DistanceKm *float64 `json:"distance_km"`
}

type Document struct {
	Timestamp string   `json:"timestamp"`
	SourceA   string   `json:"source_A"`
	SourceB   string   `json:"source_B"`
	Results   []Result `json:"results"`
}

// Build converts match records into a Document, keeping their order.
func Build(records []models.MatchRecord, labelA, labelB string, now time.Time) Document {
	doc := Document{
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000000") + "Z",
		SourceA:   labelA,
		SourceB:   labelB,
		Results:   make([]Result, 0, len(records)),
	}
	for _, r := range records {
		doc.Results = append(doc.Results, Result{
			From:       point(r.Source),
			To:         point(r.Matched),
			DistanceKm: finite(r.DistanceKm),
		})
	}
	return doc
}

func point(c models.Coordinate) Point {
	return Point{Lat: c.Lat, Lon: c.Lon}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Write encodes doc with 4-space indentation.
func Write(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func WriteFile(path string, doc Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := Write(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// TimestampedName returns dir/output_YYYYMMDD_HHMMSS.json.
func TimestampedName(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("output_%s.json", now.Format("20060102_150405")))
}
