package models

import "fmt"

// Coordinate is a point on the Earth's surface in decimal degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%g, %g)", c.Lat, c.Lon)
}

// CoordinateSet is an ordered list of coordinates. Duplicates are allowed.
type CoordinateSet []Coordinate

// MatchRecord pairs a source point with its nearest reference point.
// DistanceKm is the haversine distance rounded to 2 decimal places.
type MatchRecord struct {
	Source     Coordinate
	Matched    Coordinate
	DistanceKm float64
}

// RadiusMatch is one (source, candidate) pair found by a radius search.
type RadiusMatch struct {
	Source     Coordinate
	Matched    Coordinate
	DistanceKm float64
}

// RowError describes an input record a loader could not turn into a Coordinate.
type RowError struct {
	Row    int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// Dataset is what loaders hand to the matcher: the parsed points, a label
// identifying where they came from, and the records that were skipped.
type Dataset struct {
	Label   string
	Points  CoordinateSet
	Skipped []RowError
}
