package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"geo-match/internal/models"
)

// ManualInput prompts for latitude/longitude pairs until "done" or EOF.
// Invalid entries are reported to out and recorded in Dataset.Skipped.
// Pass the same *bufio.Reader to consecutive calls so buffered lines are kept.
func ManualInput(in io.Reader, out io.Writer, label string) (*models.Dataset, error) {
	br, ok := in.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(in)
	}
	ds := &models.Dataset{Label: label, Points: models.CoordinateSet{}}

	read := func(prompt string) (string, bool, error) {
		fmt.Fprint(out, prompt)
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", false, err
		}
		if err != nil && line == "" {
			return "", false, nil
		}
		return strings.TrimSpace(line), true, nil
	}

	fmt.Fprintln(out, "Enter coordinates manually (type 'done' to finish):")
	for entry := 1; ; entry++ {
		latStr, ok, err := read("Latitude (or 'done'): ")
		if err != nil {
			return nil, fmt.Errorf("manual input: %w", err)
		}
		if !ok || strings.EqualFold(latStr, "done") {
			break
		}
		lonStr, ok, err := read("Longitude: ")
		if err != nil {
			return nil, fmt.Errorf("manual input: %w", err)
		}
		if !ok {
			break
		}

		lat, err1 := ParseCoord(latStr)
		lon, err2 := ParseCoord(lonStr)
		if err1 != nil || err2 != nil {
			fmt.Fprintln(out, "Invalid input. Try again.")
			ds.Skipped = append(ds.Skipped, models.RowError{
				Row:    entry,
				Reason: fmt.Sprintf("invalid coordinate %q, %q", latStr, lonStr),
			})
			continue
		}
		ds.Points = append(ds.Points, models.Coordinate{Lat: lat, Lon: lon})
	}

	return ds, nil
}
