package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"geo-match/internal/config"
	"geo-match/internal/report"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readReport(t *testing.T, path string) report.Document {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc report.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestRunMatch(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "world_cities.csv")
	b := filepath.Join(dir, "iata_airports.csv")
	out := filepath.Join(dir, "out.json")
	xlsx := filepath.Join(dir, "out.xlsx")
	require.NoError(t, os.WriteFile(a, []byte("city,lat,lng\nNew York,40.7128,-74.0060\nLondon,51.5074,-0.1278\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("iata,latitude,longitude\nLHR,51.4700,-0.4543\nJFK,40.6413,-73.7781\n"), 0o644))

	err := runMatch(context.Background(), &config.Config{}, zerolog.Nop(),
		[]string{"-a", a, "-b", b, "-o", out, "-xlsx", xlsx, "-parallel"})
	require.NoError(t, err)

	doc := readReport(t, out)
	assert.Equal(t, "world_cities.csv", doc.SourceA)
	assert.Equal(t, "iata_airports.csv", doc.SourceB)
	require.Len(t, doc.Results, 2)
	assert.Equal(t, report.Point{Lat: 40.6413, Lon: -73.7781}, doc.Results[0].To)
	assert.Equal(t, report.Point{Lat: 51.47, Lon: -0.4543}, doc.Results[1].To)
	assert.FileExists(t, xlsx)
}

func TestRunMatch_Errors(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(a, []byte("lat,lon\n1,1\n"), 0o644))
	require.NoError(t, os.WriteFile(empty, []byte("lat,lon\n"), 0o644))

	cfg := &config.Config{}
	assert.Error(t, runMatch(context.Background(), cfg, zerolog.Nop(), []string{"-a", a}))
	assert.ErrorIs(t, runMatch(context.Background(), cfg, zerolog.Nop(),
		[]string{"-a", a, "-b", filepath.Join(dir, "nope.csv")}), os.ErrNotExist)
	assert.ErrorContains(t, runMatch(context.Background(), cfg, zerolog.Nop(),
		[]string{"-a", a, "-b", empty, "-o", filepath.Join(dir, "o.json")}), "candidate set is empty")
}

func TestRunMatch_NonFiniteRowsSkipped(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	out := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(a, []byte("lat,lon\nnan,1\n0,0\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("lat,lon\n0,1\nInf,0\n"), 0o644))

	err := runMatch(context.Background(), &config.Config{}, zerolog.Nop(), []string{"-a", a, "-b", b, "-o", out})
	require.NoError(t, err)

	doc := readReport(t, out)
	require.Len(t, doc.Results, 1)
	assert.Equal(t, report.Point{Lat: 0, Lon: 0}, doc.Results[0].From)
	assert.Equal(t, report.Point{Lat: 0, Lon: 1}, doc.Results[0].To)
}

func TestRunManual(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "manual.json")
	in := strings.NewReader("0\n0\ndone\n0\n1\n1\n0\ndone\n")
	var prompts bytes.Buffer

	err := runManual(context.Background(), &config.Config{}, zerolog.Nop(), []string{"-o", out}, in, &prompts)
	require.NoError(t, err)

	doc := readReport(t, out)
	assert.Equal(t, "Manual_Input_A", doc.SourceA)
	assert.Equal(t, "Manual_Input_B", doc.SourceB)
	require.Len(t, doc.Results, 1)
	assert.Equal(t, report.Point{Lat: 0, Lon: 1}, doc.Results[0].To)
	assert.Equal(t, 111.19, *doc.Results[0].DistanceKm)
	assert.Contains(t, prompts.String(), "SECOND dataset")
}

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "results")
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(a, []byte(`[{"lat": 1, "lon": 1}]`), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("lat,lon\n2,2\n"), 0o644))

	err := runBatch(context.Background(), &config.Config{}, zerolog.Nop(),
		[]string{"-dir", outDir, a + ":" + b, a + ":" + filepath.Join(dir, "missing.csv"), "nocolon"})
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(outDir, "output_*_a_b.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Len(t, readReport(t, matches[0]).Results, 1)
}

func TestSplitPair(t *testing.T) {
	dir := t.TempDir()
	colon := filepath.Join(dir, "run:1.csv")
	plain := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(colon, []byte("lat,lon\n1,1\n"), 0o644))
	require.NoError(t, os.WriteFile(plain, []byte("lat,lon\n2,2\n"), 0o644))

	a, b, ok := splitPair(colon + ":" + plain)
	require.True(t, ok)
	assert.Equal(t, colon, a)
	assert.Equal(t, plain, b)

	a, b, ok = splitPair(plain + ":" + colon)
	require.True(t, ok)
	assert.Equal(t, plain, a)
	assert.Equal(t, colon, b)

	a, b, ok = splitPair("x:y:z")
	require.True(t, ok)
	assert.Equal(t, "x:y", a)
	assert.Equal(t, "z", b)

	for _, bad := range []string{"nocolon", ":b", "a:"} {
		_, _, ok = splitPair(bad)
		assert.False(t, ok, bad)
	}
}

func TestRunBatch_ColonInPath(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "results")
	a := filepath.Join(dir, "a:1.csv")
	b := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(a, []byte("lat,lon\n1,1\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("lat,lon\n2,2\n"), 0o644))

	err := runBatch(context.Background(), &config.Config{}, zerolog.Nop(), []string{"-dir", outDir, a + ":" + b})
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(outDir, "output_*_b.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Len(t, readReport(t, matches[0]).Results, 1)
}
