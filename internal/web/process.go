package web

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"geo-match/internal/calculator"
	"geo-match/internal/dataset"
	"geo-match/internal/excel"
	"geo-match/internal/jobs"
	"geo-match/internal/models"
	"geo-match/internal/report"
)

const resultSheet = "Results"

type input struct {
	mode     string
	radiusKm float64

	// Either workbook (with two sheets) or sourcePath + referencePath is set.
	workbook       string
	sourceSheet    string
	referenceSheet string
	sourcePath     string
	referencePath  string
}

func (s *Server) loadInputs(job *jobs.Job, in input) (src, ref *models.Dataset, err error) {
	if in.workbook != "" {
		job.Log(fmt.Sprintf("Processing workbook: %s", filepath.Base(in.workbook)))
		f, openErr := excel.OpenFile(in.workbook)
		if openErr != nil {
			return nil, nil, fmt.Errorf("could not open workbook: %w", openErr)
		}
		defer f.Close()

		job.Log(fmt.Sprintf("Reading sheet %q...", in.sourceSheet))
		if src, err = excel.ReadSheet(f, in.sourceSheet); err != nil {
			return nil, nil, err
		}
		job.Log(fmt.Sprintf("Reading sheet %q...", in.referenceSheet))
		if ref, err = excel.ReadSheet(f, in.referenceSheet); err != nil {
			return nil, nil, err
		}
		return src, ref, nil
	}

	job.Log(fmt.Sprintf("Reading %s...", filepath.Base(in.sourcePath)))
	if src, err = dataset.Load(in.sourcePath, in.sourceSheet); err != nil {
		return nil, nil, err
	}
	job.Log(fmt.Sprintf("Reading %s...", filepath.Base(in.referencePath)))
	if ref, err = dataset.Load(in.referencePath, in.referenceSheet); err != nil {
		return nil, nil, err
	}
	return src, ref, nil
}

func (s *Server) processJob(ctx context.Context, job *jobs.Job, in input) {
	defer func() {
		if r := recover(); r != nil {
			job.Fail(fmt.Sprintf("Panic: %v", r))
		}
	}()

	src, ref, err := s.loadInputs(job, in)
	if err != nil {
		job.Fail(fmt.Sprintf("Read error: %v", err))
		return
	}
	for _, ds := range []*models.Dataset{src, ref} {
		job.Log(fmt.Sprintf("%s: %d points read, %d rows skipped.", ds.Label, len(ds.Points), len(ds.Skipped)))
	}
	skipped := len(src.Skipped) + len(ref.Skipped)

	opts := []calculator.Option{
		calculator.WithWorkers(s.cfg.Workers),
		calculator.WithProgress(job.SetProgress),
	}
	outputPath := filepath.Join(s.cfg.OutputDir, fmt.Sprintf("%s_%s.xlsx", job.ID, in.mode))
	start := time.Now()

	var (
		rows       int
		reportName string
	)
	if in.mode == modeNearest {
		job.Log("Finding nearest points...")
		var matches []models.MatchRecord
		matches, err = calculator.MatchAllParallel(ctx, src.Points, ref.Points, opts...)
		if err == nil {
			job.Log(fmt.Sprintf("Calculation finished in %s.", time.Since(start)))
			job.Log("Writing result files...")
			err = excel.WriteResult(outputPath, matches, resultSheet)
		}
		if err == nil {
			reportName = fmt.Sprintf("%s_%s.json", job.ID, in.mode)
			doc := report.Build(matches, src.Label, ref.Label, time.Now())
			err = report.WriteFile(filepath.Join(s.cfg.OutputDir, reportName), doc)
		}
		rows = len(matches)
	} else {
		job.Log(fmt.Sprintf("Searching within radius (%.2f km)...", in.radiusKm))
		var matches []models.RadiusMatch
		matches, err = calculator.WithinRadius(ctx, src.Points, ref.Points, in.radiusKm, opts...)
		if err == nil {
			job.Log(fmt.Sprintf("Calculation finished in %s.", time.Since(start)))
			job.Log("Writing result file...")
			err = excel.WriteRadiusResult(outputPath, matches, resultSheet)
		}
		rows = len(matches)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// No-op when the user cancelled; otherwise the server is stopping.
			job.Fail("Server shutting down.")
			return
		}
		if errors.Is(err, calculator.ErrEmptyInput) {
			job.Fail("The reference set has no valid coordinates.")
			return
		}
		job.Fail(fmt.Sprintf("Calculation error: %v", err))
		return
	}

	job.Finish(&jobs.JobResult{
		Mode:     in.mode,
		Rows:     rows,
		Sheet:    resultSheet,
		Output:   outputPath,
		Filename: filepath.Base(outputPath),
		Report:   reportName,
		Skipped:  skipped,
	})
}
