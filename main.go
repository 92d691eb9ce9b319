package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"geo-match/internal/calculator"
	"geo-match/internal/config"
	"geo-match/internal/dataset"
	"geo-match/internal/excel"
	"geo-match/internal/jobs"
	"geo-match/internal/loader"
	"geo-match/internal/logging"
	"geo-match/internal/models"
	"geo-match/internal/report"
	"geo-match/internal/web"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const usage = `Usage: geo-match <command> [flags]

Commands:
  serve    start the web interface (default)
  match    match two CSV/JSON/XLSX files
  manual   enter both coordinate sets interactively
  batch    run several file pairs (a.csv:b.csv ...)
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	pretty := cfg.LogPretty || cmd != "serve"
	logger := logging.New(os.Stderr, cfg.LogLevel, pretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		err = runServe(ctx, cfg, logger)
	case "match":
		err = runMatch(ctx, cfg, logger, args)
	case "manual":
		err = runManual(ctx, cfg, logger, args, os.Stdin, os.Stdout)
	case "batch":
		err = runBatch(ctx, cfg, logger, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error().Err(err).Str("command", cmd).Msg("failed")
		os.Exit(1)
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}
	gin.SetMode(gin.ReleaseMode)

	store := jobs.NewStore(logger)
	srv := web.NewServer(ctx, cfg, store, logger)
	go srv.PruneLoop(ctx, 10*time.Minute, 24*time.Hour)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpSrv.Addr).Msg("server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}

type outputs struct {
	jsonPath string
	xlsxPath string
	parallel bool
}

// matchAndWrite runs the matcher over two datasets and writes the report.
func matchAndWrite(ctx context.Context, cfg *config.Config, logger zerolog.Logger, a, b *models.Dataset, out outputs) error {
	for _, ds := range []*models.Dataset{a, b} {
		logger.Info().Str("label", ds.Label).Int("points", len(ds.Points)).Int("skipped", len(ds.Skipped)).Msg("loaded")
		for _, s := range ds.Skipped {
			logger.Debug().Str("label", ds.Label).Int("row", s.Row).Str("reason", s.Reason).Msg("skipped row")
		}
	}

	logger.Info().Msg("matching points")
	var (
		matches []models.MatchRecord
		err     error
	)
	if out.parallel {
		matches, err = calculator.MatchAllParallel(ctx, a.Points, b.Points, calculator.WithWorkers(cfg.Workers))
	} else {
		matches, err = calculator.MatchAll(a.Points, b.Points)
	}
	if err != nil {
		return fmt.Errorf("match %s against %s: %w", a.Label, b.Label, err)
	}

	doc := report.Build(matches, a.Label, b.Label, time.Now())
	if err := report.WriteFile(out.jsonPath, doc); err != nil {
		return err
	}
	logger.Info().Str("file", out.jsonPath).Int("results", len(matches)).Msg("results saved")

	if out.xlsxPath != "" {
		if err := excel.WriteResult(out.xlsxPath, matches, "Results"); err != nil {
			return fmt.Errorf("write %s: %w", out.xlsxPath, err)
		}
		logger.Info().Str("file", out.xlsxPath).Msg("workbook saved")
	}
	return nil
}

func runMatch(ctx context.Context, cfg *config.Config, logger zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("match", flag.ContinueOnError)
	fileA := fs.String("a", "", "first dataset (source points)")
	fileB := fs.String("b", "", "second dataset (reference points)")
	sheetA := fs.String("sheet-a", "", "sheet of the first workbook")
	sheetB := fs.String("sheet-b", "", "sheet of the second workbook")
	out := fs.String("o", "output.json", "JSON output file")
	xlsx := fs.String("xlsx", "", "optional Excel output file")
	parallel := fs.Bool("parallel", false, "scan source points on all CPUs")
	strict := fs.Bool("strict", false, "fail on the first malformed row")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *fileA == "" || *fileB == "" {
		return errors.New("match: -a and -b are required")
	}

	for _, p := range []string{*fileA, *fileB} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("match: %w", err)
		}
	}

	var opts []loader.Option
	if *strict {
		opts = append(opts, loader.Strict())
	}
	a, err := dataset.Load(*fileA, *sheetA, opts...)
	if err != nil {
		return err
	}
	b, err := dataset.Load(*fileB, *sheetB, opts...)
	if err != nil {
		return err
	}

	return matchAndWrite(ctx, cfg, logger, a, b, outputs{jsonPath: *out, xlsxPath: *xlsx, parallel: *parallel})
}

func runManual(ctx context.Context, cfg *config.Config, logger zerolog.Logger, args []string, in io.Reader, w io.Writer) error {
	fs := flag.NewFlagSet("manual", flag.ContinueOnError)
	out := fs.String("o", "output.json", "JSON output file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Both prompts share one reader so buffered lines are not lost.
	br := bufio.NewReader(in)

	fmt.Fprintln(w, "\nEnter coordinates for the FIRST dataset:")
	a, err := loader.ManualInput(br, w, "Manual_Input_A")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nEnter coordinates for the SECOND dataset:")
	b, err := loader.ManualInput(br, w, "Manual_Input_B")
	if err != nil {
		return err
	}

	return matchAndWrite(ctx, cfg, logger, a, b, outputs{jsonPath: *out})
}

func runBatch(ctx context.Context, cfg *config.Config, logger zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	dir := fs.String("dir", ".", "directory for timestamped output files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("batch: at least one a:b file pair is required")
	}
	if err := os.MkdirAll(*dir, 0o755); err != nil {
		return fmt.Errorf("batch: %w", err)
	}

	var failed int
	for _, pair := range fs.Args() {
		fileA, fileB, ok := splitPair(pair)
		if !ok {
			logger.Warn().Str("pair", pair).Msg("skipping: expected a:b")
			continue
		}
		if !exists(fileA) || !exists(fileB) {
			logger.Warn().Str("a", fileA).Str("b", fileB).Msg("skipping: one of the files does not exist")
			continue
		}

		a, err := dataset.Load(fileA, "")
		if err == nil {
			var b *models.Dataset
			if b, err = dataset.Load(fileB, ""); err == nil {
				name := report.TimestampedName(*dir, time.Now())
				name = strings.TrimSuffix(name, ".json") + "_" + stem(fileA) + "_" + stem(fileB) + ".json"
				err = matchAndWrite(ctx, cfg, logger, a, b, outputs{jsonPath: name, parallel: true})
			}
		}
		if err != nil {
			failed++
			logger.Error().Err(err).Str("pair", pair).Msg("run failed")
		}
	}

	if failed > 0 {
		return fmt.Errorf("batch: %d run(s) failed", failed)
	}
	return nil
}

// splitPair splits "a:b" at the colon that separates two existing files, so
// paths may contain colons themselves. Without such a colon the last one wins.
func splitPair(pair string) (a, b string, ok bool) {
	last := strings.LastIndex(pair, ":")
	if last <= 0 || last == len(pair)-1 {
		return "", "", false
	}
	for i := 0; i < len(pair); i++ {
		if pair[i] != ':' || i == 0 || i == len(pair)-1 {
			continue
		}
		if exists(pair[:i]) && exists(pair[i+1:]) {
			return pair[:i], pair[i+1:], true
		}
	}
	return pair[:last], pair[last+1:], true
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
