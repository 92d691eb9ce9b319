package calculator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"

	"geo-match/internal/models"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrEmptyInput is returned when there are no candidates to match against.
	ErrEmptyInput = errors.New("candidate set is empty")
	// ErrInvalidRadius is returned for a negative or NaN search radius.
	ErrInvalidRadius = errors.New("radius must be a non-negative number")
)

const progressEvery = 500

// ProgressCallback receives the number of processed source points. It may be
// called from several goroutines at once.
type ProgressCallback func(current, total int)

type options struct {
	workers    int
	onProgress ProgressCallback
}

// Option configures the parallel matchers.
type Option func(*options)

// WithWorkers sets the number of goroutines. Values below 1 mean runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressCallback) Option {
	return func(o *options) { o.onProgress = fn }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.NumCPU()
	}
	if o.workers < 1 {
		o.workers = 1
	}
	return o
}

// FindClosest scans candidates left to right and returns the nearest one with
// its distance rounded to 2 decimals. On ties the earliest candidate wins.
func FindClosest(point models.Coordinate, candidates models.CoordinateSet) (models.Coordinate, float64, error) {
	if len(candidates) == 0 {
		return models.Coordinate{}, 0, ErrEmptyInput
	}

	nearestIdx := 0
	minDist := Distance(point, candidates[0])
	for i := 1; i < len(candidates); i++ {
		d := Distance(point, candidates[i])
		if d < minDist || (math.IsNaN(minDist) && !math.IsNaN(d)) {
			minDist = d
			nearestIdx = i
		}
	}

	return candidates[nearestIdx], round2(minDist), nil
}

// MatchAll pairs every source point, in order, with its nearest candidate.
// Empty sources give an empty result even when candidates is empty.
func MatchAll(sources, candidates models.CoordinateSet) ([]models.MatchRecord, error) {
	matches := make([]models.MatchRecord, 0, len(sources))
	for i, p := range sources {
		nearest, d, err := FindClosest(p, candidates)
		if err != nil {
			return nil, fmt.Errorf("match point %d: %w", i, err)
		}
		matches = append(matches, models.MatchRecord{Source: p, Matched: nearest, DistanceKm: d})
	}
	return matches, nil
}

// chunks splits [0,total) into at most n contiguous ranges.
func chunks(total, n int) [][2]int {
	chunkSize := (total + n - 1) / n
	var out [][2]int
	for i := 0; i < n; i++ {
		start := i * chunkSize
		if start >= total {
			break
		}
		end := start + chunkSize
		if end > total {
			end = total
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

type progress struct {
	count int64
	total int
	fn    ProgressCallback
}

func (p *progress) tick() {
	c := atomic.AddInt64(&p.count, 1)
	if p.fn != nil && c%progressEvery == 0 {
		p.fn(int(c), p.total)
	}
}

func (p *progress) done() {
	if p.fn != nil {
		p.fn(p.total, p.total)
	}
}

// MatchAllParallel produces the same result as MatchAll, splitting sources
// into contiguous chunks that are scanned concurrently. It stops early when
// ctx is cancelled.
func MatchAllParallel(ctx context.Context, sources, candidates models.CoordinateSet, opts ...Option) ([]models.MatchRecord, error) {
	if len(sources) == 0 {
		return []models.MatchRecord{}, nil
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("match point 0: %w", ErrEmptyInput)
	}

	o := buildOptions(opts)
	total := len(sources)
	results := make([]models.MatchRecord, total)
	prog := &progress{total: total, fn: o.onProgress}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range chunks(total, o.workers) {
		s, e := c[0], c[1]
		g.Go(func() error {
			for idx := s; idx < e; idx++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				nearest, d, err := FindClosest(sources[idx], candidates)
				if err != nil {
					return fmt.Errorf("match point %d: %w", idx, err)
				}
				results[idx] = models.MatchRecord{Source: sources[idx], Matched: nearest, DistanceKm: d}
				prog.tick()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	prog.done()
	return results, nil
}

// WithinRadius returns every (source, candidate) pair whose distance is at
// most radiusKm, ordered by source and then by candidate.
func WithinRadius(ctx context.Context, sources, candidates models.CoordinateSet, radiusKm float64, opts ...Option) ([]models.RadiusMatch, error) {
	if math.IsNaN(radiusKm) || radiusKm < 0 {
		return nil, fmt.Errorf("within radius %v: %w", radiusKm, ErrInvalidRadius)
	}
	if len(sources) == 0 || len(candidates) == 0 {
		return []models.RadiusMatch{}, nil
	}

	o := buildOptions(opts)
	total := len(sources)
	perSource := make([][]models.RadiusMatch, total)
	prog := &progress{total: total, fn: o.onProgress}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range chunks(total, o.workers) {
		s, e := c[0], c[1]
		g.Go(func() error {
			for idx := s; idx < e; idx++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				src := sources[idx]
				var local []models.RadiusMatch
				for _, p := range candidates {
					d := Distance(src, p)
					if d <= radiusKm {
						local = append(local, models.RadiusMatch{Source: src, Matched: p, DistanceKm: round2(d)})
					}
				}
				perSource[idx] = local
				prog.tick()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	prog.done()

	all := []models.RadiusMatch{}
	for _, local := range perSource {
		all = append(all, local...)
	}
	return all, nil
}
