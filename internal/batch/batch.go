// Package batch georeferences occurrence files: GBIF-style CSV rows
// in, one JSON line per record out. Records are independent, so they
// run concurrently and a failure never aborts the run.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/collections-lab/georef-cli/internal/matcher"
	"github.com/collections-lab/georef-cli/internal/resolver"
)

// ResolveFunc georeferences one record.
type ResolveFunc func(ctx context.Context, rec *matcher.Record) (*resolver.Result, error)

// Resolver builds the standard resolve function over a match pipeline
// and the evaluator configuration.
func Resolver(pipe *matcher.Pipeline, cfg resolver.Config) ResolveFunc {
	return func(ctx context.Context, rec *matcher.Record) (*resolver.Result, error) {
		out, err := pipe.Process(ctx, rec)
		if err != nil {
			return nil, err
		}
		return resolver.NewEvaluator(cfg, rec, out).Resolve()
	}
}

// Row is one JSONL output line.
type Row struct {
	RunID       string          `json:"run_id"`
	RecordID    string          `json:"record_id"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	ErrorKind   string          `json:"error_kind,omitempty"`
	Latitude    float64         `json:"latitude,omitempty"`
	Longitude   float64         `json:"longitude,omitempty"`
	RadiusKm    float64         `json:"radius_km,omitempty"`
	Geometry    json.RawMessage `json:"geometry,omitempty"`
	Sources     []string        `json:"sources,omitempty"`
	Explanation string          `json:"explanation,omitempty"`
	Missed      []string        `json:"missed,omitempty"`
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID    string
	Records  int64
	Resolved int64
	Failed   int64
}

// Runner drives concurrent georeferencing over an input file.
type Runner struct {
	resolve     ResolveFunc
	concurrency int
	limit       int
	log         *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithConcurrency sets the number of records in flight.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLimit caps how many records are read from the input.
func WithLimit(n int) Option {
	return func(r *Runner) { r.limit = n }
}

// New builds a Runner over a resolve function.
func New(resolve ResolveFunc, opts ...Option) *Runner {
	r := &Runner{
		resolve:     resolve,
		concurrency: 4,
		log:         zap.L().Named("batch"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads records from in and writes one JSON line per record to
// out. Row order follows completion, not input; the record id ties
// rows back to their source.
func (r *Runner) Run(ctx context.Context, in io.Reader, out io.Writer) (*Summary, error) {
	records, err := ReadRecords(in, r.limit)
	if err != nil {
		return nil, err
	}
	sum := &Summary{RunID: uuid.NewString(), Records: int64(len(records))}
	if len(records) == 0 {
		r.log.Info("no records to process")
		return sum, nil
	}
	r.log.Info("processing batch",
		zap.String("run_id", sum.RunID),
		zap.Int("records", len(records)),
		zap.Int("concurrency", r.concurrency))

	enc := json.NewEncoder(out)
	var mu sync.Mutex
	var resolved, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, rec := range records {
		g.Go(func() error {
			row := r.processOne(gctx, sum.RunID, rec)
			if row.Status == "resolved" {
				resolved.Add(1)
			} else {
				failed.Add(1)
			}
			mu.Lock()
			defer mu.Unlock()
			if err := enc.Encode(row); err != nil {
				return eris.Wrap(err, "batch: write output row")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum.Resolved = resolved.Load()
	sum.Failed = failed.Load()
	r.log.Info("batch complete",
		zap.String("run_id", sum.RunID),
		zap.Int64("resolved", sum.Resolved),
		zap.Int64("failed", sum.Failed))
	return sum, nil
}

func (r *Runner) processOne(ctx context.Context, runID string, rec *matcher.Record) Row {
	row := Row{RunID: runID, RecordID: rec.LocationID}
	res, err := r.resolve(ctx, rec)
	if err != nil {
		row.Status = "failed"
		row.Error = err.Error()
		row.ErrorKind = errorKind(err)
		r.log.Warn("record failed",
			zap.String("record", rec.LocationID),
			zap.String("kind", row.ErrorKind),
			zap.Error(err))
		return row
	}
	row.Status = "resolved"
	row.Latitude, row.Longitude = res.Geometry.Centroid()
	row.RadiusKm = res.RadiusKm
	row.Sources = res.Sources
	row.Explanation = res.Explanation
	row.Missed = res.Missed
	if geojson, gerr := res.Geometry.GeoJSON(); gerr == nil {
		row.Geometry = geojson
	}
	return row
}

// errorKind maps resolution failures onto stable machine-readable
// labels for downstream filtering.
func errorKind(err error) string {
	switch {
	case errors.Is(err, resolver.ErrNoCandidates):
		return "no_candidates"
	case errors.Is(err, resolver.ErrTooManyCandidates):
		return "too_many_candidates"
	case errors.Is(err, resolver.ErrResolutionFailure):
		return "not_reconciled"
	case errors.Is(err, resolver.ErrGeometry):
		return "geometry"
	default:
		return "error"
	}
}
