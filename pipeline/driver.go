// Package pipeline pulls items from a source and pushes them into a
// delivery sink until the source is exhausted and every item has reached
// a terminal outcome.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docimport/core"
	"github.com/poiesic/docimport/source"
)

// Deliverer accepts items for asynchronous delivery.
type Deliverer interface {
	// Deliver hands off one item, blocking while the sink is saturated.
	Deliver(ctx context.Context, item *core.Item) error
	// Wait blocks until every delivered item is terminal.
	Wait()
}

// Result summarizes one run.
type Result struct {
	RunID      string
	Source     string
	Read       int64 // items handed to the sink
	Skipped    int64 // records rejected by the source
	Succeeded  int64
	Failed     int64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Record converts the result into a persisted run summary.
func (r *Result) Record(fatal error) *core.RunRecord {
	rec := &core.RunRecord{
		RunID:      r.RunID,
		Source:     r.Source,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Read:       r.Read,
		Skipped:    r.Skipped,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
	}
	if fatal != nil {
		rec.Fatal = fatal.Error()
	}
	return rec
}

// Driver runs sources against a sink.
type Driver struct {
	sink       Deliverer
	logger     *slog.Logger
	sourceName string
	runID      string
	progress   *ProgressTracker

	succeeded atomic.Int64
	failed    atomic.Int64
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithProgress prints progress to w every interval terminal outcomes.
func WithProgress(w io.Writer, interval int) Option {
	return func(d *Driver) {
		if w != nil {
			d.progress = NewProgressTracker(w, interval)
		}
	}
}

// WithSourceName sets the source name recorded in results and logs.
func WithSourceName(name string) Option {
	return func(d *Driver) {
		d.sourceName = name
	}
}

// WithRunID fixes the ID of the next run instead of generating one, so
// callers can tag stored documents before the run starts.
func WithRunID(id string) Option {
	return func(d *Driver) {
		d.runID = id
	}
}

// NewDriver creates a driver that delivers into sink.
func NewDriver(sink Deliverer, opts ...Option) (*Driver, error) {
	if sink == nil {
		return nil, ErrSinkRequired
	}
	d := &Driver{
		sink:       sink,
		logger:     slog.Default(),
		sourceName: "source",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Observe counts a terminal outcome. Register it as the sink's observer.
func (d *Driver) Observe(outcome core.DeliveryOutcome) {
	if outcome.Succeeded {
		d.succeeded.Add(1)
	} else {
		d.failed.Add(1)
	}
	if d.progress != nil {
		d.progress.Record(outcome.Succeeded)
	}
}

// Run opens src, drains it into the sink and waits for every delivered
// item to finish. The returned Result is never nil. The error is the
// source's fatal error, or the context error when the run was cancelled.
func (d *Driver) Run(ctx context.Context, src source.Source) (*Result, error) {
	runID := d.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	result := &Result{
		RunID:     runID,
		Source:    d.sourceName,
		StartedAt: time.Now().UTC(),
	}
	if src == nil {
		result.FinishedAt = time.Now().UTC()
		return result, ErrSourceRequired
	}
	logger := d.logger.With("run_id", result.RunID, "source", d.sourceName)
	d.succeeded.Store(0)
	d.failed.Store(0)

	if err := src.Open(ctx); err != nil {
		result.FinishedAt = time.Now().UTC()
		logger.Error("opening source failed", "err", err)
		return result, source.Fatal(d.sourceName, err)
	}
	logger.Info("run started")
	if d.progress != nil {
		d.progress.Start()
	}

	fatal := d.pump(ctx, src, result, logger)

	d.sink.Wait()
	if err := src.Close(); err != nil {
		logger.Warn("closing source failed", "err", err)
	}
	if d.progress != nil {
		d.progress.Finish()
	}

	result.Succeeded = d.succeeded.Load()
	result.Failed = d.failed.Load()
	result.FinishedAt = time.Now().UTC()

	attrs := []any{
		"read", result.Read,
		"skipped", result.Skipped,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"elapsed", result.FinishedAt.Sub(result.StartedAt),
	}
	if fatal != nil {
		logger.Error("run aborted", append(attrs, "err", fatal)...)
	} else {
		logger.Info("run finished", attrs...)
	}
	return result, fatal
}

// pump pulls until the source is exhausted, a fatal error occurs or ctx ends.
func (d *Driver) pump(ctx context.Context, src source.Source, result *Result, logger *slog.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		item, err := src.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case source.IsSkippable(err):
			result.Skipped++
			logger.Warn("skipping record", "err", err)
			continue
		case err != nil:
			return err
		}

		result.Read++
		if err := d.sink.Deliver(ctx, item); err != nil {
			return err
		}
	}
}
