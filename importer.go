// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package docimport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/poiesic/docimport/audit"
	"github.com/poiesic/docimport/config"
	"github.com/poiesic/docimport/core"
	"github.com/poiesic/docimport/delivery"
	"github.com/poiesic/docimport/pipeline"
	"github.com/poiesic/docimport/source"
	"github.com/poiesic/docimport/storage"
	"github.com/poiesic/docimport/storage/badger"
	"github.com/poiesic/docimport/trigger"
)

// ErrConfigRequired is returned by NewImporter when no configuration is given.
var ErrConfigRequired = errors.New("configuration is required")

// Importer owns the document store and runs imports into it.
type Importer struct {
	cfg      *config.Config
	backend  *badger.Backend
	docs     *badger.DocumentRepository
	runs     *badger.RunRepository
	logger   *slog.Logger
	progress io.Writer
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(i *Importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithProgress prints run progress to w. The interval comes from the
// progress setting; zero disables progress output.
func WithProgress(w io.Writer) Option {
	return func(i *Importer) {
		i.progress = w
	}
}

// NewImporter opens the document store described by cfg.
func NewImporter(cfg *config.Config, opts ...Option) (*Importer, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	backend, err := badger.OpenBackend(cfg.Store.Path, cfg.Store.InMemory)
	if err != nil {
		return nil, err
	}

	i := &Importer{
		cfg:     cfg,
		backend: backend,
		docs:    badger.NewDocumentRepository(backend),
		runs:    badger.NewRunRepository(backend),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Close closes the document store.
func (i *Importer) Close() error {
	if err := i.docs.Close(); err != nil {
		i.logger.Error("error closing document repository", "err", err)
		return err
	}
	if err := i.backend.Close(); err != nil {
		i.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (i *Importer) Documents() storage.DocumentRepository {
	return i.docs
}

func (i *Importer) Runs() storage.RunRepository {
	return i.runs
}

// RunConfigured builds the configured source and runs it once.
func (i *Importer) RunConfigured(ctx context.Context) (*pipeline.Result, error) {
	src, err := NewSource(i.cfg, i.logger)
	if err != nil {
		return nil, err
	}
	return i.Run(ctx, src)
}

// Run imports everything src yields. Each run gets its own sink and audit
// session, and its summary is saved even when the source fails.
func (i *Importer) Run(ctx context.Context, src source.Source) (*pipeline.Result, error) {
	runID := uuid.NewString()
	name := i.cfg.Importer
	logger := i.logger.With("component", "importer")

	auditLog, err := audit.Open(i.cfg.Audit.Dir, i.cfg.Audit.SuccessFile, i.cfg.Audit.ErrorFile)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := auditLog.Close(); err != nil {
			logger.Warn("closing audit log failed", "err", err)
		}
	}()

	var driver *pipeline.Driver
	sinkOpts := []delivery.Option{
		delivery.WithTimeout(i.cfg.Delivery.Timeout),
		delivery.WithPolicies(Policies(i.cfg.Delivery)...),
		delivery.WithLogger(i.logger),
		delivery.WithObserver(func(o core.DeliveryOutcome) { driver.Observe(o) }),
	}
	// Zero workers keeps the sink's CPU-based default.
	if i.cfg.Delivery.Workers > 0 {
		sinkOpts = append(sinkOpts, delivery.WithWorkers(i.cfg.Delivery.Workers))
	}
	sink, err := delivery.NewSink(i.docs.ForRun(name, runID), auditLog, sinkOpts...)
	if err != nil {
		return nil, err
	}
	defer sink.Release()

	driverOpts := []pipeline.Option{
		pipeline.WithLogger(i.logger),
		pipeline.WithSourceName(name),
		pipeline.WithRunID(runID),
	}
	if i.progress != nil && i.cfg.Progress > 0 {
		driverOpts = append(driverOpts, pipeline.WithProgress(i.progress, i.cfg.Progress))
	}
	driver, err = pipeline.NewDriver(sink, driverOpts...)
	if err != nil {
		return nil, err
	}

	result, runErr := driver.Run(ctx, src)
	if err := i.runs.SaveRun(context.WithoutCancel(ctx), result.Record(runErr)); err != nil {
		logger.Error("saving run summary failed", "run_id", runID, "err", err)
	}
	return result, runErr
}

// Serve runs the configured import once, then again on every schedule
// firing or input change until ctx is done. Without a schedule or watch
// it returns after the first run.
func (i *Importer) Serve(ctx context.Context) error {
	job := func(ctx context.Context) {
		if _, err := i.RunConfigured(ctx); err != nil && ctx.Err() == nil {
			i.logger.Error("import failed", "err", err)
		}
	}

	switch {
	case i.cfg.Schedule != "":
		scheduler, err := trigger.NewScheduler(i.cfg.Schedule, i.logger)
		if err != nil {
			return err
		}
		job(ctx)
		return scheduler.Run(ctx, job)
	case i.cfg.Watch:
		watcher, err := trigger.NewWatcher(i.cfg.CSV.Path, trigger.DefaultDebounce, i.logger)
		if err != nil {
			return err
		}
		job(ctx)
		return watcher.Run(ctx, job)
	default:
		_, err := i.RunConfigured(ctx)
		return err
	}
}

// Policies builds the retry policies for a delivery configuration. Timeouts
// share the non-retrying generic policy unless timeout retries are set.
func Policies(cfg config.DeliveryConfig) []delivery.RetryPolicy {
	policies := []delivery.RetryPolicy{
		{
			Name:        "cancelled",
			Kinds:       []core.ErrorKind{core.KindCancelled},
			Delay:       cfg.CancelledDelay,
			MaxAttempts: cfg.CancelledRetries,
		},
		{
			Name:        "overloaded",
			Kinds:       []core.ErrorKind{core.KindOverloaded},
			Delay:       cfg.OverloadedDelay,
			MaxAttempts: cfg.OverloadedRetries,
		},
	}
	if cfg.TimeoutRetries > 0 {
		return append(policies,
			delivery.RetryPolicy{
				Name:        "timeout",
				Kinds:       []core.ErrorKind{core.KindTimeout},
				Delay:       cfg.TimeoutDelay,
				MaxAttempts: cfg.TimeoutRetries,
			},
			delivery.RetryPolicy{Name: "generic", Kinds: []core.ErrorKind{core.KindOther}},
		)
	}
	return append(policies, delivery.RetryPolicy{
		Name:  "generic",
		Kinds: []core.ErrorKind{core.KindTimeout, core.KindOther},
	})
}

// AuditPaths returns the success and error file paths for cfg.
func AuditPaths(cfg *config.Config) (success, failure string) {
	return filepath.Join(cfg.Audit.Dir, cfg.Audit.SuccessFile),
		filepath.Join(cfg.Audit.Dir, cfg.Audit.ErrorFile)
}
