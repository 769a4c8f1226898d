// Package trigger re-runs an import on a cron schedule or when its input
// file changes. A trigger never runs two jobs at once.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

// DefaultDebounce is the quiet period after the last file event before
// a watched job runs.
const DefaultDebounce = 500 * time.Millisecond

// ErrInvalidSchedule wraps cron parse failures.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Job is the work a trigger runs.
type Job func(ctx context.Context)

// cronLogger routes cron's logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "err", err)...)
}

// Scheduler runs a job on a standard five-field cron expression or a
// descriptor such as "@hourly" or "@every 10m".
type Scheduler struct {
	schedule cron.Schedule
	logger   *slog.Logger
}

// NewScheduler parses spec.
func NewScheduler(spec string, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSchedule, spec, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{schedule: schedule, logger: logger.With("schedule", spec)}, nil
}

// Next reports when the job would next fire after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run blocks until ctx is done, firing job on schedule. Overlapping firings
// are skipped. Run waits for an in-progress job before returning.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	logger := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() {
		s.logger.Info("scheduled import starting")
		job(ctx)
	}))
	c.Start()
	s.logger.Info("scheduler started", "next", s.schedule.Next(time.Now()))

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Watcher runs a job whenever a file is written or recreated.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
}

// NewWatcher starts watching path. The parent directory is watched so that
// editors which replace the file are still seen.
func NewWatcher(path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(absPath)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(absPath), err)
	}

	return &Watcher{
		path:     absPath,
		debounce: debounce,
		watcher:  w,
		logger:   logger.With("path", absPath),
	}, nil
}

// Run blocks until ctx is done or the watcher fails, running job once per
// burst of changes. Jobs run on the calling goroutine.
func (w *Watcher) Run(ctx context.Context, job Job) error {
	defer w.watcher.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if absPath, _ := filepath.Abs(event.Name); absPath != w.path {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.logger.Info("input changed, running import")
			job(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "err", err)
		}
	}
}

// Close stops watching without running.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
