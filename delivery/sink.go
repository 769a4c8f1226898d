package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docimport/core"
	"github.com/poiesic/docimport/storage"
)

// DefaultTimeout bounds a single store write.
const DefaultTimeout = 500 * time.Millisecond

// Recorder receives the terminal outcome of every item.
type Recorder interface {
	Success(key string) error
	Failure(key string) error
}

// Stats is a snapshot of sink counters.
type Stats struct {
	Submitted int64
	Succeeded int64
	Failed    int64
	Retries   int64
	InFlight  int64
}

// Sink delivers items to a store through a bounded worker pool.
type Sink struct {
	store    storage.DocumentWriter
	recorder Recorder
	pool     *ants.Pool
	workers  int
	timeout  time.Duration
	policies []RetryPolicy
	observer func(core.DeliveryOutcome)
	logger   *slog.Logger

	wg        sync.WaitGroup
	submitted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	retries   atomic.Int64
	inFlight  atomic.Int64
}

// Option configures a Sink.
type Option func(*Sink) error

// WithWorkers sets the number of concurrent deliveries.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithWorkers(n int) Option {
	return func(s *Sink) error {
		if n < 1 {
			n = 1
		}
		s.workers = n
		return nil
	}
}

// WithTimeout sets the per-attempt write timeout.
// Default is 500ms.
func WithTimeout(d time.Duration) Option {
	return func(s *Sink) error {
		if d <= 0 {
			d = DefaultTimeout
		}
		s.timeout = d
		return nil
	}
}

// WithPolicies replaces the retry policies.
func WithPolicies(policies ...RetryPolicy) Option {
	return func(s *Sink) error {
		for _, p := range policies {
			if err := p.validate(); err != nil {
				return err
			}
		}
		s.policies = sortPolicies(policies)
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithObserver registers a callback for every terminal outcome. It is
// called from worker goroutines and must be safe for concurrent use.
func WithObserver(fn func(core.DeliveryOutcome)) Option {
	return func(s *Sink) error {
		s.observer = fn
		return nil
	}
}

// NewSink creates a delivery sink writing to store and reporting outcomes
// to recorder.
func NewSink(store storage.DocumentWriter, recorder Recorder, opts ...Option) (*Sink, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if recorder == nil {
		return nil, ErrRecorderRequired
	}

	s := &Sink{
		store:    store,
		recorder: recorder,
		workers:  max(runtime.NumCPU(), 1),
		timeout:  DefaultTimeout,
		policies: sortPolicies(DefaultPolicies()),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, err
	}
	s.pool = pool
	return s, nil
}

// Deliver hands item to a worker, blocking while all workers are busy.
// The run context only governs backoff waits; writes already started
// complete on their own deadline. An error means the sink is closed.
func (s *Sink) Deliver(ctx context.Context, item *core.Item) error {
	s.wg.Add(1)
	s.submitted.Add(1)
	err := s.pool.Submit(func() {
		defer s.wg.Done()
		s.deliver(ctx, item)
	})
	if err != nil {
		s.wg.Done()
		s.submitted.Add(-1)
		return fmt.Errorf("%w: %w", ErrSinkClosed, err)
	}
	return nil
}

// Wait blocks until every delivered item has reached a terminal outcome.
func (s *Sink) Wait() {
	s.wg.Wait()
}

// Release frees the worker pool. Deliver fails afterwards.
func (s *Sink) Release() {
	s.pool.Release()
}

// Stats returns a snapshot of the sink counters.
func (s *Sink) Stats() Stats {
	return Stats{
		Submitted: s.submitted.Load(),
		Succeeded: s.succeeded.Load(),
		Failed:    s.failed.Load(),
		Retries:   s.retries.Load(),
		InFlight:  s.inFlight.Load(),
	}
}

// deliver runs the full retry sequence for one item on the calling worker.
func (s *Sink) deliver(runCtx context.Context, item *core.Item) {
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	counters := make([]int, len(s.policies))
	attempts := 0
	for {
		attempts++
		abandoned, err := s.attempt(runCtx, item)
		if err == nil {
			s.finish(core.DeliveryOutcome{Key: item.Key, Succeeded: true, Attempts: attempts})
			return
		}

		kind := Classify(err)
		idx := s.matchPolicy(kind)
		if idx < 0 || counters[idx] >= s.policies[idx].MaxAttempts {
			s.finish(core.DeliveryOutcome{Key: item.Key, Kind: kind, Err: err, Attempts: attempts})
			return
		}
		counters[idx]++
		s.retries.Add(1)

		policy := s.policies[idx]
		s.logger.Debug("retrying delivery",
			"key", item.Key,
			"kind", kind,
			"policy", policy.Name,
			"attempt", attempts,
			"delay", policy.Delay,
			"err", err)

		if waitErr := sleep(runCtx, policy.Delay); waitErr != nil {
			s.finish(core.DeliveryOutcome{
				Key:      item.Key,
				Kind:     core.KindCancelled,
				Err:      fmt.Errorf("run cancelled during backoff: %w (last error: %w)", waitErr, err),
				Attempts: attempts,
			})
			return
		}

		// One write per item at a time: the timed-out write must return
		// before the next one starts.
		if abandoned != nil {
			if lateErr := <-abandoned; lateErr != nil {
				s.logger.Debug("abandoned write returned", "key", item.Key, "err", lateErr)
			}
		}
	}
}

// attempt performs one bounded store write. When the deadline fires first
// it returns at once together with a channel that yields the abandoned
// write's result.
func (s *Sink) attempt(runCtx context.Context, item *core.Item) (<-chan error, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.store.Upsert(ctx, item.Key, item.Doc)
	}()

	select {
	case err := <-done:
		return nil, err
	case <-ctx.Done():
		return done, fmt.Errorf("write exceeded %s: %w", s.timeout, context.DeadlineExceeded)
	}
}

func (s *Sink) matchPolicy(kind core.ErrorKind) int {
	for i, p := range s.policies {
		if p.Matches(kind) {
			return i
		}
	}
	return -1
}

func (s *Sink) finish(outcome core.DeliveryOutcome) {
	if outcome.Succeeded {
		s.succeeded.Add(1)
		if err := s.recorder.Success(outcome.Key); err != nil {
			s.logger.Error("recording success failed", "key", outcome.Key, "err", err)
		}
	} else {
		s.failed.Add(1)
		s.logger.Error("delivery failed",
			"key", outcome.Key,
			"kind", outcome.Kind,
			"attempts", outcome.Attempts,
			"err", outcome.Err)
		if err := s.recorder.Failure(outcome.Key); err != nil {
			s.logger.Error("recording failure failed", "key", outcome.Key, "err", err)
		}
	}
	if s.observer != nil {
		s.observer(outcome)
	}
}
