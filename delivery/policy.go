package delivery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/poiesic/docimport/core"
	"github.com/poiesic/docimport/storage"
)

// Default retry settings.
const (
	DefaultCancelledDelay    = 31 * time.Second
	DefaultCancelledRetries  = 100
	DefaultOverloadedDelay   = 100 * time.Millisecond
	DefaultOverloadedRetries = 100
)

// RetryPolicy decides how an item is retried after a failure of one of Kinds.
type RetryPolicy struct {
	Name        string
	Kinds       []core.ErrorKind
	Delay       time.Duration
	MaxAttempts int
}

// Matches reports whether the policy handles the given error kind.
func (p RetryPolicy) Matches(kind core.ErrorKind) bool {
	return slices.Contains(p.Kinds, kind)
}

func (p RetryPolicy) validate() error {
	if p.Delay < 0 || p.MaxAttempts < 0 {
		return fmt.Errorf("%w: %q has delay %s and %d attempts", ErrInvalidPolicy, p.Name, p.Delay, p.MaxAttempts)
	}
	return nil
}

// DefaultPolicies returns the standard policy set. Timeouts fall under the
// generic policy, which does not retry.
func DefaultPolicies() []RetryPolicy {
	return []RetryPolicy{
		{
			Name:        "cancelled",
			Kinds:       []core.ErrorKind{core.KindCancelled},
			Delay:       DefaultCancelledDelay,
			MaxAttempts: DefaultCancelledRetries,
		},
		{
			Name:        "overloaded",
			Kinds:       []core.ErrorKind{core.KindOverloaded},
			Delay:       DefaultOverloadedDelay,
			MaxAttempts: DefaultOverloadedRetries,
		},
		{
			Name:  "generic",
			Kinds: []core.ErrorKind{core.KindTimeout, core.KindOther},
		},
	}
}

// sortPolicies orders policies cancelled first, then overloaded, then the
// rest, keeping the caller's order within each group.
func sortPolicies(policies []RetryPolicy) []RetryPolicy {
	sorted := slices.Clone(policies)
	slices.SortStableFunc(sorted, func(a, b RetryPolicy) int {
		return policyRank(a) - policyRank(b)
	})
	return sorted
}

func policyRank(p RetryPolicy) int {
	switch {
	case p.Matches(core.KindCancelled):
		return 0
	case p.Matches(core.KindOverloaded):
		return 1
	default:
		return 2
	}
}

// Classify maps a store error to its retry kind.
func Classify(err error) core.ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return core.KindTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, storage.ErrCancelled):
		return core.KindCancelled
	case errors.Is(err, storage.ErrOverloaded):
		return core.KindOverloaded
	default:
		return core.KindOther
	}
}

// sleep waits for d or until ctx is done. A done context wins even when
// d is zero.
func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
