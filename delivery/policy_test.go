package delivery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/docimport/core"
	"github.com/poiesic/docimport/storage"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want core.ErrorKind
	}{
		{"deadline", context.DeadlineExceeded, core.KindTimeout},
		{"wrapped deadline", fmt.Errorf("write: %w", context.DeadlineExceeded), core.KindTimeout},
		{"context cancelled", context.Canceled, core.KindCancelled},
		{"store cancelled", fmt.Errorf("%w: node restarting", storage.ErrCancelled), core.KindCancelled},
		{"overloaded", fmt.Errorf("%w: conflict", storage.ErrOverloaded), core.KindOverloaded},
		{"closed store", storage.ErrStorageClosed, core.KindOther},
		{"arbitrary", errors.New("boom"), core.KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestSortPolicies(t *testing.T) {
	policies := []RetryPolicy{
		{Name: "generic-a", Kinds: []core.ErrorKind{core.KindOther}},
		{Name: "overloaded", Kinds: []core.ErrorKind{core.KindOverloaded}},
		{Name: "generic-b", Kinds: []core.ErrorKind{core.KindTimeout}},
		{Name: "cancelled", Kinds: []core.ErrorKind{core.KindCancelled}},
	}

	sorted := sortPolicies(policies)

	var names []string
	for _, p := range sorted {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"cancelled", "overloaded", "generic-a", "generic-b"}, names)
	assert.Equal(t, "generic-a", policies[0].Name, "input must not be reordered")
}

func TestDefaultPolicies(t *testing.T) {
	policies := DefaultPolicies()
	assert.Len(t, policies, 3)

	assert.Equal(t, 31*time.Second, policies[0].Delay)
	assert.Equal(t, 100, policies[0].MaxAttempts)
	assert.True(t, policies[0].Matches(core.KindCancelled))

	assert.Equal(t, 100*time.Millisecond, policies[1].Delay)
	assert.True(t, policies[1].Matches(core.KindOverloaded))

	assert.True(t, policies[2].Matches(core.KindTimeout))
	assert.True(t, policies[2].Matches(core.KindOther))
	assert.Zero(t, policies[2].MaxAttempts)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, sleep(context.Background(), 0))
	assert.NoError(t, sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, 0), context.Canceled)
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
}
