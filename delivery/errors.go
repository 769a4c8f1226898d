package delivery

import "errors"

var (
	// ErrStoreRequired is returned when a sink is created without a store.
	ErrStoreRequired = errors.New("document store is required")

	// ErrRecorderRequired is returned when a sink is created without an audit recorder.
	ErrRecorderRequired = errors.New("outcome recorder is required")

	// ErrSinkClosed is returned by Deliver after the worker pool is released.
	ErrSinkClosed = errors.New("delivery sink is closed")

	// ErrInvalidPolicy indicates a retry policy with a negative delay or attempt budget.
	ErrInvalidPolicy = errors.New("invalid retry policy")
)
