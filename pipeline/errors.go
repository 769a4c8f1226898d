package pipeline

import "errors"

var (
	// ErrSinkRequired is returned when a driver is created without a sink.
	ErrSinkRequired = errors.New("delivery sink is required")

	// ErrSourceRequired is returned when Run is called without a source.
	ErrSourceRequired = errors.New("source is required")
)
