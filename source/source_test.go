package source

import (
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/docimport/core"
	"github.com/stretchr/testify/assert"
)

func TestItemError(t *testing.T) {
	cause := &core.MappingError{Kind: core.MappingInvalidNumber, Field: "age", Value: "x", Err: core.ErrInvalidNumber}
	err := SkipRecord("line 4", cause)

	assert.True(t, IsSkippable(err))
	assert.True(t, IsSkippable(fmt.Errorf("wrapped: %w", err)))
	assert.ErrorIs(t, err, core.ErrInvalidNumber)
	assert.Contains(t, err.Error(), "line 4")
	assert.False(t, IsSkippable(errors.New("plain")))
}

func TestFatal(t *testing.T) {
	assert.NoError(t, Fatal("csv", nil))

	cause := errors.New("no such file")
	err := Fatal("csv", cause)
	var fe *FatalError
	assert.ErrorAs(t, err, &fe)
	assert.Equal(t, "csv", fe.Source)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "source csv: no such file", err.Error())

	// Already fatal errors are not double wrapped.
	assert.Same(t, err, Fatal("other", err))
}
