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


// Package source defines the contract every input adapter implements.
//
// A Source is a single-pass, lazy sequence of keyed documents. Open
// acquires the underlying resource, Next yields one item per call, and
// Close releases everything. Adapters live in subpackages:
//
//   - delimited: CSV-like text files and XLSX workbooks
//   - relational: every base table of a SQL database plus a schema manifest
//   - feed: a line-oriented JSON export fetched over HTTP
//   - collection: a live MongoDB collection cursor
//
// # Error Contract
//
// Open reports failures as *FatalError. Next returns io.EOF when the
// sequence is exhausted and *ItemError for a record that should be
// skipped. Any other error from Next ends the run.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/docimport/core"
)

// Source is a lazy sequence of keyed documents.
type Source interface {
	// Open acquires the underlying resource. Failures are *FatalError.
	Open(ctx context.Context) error

	// Next returns the next item, io.EOF at the end of the sequence, or
	// *ItemError for a record that should be skipped.
	Next(ctx context.Context) (*core.Item, error)

	// Close releases the underlying resource.
	Close() error
}

// ItemError reports a single record that cannot be mapped. The run skips
// it and continues.
type ItemError struct {
	Record string
	Err    error
}

func (e *ItemError) Error() string {
	if e.Record == "" {
		return fmt.Sprintf("skipping record: %v", e.Err)
	}
	return fmt.Sprintf("skipping record %s: %v", e.Record, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// SkipRecord builds an *ItemError.
func SkipRecord(record string, err error) error {
	return &ItemError{Record: record, Err: err}
}

// FatalError reports a failure that makes the whole source unusable.
type FatalError struct {
	Source string
	Err    error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as a *FatalError for the named source. A nil err stays nil.
func Fatal(source string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return err
	}
	return &FatalError{Source: source, Err: err}
}

// IsSkippable reports whether err marks a record to skip.
func IsSkippable(err error) bool {
	var ie *ItemError
	return errors.As(err, &ie)
}

// ErrNotOpen is returned by Next before Open succeeds.
var ErrNotOpen = errors.New("source is not open")
