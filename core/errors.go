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


package core

import (
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrEmptyKey indicates a record would be emitted without a key.
	ErrEmptyKey = errors.New("key cannot be empty")

	// ErrUnknownSemanticType indicates an unrecognized column type name.
	ErrUnknownSemanticType = errors.New("unknown semantic type")

	// ErrInvalidNumber indicates numeric text could not be parsed.
	ErrInvalidNumber = errors.New("invalid number")

	// ErrInvalidTimestamp indicates a timestamp did not match the configured pattern.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// MappingKind identifies why a value could not be mapped into a Document.
type MappingKind int

const (
	MappingInvalidNumber MappingKind = iota + 1
	MappingInvalidTimestamp
	MappingEmptyKey
	MappingMissingKey
	MappingUnsupportedValue
)

func (k MappingKind) String() string {
	switch k {
	case MappingInvalidNumber:
		return "invalid number"
	case MappingInvalidTimestamp:
		return "invalid timestamp"
	case MappingEmptyKey:
		return "empty key"
	case MappingMissingKey:
		return "missing key"
	case MappingUnsupportedValue:
		return "unsupported value"
	default:
		return "mapping error"
	}
}

// MappingError reports a value coercion failure within one record.
type MappingError struct {
	Kind  MappingKind
	Field string
	Value string
	Err   error
}

func (e *MappingError) Error() string {
	msg := e.Kind.String()
	if e.Field != "" {
		msg = fmt.Sprintf("%s in field %q", msg, e.Field)
	}
	if e.Value != "" {
		msg = fmt.Sprintf("%s (value %q)", msg, e.Value)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *MappingError) Unwrap() error {
	return e.Err
}
