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

import "errors"

// ValidateKey validates a document key.
//
// The only rule is that the key is non-empty. Whitespace is a valid key.
func ValidateKey(key string) error {
	if key == "" {
		return &MappingError{Kind: MappingEmptyKey, Err: ErrEmptyKey}
	}
	return nil
}

// IsMappingKind reports whether err is a MappingError of the given kind.
func IsMappingKind(err error, kind MappingKind) bool {
	var me *MappingError
	if errors.As(err, &me) {
		return me.Kind == kind
	}
	return false
}
