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


// Package storage provides the storage abstraction layer for docimport.
//
// This package defines the interfaces the pipeline writes through, so the
// delivery stage never depends on a concrete store. The BadgerDB
// implementation lives in the badger subpackage.
//
// # Architecture
//
//   - DocumentWriter: the single write capability the delivery sink needs
//   - DocumentRepository: writer plus read/delete/count for operators and tests
//   - RunRepository: history of pipeline runs
//
// # Error Classification
//
// Writers report transient conditions by wrapping ErrOverloaded (the store
// is busy, retry soon) or ErrCancelled (the store dropped the request,
// retry later). Any other error is treated as permanent by the delivery sink.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	docs := badger.NewDocumentRepository(backend)
//	err = docs.Upsert(ctx, "users::1", doc)
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
