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


package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docimport/core"
	"github.com/poiesic/docimport/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
	source  string
	runID   string
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{
		backend: backend,
	}
}

// ForRun returns a writer that stamps every stored document with the
// given source name and run ID. It shares the receiver's backend.
func (r *DocumentRepository) ForRun(source, runID string) storage.DocumentWriter {
	return &DocumentRepository{
		backend: r.backend,
		source:  source,
		runID:   runID,
	}
}

// Close is a no-op; the backend owns the database handle.
func (r *DocumentRepository) Close() error {
	return nil
}

// Upsert stores doc under key, replacing any existing document.
func (r *DocumentRepository) Upsert(ctx context.Context, key string, doc *core.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := core.ValidateKey(key); err != nil {
		return err
	}
	if doc == nil {
		doc = core.NewDocument()
	}
	body, err := doc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}

	stored := &core.StoredDocument{
		Key:        key,
		Body:       body,
		Source:     r.source,
		RunID:      r.runID,
		ImportedAt: time.Now().UTC(),
		Checksum:   core.ChecksumOf(body),
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeDocumentKey(key), storage.MarshalStoredDocument(stored)); err != nil {
			return err
		}
		// The write may have outlived its deadline while queued.
		if err := ctx.Err(); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Get retrieves a stored document by key.
func (r *DocumentRepository) Get(ctx context.Context, key string) (*core.StoredDocument, error) {
	var result *core.StoredDocument
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, makeDocumentKey(key))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if core.ChecksumOf(result.Body) != result.Checksum {
		return nil, fmt.Errorf("%w: document %q", storage.ErrChecksumMismatch, key)
	}
	return result, nil
}

// Delete removes a stored document.
func (r *DocumentRepository) Delete(ctx context.Context, key string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		dbKey := makeDocumentKey(key)
		if _, err := tx.Get(dbKey); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Delete(dbKey); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Count returns the number of stored documents.
func (r *DocumentRepository) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	}, false)
	return count, err
}

// readDocument reads and deserializes a document within a transaction.
func readDocument(tx *badger.Txn, key []byte) (*core.StoredDocument, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	var doc *core.StoredDocument
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalStoredDocument(val)
		return unmarshalErr
	})
	return doc, err
}
