package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docimport/core"
	"github.com/poiesic/docimport/storage"
)

// RunRepository implements storage.RunRepository for BadgerDB.
type RunRepository struct {
	backend *Backend
}

var _ storage.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository.
func NewRunRepository(backend *Backend) *RunRepository {
	return &RunRepository{
		backend: backend,
	}
}

// SaveRun persists a run summary. A zero StartedAt is set to now.
func (r *RunRepository) SaveRun(ctx context.Context, run *core.RunRecord) error {
	if run.RunID == "" {
		return storage.ErrInvalidQuery
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRunKey(run.StartedAt, run.RunID)
		if err := tx.Set(key, storage.MarshalRunRecord(run)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListRuns returns up to limit runs, most recent first. A limit of 0
// returns every run.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]*core.RunRecord, error) {
	if limit < 0 {
		return nil, storage.ErrInvalidQuery
	}

	var runs []*core.RunRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runPrefix)
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Reverse iteration starts from the largest key under the prefix.
		seek := append([]byte(runPrefix), 0xff)
		for iter.Seek(seek); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := iter.Item().Value(func(val []byte) error {
				run, err := storage.UnmarshalRunRecord(val)
				if err != nil {
					return err
				}
				runs = append(runs, run)
				return nil
			})
			if err != nil {
				return err
			}
			if limit > 0 && len(runs) >= limit {
				break
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return runs, nil
}
