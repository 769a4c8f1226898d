package storage

import (
	"context"

	"github.com/poiesic/docimport/core"
)

// DocumentWriter is the store write capability consumed by the delivery sink.
// Implementations must be safe for concurrent use.
type DocumentWriter interface {
	// Upsert stores doc under key, replacing any previous document.
	// Transient failures are reported by wrapping ErrOverloaded or ErrCancelled;
	// context errors are returned unwrapped or wrapped with %w.
	Upsert(ctx context.Context, key string, doc *core.Document) error
}

// DocumentRepository provides operations for managing imported documents.
type DocumentRepository interface {
	DocumentWriter

	// Get retrieves a stored document by key.
	// Returns ErrNotFound if the key doesn't exist.
	// Returns ErrChecksumMismatch if the stored body fails verification.
	Get(ctx context.Context, key string) (*core.StoredDocument, error)

	// Delete removes a stored document.
	// Returns ErrNotFound if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Close releases repository resources. The backend is closed separately.
	Close() error
}

// RunRepository persists pipeline run summaries.
type RunRepository interface {
	// SaveRun persists a run summary.
	SaveRun(ctx context.Context, run *core.RunRecord) error

	// ListRuns returns up to limit run summaries, most recent first.
	// A limit of 0 returns all runs.
	ListRuns(ctx context.Context, limit int) ([]*core.RunRecord, error)
}
