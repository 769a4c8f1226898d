package badger

import (
	"fmt"
	"time"
)

// Key prefixes for different data types
const (
	documentPrefix = "doc:"
	runPrefix      = "run:"
)

// makeDocumentKey generates the key for an imported document.
func makeDocumentKey(key string) []byte {
	return []byte(documentPrefix + key)
}

// makeRunKey generates a key for a run record.
// Format: run:<zero-padded unix nanos>:<runID>, so keys sort by start time.
func makeRunKey(startedAt time.Time, runID string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", runPrefix, startedAt.UnixNano(), runID))
}
