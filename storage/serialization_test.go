package storage

import (
	"testing"
	"time"

	"github.com/poiesic/docimport/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoredDocumentRoundTrip(t *testing.T) {
	body := []byte(`{"id":7,"name":"widget"}`)
	doc := &core.StoredDocument{
		Key:        "products::7",
		Body:       body,
		Source:     "products.csv",
		RunID:      "2b1f",
		ImportedAt: time.Date(2025, 6, 1, 8, 30, 0, 123000, time.UTC),
		Checksum:   core.ChecksumOf(body),
	}

	data := MarshalStoredDocument(doc)
	assert.Len(t, data, StoredDocumentMUS.Size(*doc))

	decoded, err := UnmarshalStoredDocument(data)
	require.NoError(t, err)
	assert.Equal(t, doc.Key, decoded.Key)
	assert.Equal(t, doc.Body, decoded.Body)
	assert.Equal(t, doc.Source, decoded.Source)
	assert.Equal(t, doc.RunID, decoded.RunID)
	assert.True(t, doc.ImportedAt.Equal(decoded.ImportedAt))
	assert.Equal(t, doc.Checksum, decoded.Checksum)
}

func TestRunRecordRoundTrip(t *testing.T) {
	run := &core.RunRecord{
		RunID:      "run-1",
		Source:     "jdbc:orders",
		StartedAt:  time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2025, 6, 1, 8, 5, 0, 0, time.UTC),
		Read:       120,
		Skipped:    3,
		Succeeded:  115,
		Failed:     2,
	}

	decoded, err := UnmarshalRunRecord(MarshalRunRecord(run))
	require.NoError(t, err)
	assert.Equal(t, run, decoded)
}

func TestRunRecord_ZeroTimes(t *testing.T) {
	run := &core.RunRecord{RunID: "r", Fatal: "dial tcp: refused"}

	decoded, err := UnmarshalRunRecord(MarshalRunRecord(run))
	require.NoError(t, err)
	assert.True(t, decoded.StartedAt.IsZero())
	assert.True(t, decoded.FinishedAt.IsZero())
	assert.Equal(t, "dial tcp: refused", decoded.Fatal)
}

func TestUnmarshal_Truncated(t *testing.T) {
	doc := &core.StoredDocument{Key: "k", Body: []byte("{}"), Checksum: 1}
	data := MarshalStoredDocument(doc)

	_, err := UnmarshalStoredDocument(data[:len(data)-1])
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalStoredDocument(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalRunRecord([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
