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


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docimport/core"
)

// StoredDocumentMUS serializes core.StoredDocument in MUS format.
var StoredDocumentMUS = storedDocumentMUS{}

// RunRecordMUS serializes core.RunRecord in MUS format.
var RunRecordMUS = runRecordMUS{}

type storedDocumentMUS struct{}

func (storedDocumentMUS) Size(d core.StoredDocument) (size int) {
	size += ord.String.Size(d.Key)
	size += ord.ByteSlice.Size(d.Body)
	size += ord.String.Size(d.Source)
	size += ord.String.Size(d.RunID)
	size += varint.Int64.Size(timeMicro(d.ImportedAt))
	return size + varint.Uint64.Size(d.Checksum)
}

func (storedDocumentMUS) Marshal(d core.StoredDocument, bs []byte) (n int) {
	n = ord.String.Marshal(d.Key, bs)
	n += ord.ByteSlice.Marshal(d.Body, bs[n:])
	n += ord.String.Marshal(d.Source, bs[n:])
	n += ord.String.Marshal(d.RunID, bs[n:])
	n += varint.Int64.Marshal(timeMicro(d.ImportedAt), bs[n:])
	return n + varint.Uint64.Marshal(d.Checksum, bs[n:])
}

func (storedDocumentMUS) Unmarshal(bs []byte) (d core.StoredDocument, n int, err error) {
	var n1 int
	if d.Key, n1, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	if d.Body, n1, err = ord.ByteSlice.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.Source, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if d.RunID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	var micros int64
	if micros, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	d.ImportedAt = microTime(micros)
	if d.Checksum, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

type runRecordMUS struct{}

func (runRecordMUS) Size(r core.RunRecord) (size int) {
	size += ord.String.Size(r.RunID)
	size += ord.String.Size(r.Source)
	size += varint.Int64.Size(timeMicro(r.StartedAt))
	size += varint.Int64.Size(timeMicro(r.FinishedAt))
	size += varint.Int64.Size(r.Read)
	size += varint.Int64.Size(r.Skipped)
	size += varint.Int64.Size(r.Succeeded)
	size += varint.Int64.Size(r.Failed)
	return size + ord.String.Size(r.Fatal)
}

func (runRecordMUS) Marshal(r core.RunRecord, bs []byte) (n int) {
	n = ord.String.Marshal(r.RunID, bs)
	n += ord.String.Marshal(r.Source, bs[n:])
	n += varint.Int64.Marshal(timeMicro(r.StartedAt), bs[n:])
	n += varint.Int64.Marshal(timeMicro(r.FinishedAt), bs[n:])
	n += varint.Int64.Marshal(r.Read, bs[n:])
	n += varint.Int64.Marshal(r.Skipped, bs[n:])
	n += varint.Int64.Marshal(r.Succeeded, bs[n:])
	n += varint.Int64.Marshal(r.Failed, bs[n:])
	return n + ord.String.Marshal(r.Fatal, bs[n:])
}

func (runRecordMUS) Unmarshal(bs []byte) (r core.RunRecord, n int, err error) {
	var n1 int
	if r.RunID, n1, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	if r.Source, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	var started, finished int64
	if started, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if finished, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	r.StartedAt, r.FinishedAt = microTime(started), microTime(finished)
	for _, dst := range []*int64{&r.Read, &r.Skipped, &r.Succeeded, &r.Failed} {
		if *dst, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
			return
		}
		n += n1
	}
	if r.Fatal, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

// Unix micro timestamps; the zero time round-trips as zero.
func timeMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func microTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

// MarshalStoredDocument serializes a StoredDocument to bytes.
func MarshalStoredDocument(doc *core.StoredDocument) []byte {
	buf := make([]byte, StoredDocumentMUS.Size(*doc))
	StoredDocumentMUS.Marshal(*doc, buf)
	return buf
}

// UnmarshalStoredDocument deserializes a StoredDocument from bytes.
func UnmarshalStoredDocument(data []byte) (*core.StoredDocument, error) {
	doc, _, err := StoredDocumentMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &doc, nil
}

// MarshalRunRecord serializes a RunRecord to bytes.
func MarshalRunRecord(run *core.RunRecord) []byte {
	buf := make([]byte, RunRecordMUS.Size(*run))
	RunRecordMUS.Marshal(*run, buf)
	return buf
}

// UnmarshalRunRecord deserializes a RunRecord from bytes.
func UnmarshalRunRecord(data []byte) (*core.RunRecord, error) {
	run, _, err := RunRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &run, nil
}
