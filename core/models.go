package core

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Document is an ordered mapping from field name to a JSON-compatible value.
// Values are string, int64, float64, bool, *Document, []any or nil.
// Field order is preserved when the document is marshaled to JSON.
type Document = orderedmap.OrderedMap[string, any]

// NewDocument creates an empty Document.
func NewDocument() *Document {
	return orderedmap.New[string, any]()
}

// Fields returns the field names of doc in insertion order.
func Fields(doc *Document) []string {
	names := make([]string, 0, doc.Len())
	for pair := doc.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Item is a keyed document produced by a source and consumed by the delivery sink.
type Item struct {
	Key string
	Doc *Document
}

// NewItem builds an Item, rejecting empty keys.
func NewItem(key string, doc *Document) (*Item, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = NewDocument()
	}
	return &Item{Key: key, Doc: doc}, nil
}

// SemanticType is the coarse type a source column is mapped to before coercion.
type SemanticType int

const (
	// TypeString passes values through as text.
	TypeString SemanticType = iota + 1
	// TypeInteger parses values as 64-bit signed integers.
	TypeInteger
	// TypeFloat parses values as 64-bit floats.
	TypeFloat
	// TypeBoolean parses values as booleans.
	TypeBoolean
	// TypeTimestamp parses values into epoch milliseconds.
	TypeTimestamp
)

var semanticTypeNames = map[SemanticType]string{
	TypeString:    "STRING",
	TypeInteger:   "INTEGER",
	TypeFloat:     "FLOAT",
	TypeBoolean:   "BOOLEAN",
	TypeTimestamp: "TIMESTAMP",
}

func (t SemanticType) String() string {
	if name, ok := semanticTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("SemanticType(%d)", int(t))
}

// ParseSemanticType parses a type name. LONG, DOUBLE and DATE are accepted
// as aliases for INTEGER, FLOAT and TIMESTAMP.
func ParseSemanticType(name string) (SemanticType, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "STRING":
		return TypeString, nil
	case "INTEGER", "LONG":
		return TypeInteger, nil
	case "FLOAT", "DOUBLE":
		return TypeFloat, nil
	case "BOOLEAN":
		return TypeBoolean, nil
	case "TIMESTAMP", "DATE":
		return TypeTimestamp, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSemanticType, name)
}

// ColumnSpec describes one column of a delimited or relational source.
type ColumnSpec struct {
	Name       string
	Type       SemanticType
	SourceType string // source-native type tag, e.g. "varchar" or "csv"
}

// TableDescriptor describes one base table discovered by schema introspection.
type TableDescriptor struct {
	Schema     string
	Name       string
	Columns    []ColumnSpec
	PrimaryKey string // empty when the table has no primary key
}

// Manifest renders the table as a schema-manifest entry.
func (t *TableDescriptor) Manifest() *Document {
	doc := NewDocument()
	doc.Set("tableName", t.Name)
	if t.PrimaryKey == "" {
		doc.Set("primaryKey", nil)
	} else {
		doc.Set("primaryKey", t.PrimaryKey)
	}
	columns := make([]any, 0, len(t.Columns))
	for _, c := range t.Columns {
		col := NewDocument()
		col.Set("name", c.Name)
		col.Set("type", c.SourceType)
		col.Set("semanticType", c.Type.String())
		columns = append(columns, col)
	}
	doc.Set("columns", columns)
	return doc
}

// ErrorKind classifies a failed store write for retry policy selection.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindCancelled
	KindOverloaded
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindCancelled:
		return "cancelled"
	case KindOverloaded:
		return "overloaded"
	case KindTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// DeliveryOutcome is the terminal result of delivering one item.
type DeliveryOutcome struct {
	Key       string
	Succeeded bool
	Kind      ErrorKind // meaningful only when Succeeded is false
	Err       error
	Attempts  int
}

// StoredDocument is a document as persisted by the store.
type StoredDocument struct {
	Key        string
	Body       []byte // JSON
	Source     string
	RunID      string
	ImportedAt time.Time
	Checksum   uint64
}

// RunRecord summarizes one pipeline run.
type RunRecord struct {
	RunID      string
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time
	Read       int64
	Skipped    int64
	Succeeded  int64
	Failed     int64
	Fatal      string // empty unless the run ended on a fatal error
}

// ChecksumOf computes a 64-bit BLAKE2b digest of a document body.
func ChecksumOf(body []byte) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(body)
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}
