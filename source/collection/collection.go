// Package collection imports every document of a live MongoDB collection.
//
// Each document is tagged with a type field before it is stored, and its
// key is derived from _id.
package collection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/poiesic/docimport/coerce"
	"github.com/poiesic/docimport/core"
	"github.com/poiesic/docimport/source"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Name identifies this adapter in logs and fatal errors.
const Name = "collection"

// Defaults for unset Config fields.
const (
	DefaultURI        = "mongodb://127.0.0.1:27017/"
	DefaultDatabase   = "test"
	DefaultCollection = "restaurants"
	DefaultTypeField  = "type"
	DefaultTypeValue  = "restaurant"
)

// ErrUnsupportedID indicates an _id that cannot be rendered as a key.
var ErrUnsupportedID = errors.New("unsupported _id")

// Config describes the collection to import.
type Config struct {
	URI        string
	Database   string
	Collection string
	TypeField  string
	TypeValue  string
}

// cursor is the subset of *mongo.Cursor the source reads through.
type cursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

// Source implements source.Source over a MongoDB collection.
type Source struct {
	cfg    Config
	client *mongo.Client
	cursor cursor
	logger *slog.Logger
}

var _ source.Source = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a collection source. Nothing is opened until Open.
func New(cfg Config, opts ...Option) *Source {
	if cfg.URI == "" {
		cfg.URI = DefaultURI
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.TypeField == "" {
		cfg.TypeField = DefaultTypeField
	}
	if cfg.TypeValue == "" {
		cfg.TypeValue = DefaultTypeValue
	}
	s := &Source{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects, verifies the server is reachable and starts a full scan.
func (s *Source) Open(ctx context.Context) error {
	client, err := mongo.Connect(options.Client().ApplyURI(s.cfg.URI))
	if err != nil {
		return source.Fatal(Name, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return source.Fatal(Name, fmt.Errorf("connecting: %w", err))
	}

	coll := client.Database(s.cfg.Database).Collection(s.cfg.Collection)
	cur, err := coll.Find(ctx, bson.D{})
	if err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return source.Fatal(Name, fmt.Errorf("querying %s.%s: %w", s.cfg.Database, s.cfg.Collection, err))
	}

	s.client = client
	s.cursor = cur
	s.logger.Info("scanning collection", "database", s.cfg.Database, "collection", s.cfg.Collection)
	return nil
}

// Next returns the next document, tagged with the configured type field.
func (s *Source) Next(ctx context.Context) (*core.Item, error) {
	if s.cursor == nil {
		return nil, source.ErrNotOpen
	}
	if !s.cursor.Next(ctx) {
		if err := s.cursor.Err(); err != nil {
			return nil, fmt.Errorf("reading cursor: %w", err)
		}
		return nil, io.EOF
	}

	var raw bson.D
	if err := s.cursor.Decode(&raw); err != nil {
		return nil, source.SkipRecord("", err)
	}

	key, err := keyOf(raw)
	if err != nil {
		return nil, source.SkipRecord("", err)
	}
	raw = setField(raw, s.cfg.TypeField, s.cfg.TypeValue)

	item, err := core.NewItem(key, coerce.FromBSONDocument(raw))
	if err != nil {
		return nil, source.SkipRecord(key, err)
	}
	return item, nil
}

// keyOf renders _id as a document key.
func keyOf(d bson.D) (string, error) {
	for _, e := range d {
		if e.Key != "_id" {
			continue
		}
		switch id := e.Value.(type) {
		case bson.ObjectID:
			return id.Hex(), nil
		case string:
			return id, nil
		case int32:
			return strconv.FormatInt(int64(id), 10), nil
		case int64:
			return strconv.FormatInt(id, 10), nil
		case int:
			return strconv.Itoa(id), nil
		}
		return "", fmt.Errorf("%w: %T", ErrUnsupportedID, e.Value)
	}
	return "", &core.MappingError{Kind: core.MappingMissingKey, Field: "_id", Err: core.ErrEmptyKey}
}

// setField overwrites name in place, or appends it when absent.
func setField(d bson.D, name string, value any) bson.D {
	for i := range d {
		if d[i].Key == name {
			d[i].Value = value
			return d
		}
	}
	return append(d, bson.E{Key: name, Value: value})
}

// Close closes the cursor and disconnects.
func (s *Source) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if s.cursor != nil {
		errs = append(errs, s.cursor.Close(ctx))
		s.cursor = nil
	}
	if s.client != nil {
		errs = append(errs, s.client.Disconnect(ctx))
		s.client = nil
	}
	return errors.Join(errs...)
}
