// Package delimited reads keyed documents from delimited text files and
// XLSX workbooks.
//
// Every record becomes one document whose fields are the first
// TotalColumns values, coerced to the configured semantic types and named
// in column order. The document key is KeyPrefix followed by the value of
// the key column.
//
// When SkipFirstLineForNames is false the first record supplies the
// column names, replacing any configured names. When it is true the
// configured names are used and the first record is treated as data.
package delimited

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/docimport/coerce"
	"github.com/poiesic/docimport/core"
	"github.com/poiesic/docimport/source"
)

// Name identifies this adapter in logs and fatal errors.
const Name = "delimited"

var (
	// ErrNoColumns indicates neither TotalColumns nor ColumnTypes is set.
	ErrNoColumns = errors.New("no columns configured")

	// ErrColumnMismatch indicates fewer names or types than TotalColumns.
	ErrColumnMismatch = errors.New("column configuration mismatch")

	// ErrKeyColumn indicates a key column index outside the column range.
	ErrKeyColumn = errors.New("key column index out of range")

	// ErrShortRecord indicates a record with fewer fields than TotalColumns.
	ErrShortRecord = errors.New("record has too few fields")

	// ErrMissingHeader indicates the input ended before the header record.
	ErrMissingHeader = errors.New("missing header record")
)

// Config describes a delimited input.
type Config struct {
	Path                  string
	Separator             rune
	Quote                 rune
	SkipFirstLineForNames bool
	ColumnNames           []string
	ColumnTypes           []string
	KeyColumnIndex        int
	KeyPrefix             string
	TotalColumns          int
	DateFormat            string
	LanguageTag           string
	Sheet                 string
}

// Source implements source.Source over a delimited file.
type Source struct {
	cfg     Config
	total   int
	columns []core.ColumnSpec
	dates   *coerce.DateParser
	reader  records
	logger  *slog.Logger
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

// New creates a delimited source. Nothing is read until Open.
func New(cfg Config, opts ...Option) *Source {
	if cfg.Separator == 0 {
		cfg.Separator = ','
	}
	if cfg.Quote == 0 {
		cfg.Quote = '"'
	}
	s := &Source{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens the input, resolves column names and validates the layout.
func (s *Source) Open(ctx context.Context) error {
	reader, err := s.openReader()
	if err != nil {
		return source.Fatal(Name, err)
	}
	if err := s.resolve(reader); err != nil {
		reader.Close()
		return source.Fatal(Name, err)
	}
	s.reader = reader
	s.logger.Info("opened delimited input",
		"path", s.cfg.Path,
		"columns", s.total,
		"key_column", s.columns[s.cfg.KeyColumnIndex].Name)
	return nil
}

func (s *Source) openReader() (records, error) {
	if strings.EqualFold(filepath.Ext(s.cfg.Path), ".xlsx") {
		return openXLSX(s.cfg.Path, s.cfg.Sheet)
	}
	f, err := os.Open(s.cfg.Path)
	if err != nil {
		return nil, err
	}
	return newTextReader(f, f, s.cfg.Separator, s.cfg.Quote), nil
}

func (s *Source) resolve(reader records) error {
	total := s.cfg.TotalColumns
	if total <= 0 {
		total = len(s.cfg.ColumnTypes)
	}
	if total <= 0 {
		return ErrNoColumns
	}
	if x, ok := reader.(*xlsxReader); ok {
		x.setWidth(total)
	}

	names := s.cfg.ColumnNames
	if !s.cfg.SkipFirstLineForNames {
		header, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return ErrMissingHeader
		}
		if err != nil {
			return fmt.Errorf("reading header: %w", err)
		}
		if len(header) < total {
			return fmt.Errorf("%w: header has %d names, need %d", ErrColumnMismatch, len(header), total)
		}
		names = header[:total]
	}

	if len(s.cfg.ColumnTypes) < total {
		return fmt.Errorf("%w: %d types for %d columns", ErrColumnMismatch, len(s.cfg.ColumnTypes), total)
	}
	if len(names) < total {
		return fmt.Errorf("%w: %d names for %d columns", ErrColumnMismatch, len(names), total)
	}
	if s.cfg.KeyColumnIndex < 0 || s.cfg.KeyColumnIndex >= total {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrKeyColumn, s.cfg.KeyColumnIndex, total)
	}

	columns := make([]core.ColumnSpec, total)
	for i := range total {
		t, err := core.ParseSemanticType(s.cfg.ColumnTypes[i])
		if err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
		columns[i] = core.ColumnSpec{Name: names[i], Type: t, SourceType: s.cfg.ColumnTypes[i]}
	}

	dates, err := coerce.NewDateParser(s.cfg.DateFormat, s.cfg.LanguageTag)
	if err != nil {
		return err
	}

	s.total = total
	s.columns = columns
	s.dates = dates
	return nil
}

// Next returns the next record as an item.
func (s *Source) Next(ctx context.Context) (*core.Item, error) {
	if s.reader == nil {
		return nil, source.ErrNotOpen
	}

	rec, err := s.reader.Read()
	if err != nil {
		var malformed *malformedError
		if errors.As(err, &malformed) {
			return nil, source.SkipRecord(s.reader.Position(), err)
		}
		return nil, err
	}
	pos := s.reader.Position()
	if len(rec) < s.total {
		return nil, source.SkipRecord(pos, fmt.Errorf("%w: got %d, want %d", ErrShortRecord, len(rec), s.total))
	}

	doc := core.NewDocument()
	values := make([]any, s.total)
	for i, col := range s.columns {
		v, err := coerce.FromText(col.Type, rec[i], s.dates)
		if err != nil {
			return nil, source.SkipRecord(pos, coerce.WithField(err, col.Name))
		}
		values[i] = v
		doc.Set(col.Name, v)
	}

	keyCol := s.cfg.KeyColumnIndex
	if rec[keyCol] == "" {
		return nil, source.SkipRecord(pos, &core.MappingError{
			Kind:  core.MappingEmptyKey,
			Field: s.columns[keyCol].Name,
			Err:   core.ErrEmptyKey,
		})
	}

	item, err := core.NewItem(s.cfg.KeyPrefix+coerce.KeyString(values[keyCol]), doc)
	if err != nil {
		return nil, source.SkipRecord(pos, err)
	}
	return item, nil
}

// Close closes the input file.
func (s *Source) Close() error {
	if s.reader == nil {
		return nil
	}
	err := s.reader.Close()
	s.reader = nil
	return err
}
