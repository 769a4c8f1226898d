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


// Package relational imports every base table of a SQL database.
//
// Open introspects the schema. The first item produced is a manifest
// describing every discovered table, keyed by the configured schema ID.
// After that each table is read with its own cursor, one table at a time,
// and every row becomes a document keyed "<table>::<primary key value>".
package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/poiesic/docimport/coerce"
	"github.com/poiesic/docimport/core"
	"github.com/poiesic/docimport/source"
)

// Name identifies this adapter in logs and fatal errors.
const Name = "relational"

// Defaults for unset Config fields.
const (
	DefaultSchemaPattern    = "public"
	DefaultTableNamePattern = "%"
	DefaultSchemaID         = "myDatabaseSchema"
)

var (
	// ErrUnsupportedDriver indicates a driver name with no introspection dialect.
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// ErrNoPrimaryKey indicates a row from a table without a primary key.
	ErrNoPrimaryKey = errors.New("table has no primary key")
)

// Config describes the database to import.
type Config struct {
	Driver           string
	DSN              string
	Catalog          string
	SchemaPattern    string
	TableNamePattern string
	SchemaID         string
}

// Source implements source.Source over a SQL database.
type Source struct {
	cfg     Config
	dialect dialect
	db      *sql.DB
	tables  []*tableInfo
	logger  *slog.Logger

	manifestSent bool
	current      int
	rows         *sql.Rows
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

// New creates a relational source. Nothing is opened until Open.
func New(cfg Config, opts ...Option) *Source {
	if cfg.SchemaPattern == "" {
		cfg.SchemaPattern = DefaultSchemaPattern
	}
	if cfg.TableNamePattern == "" {
		cfg.TableNamePattern = DefaultTableNamePattern
	}
	if cfg.SchemaID == "" {
		cfg.SchemaID = DefaultSchemaID
	}
	s := &Source{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tables returns the discovered table descriptors. It is empty before Open.
func (s *Source) Tables() []core.TableDescriptor {
	out := make([]core.TableDescriptor, len(s.tables))
	for i, t := range s.tables {
		out[i] = t.desc
	}
	return out
}

// Open connects and introspects the schema.
func (s *Source) Open(ctx context.Context) error {
	d, err := dialectFor(s.cfg.Driver)
	if err != nil {
		return source.Fatal(Name, err)
	}

	db, err := sql.Open(s.cfg.Driver, s.cfg.DSN)
	if err != nil {
		return source.Fatal(Name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return source.Fatal(Name, fmt.Errorf("connecting: %w", err))
	}

	tables, err := introspect(ctx, db, d, s.cfg)
	if err != nil {
		db.Close()
		return source.Fatal(Name, err)
	}

	s.dialect = d
	s.db = db
	s.tables = tables
	s.logger.Info("introspected database", "driver", s.cfg.Driver, "tables", len(tables))
	return nil
}

func introspect(ctx context.Context, db *sql.DB, d dialect, cfg Config) ([]*tableInfo, error) {
	refs, err := d.listTables(ctx, db, cfg)
	if err != nil {
		return nil, err
	}
	tables := make([]*tableInfo, 0, len(refs))
	for _, ref := range refs {
		info, err := d.describe(ctx, db, ref[0], ref[1])
		if err != nil {
			return nil, err
		}
		tables = append(tables, info)
	}
	return tables, nil
}

// Next returns the manifest first, then every row of every table.
func (s *Source) Next(ctx context.Context) (*core.Item, error) {
	if s.db == nil {
		return nil, source.ErrNotOpen
	}
	if !s.manifestSent {
		s.manifestSent = true
		return core.NewItem(s.cfg.SchemaID, s.manifest())
	}

	for {
		if s.rows == nil {
			if s.current >= len(s.tables) {
				return nil, io.EOF
			}
			table := s.tables[s.current]
			if len(table.columns) == 0 {
				s.current++
				continue
			}
			rows, err := s.db.QueryContext(ctx, selectAll(s.dialect, table))
			if err != nil {
				return nil, fmt.Errorf("querying %s: %w", table.desc.Name, err)
			}
			s.rows = rows
			s.logger.Debug("reading table", "table", table.desc.Name)
		}

		if s.rows.Next() {
			return s.convertRow(s.tables[s.current])
		}

		err := s.rows.Err()
		s.rows.Close()
		s.rows = nil
		s.current++
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.tables[s.current-1].desc.Name, err)
		}
	}
}

func (s *Source) manifest() *core.Document {
	doc := core.NewDocument()
	for _, t := range s.tables {
		doc.Set(t.desc.Name, t.desc.Manifest())
	}
	return doc
}

func selectAll(d dialect, t *tableInfo) string {
	cols := make([]string, len(t.desc.Columns))
	for i, c := range t.desc.Columns {
		cols[i] = d.quoteIdent(c.Name)
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + d.quote(t.desc.Schema, t.desc.Name)
}

func (s *Source) convertRow(t *tableInfo) (*core.Item, error) {
	raw := make([]any, len(t.columns))
	ptrs := make([]any, len(raw))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", t.desc.Name, err)
	}

	doc := core.NewDocument()
	var pkValue any
	for i, col := range t.desc.Columns {
		v, err := coerce.FromSQL(t.columns[i], raw[i])
		if err != nil {
			return nil, source.SkipRecord(t.desc.Name, coerce.WithField(err, col.Name))
		}
		doc.Set(col.Name, v)
		if col.Name == t.desc.PrimaryKey {
			pkValue = v
		}
	}

	if t.desc.PrimaryKey == "" {
		return nil, source.SkipRecord(t.desc.Name, ErrNoPrimaryKey)
	}
	pk := coerce.KeyString(pkValue)
	if strings.TrimSpace(pk) == "" {
		return nil, source.SkipRecord(t.desc.Name, &core.MappingError{
			Kind:  core.MappingMissingKey,
			Field: t.desc.PrimaryKey,
			Err:   core.ErrEmptyKey,
		})
	}

	item, err := core.NewItem(t.desc.Name+"::"+pk, doc)
	if err != nil {
		return nil, source.SkipRecord(t.desc.Name, err)
	}
	return item, nil
}

// Close closes any open cursor and the database handle.
func (s *Source) Close() error {
	var errs []error
	if s.rows != nil {
		errs = append(errs, s.rows.Close())
		s.rows = nil
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	return errors.Join(errs...)
}
