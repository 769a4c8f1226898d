package relational

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/poiesic/docimport/core"
	"github.com/poiesic/docimport/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, statements ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path
}

func fixtureDB(t *testing.T) string {
	return newTestDB(t,
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, balance REAL, active BOOLEAN, joined DATE)`,
		`INSERT INTO customers VALUES (1, 'Ada', 10.5, 1, '2024-01-02'), (2, 'Grace', NULL, 0, '2024-02-03')`,
		`CREATE TABLE notes (body TEXT)`,
		`INSERT INTO notes VALUES ('orphan')`,
		`CREATE TABLE orders (customer_id INTEGER, line INTEGER, sku VARCHAR(10), PRIMARY KEY (customer_id, line))`,
		`INSERT INTO orders VALUES (1, 1, 'A-1'), (NULL, 2, 'B-2')`,
		`CREATE VIEW rich_customers AS SELECT * FROM customers WHERE balance > 5`,
	)
}

type drained struct {
	items   []*core.Item
	skipped []error
}

func drainSource(t *testing.T, src *Source) drained {
	t.Helper()
	var out drained
	for {
		item, err := src.Next(context.Background())
		if err == io.EOF {
			return out
		}
		if source.IsSkippable(err) {
			out.skipped = append(out.skipped, err)
			continue
		}
		require.NoError(t, err)
		out.items = append(out.items, item)
	}
}

func toJSON(t *testing.T, doc *core.Document) string {
	t.Helper()
	body, err := json.Marshal(doc)
	require.NoError(t, err)
	return string(body)
}

func TestSource_ImportsAllTables(t *testing.T) {
	src := New(Config{Driver: "sqlite", DSN: fixtureDB(t)})
	require.NoError(t, src.Open(context.Background()))
	defer src.Close()

	tables := src.Tables()
	require.Len(t, tables, 3)
	assert.Equal(t, "customers", tables[0].Name)
	assert.Equal(t, "id", tables[0].PrimaryKey)
	assert.Equal(t, "notes", tables[1].Name)
	assert.Empty(t, tables[1].PrimaryKey)
	assert.Equal(t, "orders", tables[2].Name)
	assert.Equal(t, "customer_id", tables[2].PrimaryKey)

	out := drainSource(t, src)
	require.Len(t, out.items, 4)

	manifest := out.items[0]
	assert.Equal(t, DefaultSchemaID, manifest.Key)
	assert.Equal(t, []string{"customers", "notes", "orders"}, core.Fields(manifest.Doc))

	assert.Equal(t, "customers::1", out.items[1].Key)
	assert.Equal(t,
		`{"id":1,"name":"Ada","balance":10.5,"active":true,"joined":1704153600000}`,
		toJSON(t, out.items[1].Doc))
	assert.Equal(t, "customers::2", out.items[2].Key)
	assert.Equal(t,
		`{"id":2,"name":"Grace","balance":null,"active":false,"joined":1706918400000}`,
		toJSON(t, out.items[2].Doc))
	assert.Equal(t, "orders::1", out.items[3].Key)

	require.Len(t, out.skipped, 2)
	assert.ErrorIs(t, out.skipped[0], ErrNoPrimaryKey)
	assert.True(t, core.IsMappingKind(out.skipped[1], core.MappingMissingKey))
}

func TestSource_ManifestShape(t *testing.T) {
	path := newTestDB(t, `CREATE TABLE t (k VARCHAR(8) PRIMARY KEY, n BIGINT, at TIMESTAMP)`)
	src := New(Config{Driver: "sqlite", DSN: path, SchemaID: "schema"})
	require.NoError(t, src.Open(context.Background()))
	defer src.Close()

	item, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "schema", item.Key)
	assert.Equal(t,
		`{"t":{"tableName":"t","primaryKey":"k","columns":[`+
			`{"name":"k","type":"varchar(8)","semanticType":"STRING"},`+
			`{"name":"n","type":"bigint","semanticType":"INTEGER"},`+
			`{"name":"at","type":"timestamp","semanticType":"TIMESTAMP"}]}}`,
		toJSON(t, item.Doc))

	_, err = src.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestSource_TableNamePattern(t *testing.T) {
	src := New(Config{Driver: "sqlite", DSN: fixtureDB(t), TableNamePattern: "cust%"})
	require.NoError(t, src.Open(context.Background()))
	defer src.Close()

	tables := src.Tables()
	require.Len(t, tables, 1)
	assert.Equal(t, "customers", tables[0].Name)
}

func TestSource_EmptyDatabase(t *testing.T) {
	src := New(Config{Driver: "sqlite", DSN: newTestDB(t)})
	require.NoError(t, src.Open(context.Background()))
	defer src.Close()

	out := drainSource(t, src)
	require.Len(t, out.items, 1)
	assert.Equal(t, 0, out.items[0].Doc.Len())
}

func TestSource_OpenFailures(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{name: "unknown driver", cfg: Config{Driver: "oracle"}, want: ErrUnsupportedDriver},
		{name: "unreachable", cfg: Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "missing", "dir", "x.db")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.cfg).Open(context.Background())
			require.Error(t, err)
			var fe *source.FatalError
			assert.ErrorAs(t, err, &fe)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestSource_NextBeforeOpen(t *testing.T) {
	_, err := New(Config{Driver: "sqlite"}).Next(context.Background())
	assert.ErrorIs(t, err, source.ErrNotOpen)
}

func TestDialectQuoting(t *testing.T) {
	pg, err := dialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, `"public"."odd""name"`, pg.quote("public", `odd"name`))

	my, err := dialectFor("mysql")
	require.NoError(t, err)
	assert.Equal(t, "`shop`.`orders`", my.quote("shop", "orders"))

	lite, err := dialectFor("sqlite")
	require.NoError(t, err)
	assert.Equal(t, `"orders"`, lite.quote("main", "orders"))
}
