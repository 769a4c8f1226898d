package relational

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/poiesic/docimport/coerce"
	"github.com/poiesic/docimport/core"
)

// tableInfo is a discovered table with the coercion info for each column.
type tableInfo struct {
	desc    core.TableDescriptor
	columns []coerce.SQLColumn
}

// dialect hides the catalog queries and identifier quoting of one database family.
type dialect interface {
	listTables(ctx context.Context, db *sql.DB, cfg Config) ([][2]string, error)
	describe(ctx context.Context, db *sql.DB, schema, table string) (*tableInfo, error)
	quote(schema, table string) string
	quoteIdent(name string) string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return infoSchema{placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }, quoteChar: `"`}, nil
	case "mysql":
		return infoSchema{placeholder: func(int) string { return "?" }, quoteChar: "`", currentDB: true}, nil
	case "sqlite":
		return sqliteDialect{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
}

// infoSchema introspects through the standard information_schema views.
type infoSchema struct {
	placeholder func(n int) string
	quoteChar   string
	// currentDB restricts discovery to DATABASE() when no explicit schema
	// pattern is configured; MySQL has no "public" schema.
	currentDB bool
}

func (d infoSchema) listTables(ctx context.Context, db *sql.DB, cfg Config) ([][2]string, error) {
	var (
		where []string
		args  []any
	)
	where = append(where, "table_type = 'BASE TABLE'")
	if d.currentDB && (cfg.SchemaPattern == "" || cfg.SchemaPattern == DefaultSchemaPattern) {
		where = append(where, "table_schema = DATABASE()")
	} else {
		args = append(args, cfg.SchemaPattern)
		where = append(where, "table_schema LIKE "+d.placeholder(len(args)))
	}
	args = append(args, cfg.TableNamePattern)
	where = append(where, "table_name LIKE "+d.placeholder(len(args)))
	if cfg.Catalog != "" {
		args = append(args, cfg.Catalog)
		where = append(where, "table_catalog = "+d.placeholder(len(args)))
	}

	query := "SELECT table_schema, table_name FROM information_schema.tables WHERE " +
		strings.Join(where, " AND ") + " ORDER BY table_schema, table_name"
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables [][2]string
	for rows.Next() {
		var schema, name string
		if err := rows.Scan(&schema, &name); err != nil {
			return nil, err
		}
		tables = append(tables, [2]string{schema, name})
	}
	return tables, rows.Err()
}

func (d infoSchema) describe(ctx context.Context, db *sql.DB, schema, table string) (*tableInfo, error) {
	query := fmt.Sprintf(`SELECT column_name, data_type, udt_name
FROM information_schema.columns
WHERE table_schema = %s AND table_name = %s
ORDER BY ordinal_position`, d.placeholder(1), d.placeholder(2))
	if d.quoteChar == "`" {
		// MySQL has no udt_name; column_type carries the full declaration.
		query = strings.Replace(query, "udt_name", "column_type", 1)
	}

	rows, err := db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("describing %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	info := &tableInfo{desc: core.TableDescriptor{Schema: schema, Name: table}}
	for rows.Next() {
		var name, dataType string
		var udt sql.NullString
		if err := rows.Scan(&name, &dataType, &udt); err != nil {
			return nil, err
		}
		col := coerce.SQLColumn{Type: coerce.ParseSQLType(dataType)}
		if col.Type == coerce.SQLArray {
			col.Elem = coerce.ElemType(udt.String)
		}
		info.add(name, dataType, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pk, err := d.primaryKey(ctx, db, schema, table)
	if err != nil {
		return nil, err
	}
	info.desc.PrimaryKey = pk
	return info, nil
}

func (d infoSchema) primaryKey(ctx context.Context, db *sql.DB, schema, table string) (string, error) {
	query := fmt.Sprintf(`SELECT kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name
 AND tc.table_schema = kcu.table_schema
 AND tc.table_name = kcu.table_name
WHERE tc.constraint_type = 'PRIMARY KEY'
  AND tc.table_schema = %s AND tc.table_name = %s
ORDER BY kcu.ordinal_position`, d.placeholder(1), d.placeholder(2))

	rows, err := db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return "", fmt.Errorf("reading primary key of %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	// Composite keys use their first column.
	pk := ""
	if rows.Next() {
		if err := rows.Scan(&pk); err != nil {
			return "", err
		}
	}
	return pk, rows.Err()
}

func (d infoSchema) quote(schema, table string) string {
	return d.quoteIdent(schema) + "." + d.quoteIdent(table)
}

func (d infoSchema) quoteIdent(name string) string {
	return d.quoteChar + strings.ReplaceAll(name, d.quoteChar, d.quoteChar+d.quoteChar) + d.quoteChar
}

// sqliteDialect introspects through sqlite_master and PRAGMA table_info.
type sqliteDialect struct{}

func (sqliteDialect) listTables(ctx context.Context, db *sql.DB, cfg Config) ([][2]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' AND name LIKE ?
ORDER BY name`, cfg.TableNamePattern)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables [][2]string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, [2]string{"main", name})
	}
	return tables, rows.Err()
}

func (d sqliteDialect) describe(ctx context.Context, db *sql.DB, schema, table string) (*tableInfo, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+quoteDouble(table)+")")
	if err != nil {
		return nil, fmt.Errorf("describing %s: %w", table, err)
	}
	defer rows.Close()

	info := &tableInfo{desc: core.TableDescriptor{Schema: schema, Name: table}}
	firstPK := 0
	for rows.Next() {
		var (
			cid     int
			name    string
			declTyp string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &declTyp, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		col := coerce.SQLColumn{Type: coerce.ParseSQLType(declTyp)}
		if col.Type == coerce.SQLArray {
			col.Elem = coerce.ElemType(declTyp)
		}
		info.add(name, declTyp, col)
		if pk > 0 && (firstPK == 0 || pk < firstPK) {
			firstPK = pk
			info.desc.PrimaryKey = name
		}
	}
	return info, rows.Err()
}

func (sqliteDialect) quote(_, table string) string {
	return quoteDouble(table)
}

func (sqliteDialect) quoteIdent(name string) string {
	return quoteDouble(name)
}

func quoteDouble(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (t *tableInfo) add(name, sourceType string, col coerce.SQLColumn) {
	t.desc.Columns = append(t.desc.Columns, core.ColumnSpec{
		Name:       name,
		Type:       coerce.SemanticOf(col.Type),
		SourceType: strings.ToLower(sourceType),
	})
	t.columns = append(t.columns, col)
}
