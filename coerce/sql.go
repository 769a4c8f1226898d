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


package coerce

import (
	"database/sql"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/poiesic/docimport/core"
)

// SQLType is a driver-independent relational column type.
type SQLType int

const (
	SQLOther SQLType = iota
	SQLChar
	SQLInteger
	SQLFloat
	SQLDecimal
	SQLBoolean
	SQLDate
	SQLTime
	SQLTimestamp
	SQLTimestampTZ
	SQLBinary
	SQLArray
)

var sqlTypeNames = [...]string{
	SQLOther:       "OTHER",
	SQLChar:        "CHAR",
	SQLInteger:     "INTEGER",
	SQLFloat:       "FLOAT",
	SQLDecimal:     "DECIMAL",
	SQLBoolean:     "BOOLEAN",
	SQLDate:        "DATE",
	SQLTime:        "TIME",
	SQLTimestamp:   "TIMESTAMP",
	SQLTimestampTZ: "TIMESTAMP_WITH_TIMEZONE",
	SQLBinary:      "BINARY",
	SQLArray:       "ARRAY",
}

func (t SQLType) String() string {
	if int(t) >= 0 && int(t) < len(sqlTypeNames) {
		return sqlTypeNames[t]
	}
	return fmt.Sprintf("SQLType(%d)", int(t))
}

// SQLColumn carries the type information needed to coerce one column.
// Elem is only meaningful for SQLArray.
type SQLColumn struct {
	Type SQLType
	Elem SQLType
}

// ParseSQLType maps a driver type name (information_schema data_type,
// udt_name or a sqlite declared type) to an SQLType.
func ParseSQLType(name string) SQLType {
	n := normalizeTypeName(name)
	if n == "array" || strings.HasPrefix(n, "_") || strings.HasSuffix(n, "[]") {
		return SQLArray
	}

	switch n {
	case "char", "character", "varchar", "character varying", "nchar", "nvarchar",
		"text", "tinytext", "mediumtext", "longtext", "clob", "string", "bpchar",
		"name", "citext", "enum", "set":
		return SQLChar
	case "smallint", "int2", "tinyint", "mediumint", "int", "integer", "int4",
		"bigint", "int8", "serial", "bigserial", "smallserial", "year":
		return SQLInteger
	case "real", "float4", "float", "double", "double precision", "float8":
		return SQLFloat
	case "decimal", "numeric", "dec", "fixed":
		return SQLDecimal
	case "bool", "boolean":
		return SQLBoolean
	case "date":
		return SQLDate
	case "time", "time without time zone", "timetz", "time with time zone":
		return SQLTime
	case "timestamp", "datetime", "timestamp without time zone":
		return SQLTimestamp
	case "timestamptz", "timestamp with time zone":
		return SQLTimestampTZ
	case "bytea", "binary", "varbinary", "blob", "tinyblob", "mediumblob",
		"longblob", "longvarbinary":
		return SQLBinary
	}
	return SQLOther
}

// ElemType returns the element type of an array type name such as "_int4" or "int4[]".
func ElemType(name string) SQLType {
	n := normalizeTypeName(name)
	switch {
	case strings.HasPrefix(n, "_"):
		return ParseSQLType(n[1:])
	case strings.HasSuffix(n, "[]"):
		return ParseSQLType(strings.TrimSuffix(n, "[]"))
	}
	return SQLOther
}

// normalizeTypeName lowercases a type name and strips size parameters and modifiers.
func normalizeTypeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(n, '('); i >= 0 {
		rest := ""
		if j := strings.IndexByte(n[i:], ')'); j >= 0 {
			rest = n[i+j+1:]
		}
		n = strings.TrimSpace(n[:i] + rest)
	}
	n = strings.TrimSuffix(n, " unsigned")
	n = strings.TrimSuffix(n, " zerofill")
	return strings.TrimSpace(n)
}

// SemanticOf returns the semantic type a relational column is reported under.
func SemanticOf(t SQLType) core.SemanticType {
	switch t {
	case SQLInteger:
		return core.TypeInteger
	case SQLFloat, SQLDecimal:
		return core.TypeFloat
	case SQLBoolean:
		return core.TypeBoolean
	case SQLDate, SQLTimestamp, SQLTimestampTZ:
		return core.TypeTimestamp
	default:
		return core.TypeString
	}
}

// sqlTimeLayouts are tried in order when a driver returns temporal values as text.
var sqlTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// FromSQL coerces a value scanned from a database/sql row.
func FromSQL(col SQLColumn, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch col.Type {
	case SQLChar:
		return textOf(v), nil

	case SQLInteger:
		return sqlInteger(v)

	case SQLFloat, SQLDecimal:
		return sqlFloat(v)

	case SQLBoolean:
		return sqlBoolean(v)

	case SQLDate, SQLTimestamp:
		t, err := sqlTime(v)
		if err != nil {
			return nil, err
		}
		return t.UnixMilli(), nil

	case SQLTimestampTZ:
		t, err := sqlTime(v)
		if err != nil {
			return nil, err
		}
		_, offset := t.Zone()
		doc := core.NewDocument()
		doc.Set("timestamp", t.UnixMilli())
		doc.Set("timezoneOffsetMinutes", int64(offset/60))
		return doc, nil

	case SQLTime:
		if t, ok := v.(time.Time); ok {
			return t.Format("15:04:05"), nil
		}
		return textOf(v), nil

	case SQLBinary:
		switch b := v.(type) {
		case []byte:
			return base64.StdEncoding.EncodeToString(b), nil
		case string:
			return base64.StdEncoding.EncodeToString([]byte(b)), nil
		}
		return textOf(v), nil

	case SQLArray:
		return sqlArray(col.Elem, v), nil
	}

	return textOf(v), nil
}

// textOf is the native-to-string conversion used for text and unrecognized types.
func textOf(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	}
	return KeyString(v)
}

func sqlInteger(v any) (any, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case int32:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int:
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, invalidInteger(strconv.FormatUint(val, 10))
		}
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case float64:
		// 2^63 itself is out of range; MaxInt64 rounds up to it as a float.
		if val != math.Trunc(val) || val < math.MinInt64 || val >= math.MaxInt64 {
			return nil, invalidInteger(strconv.FormatFloat(val, 'g', -1, 64))
		}
		return int64(val), nil
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	}
	s := strings.TrimSpace(textOf(v))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, invalidInteger(s)
	}
	return n, nil
}

func invalidInteger(s string) error {
	return &core.MappingError{Kind: core.MappingInvalidNumber, Value: s, Err: core.ErrInvalidNumber}
}

func sqlFloat(v any) (any, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int:
		return float64(val), nil
	}
	s := strings.TrimSpace(textOf(v))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, &core.MappingError{Kind: core.MappingInvalidNumber, Value: s, Err: core.ErrInvalidNumber}
	}
	return f, nil
}

func sqlBoolean(v any) (any, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case int64:
		return val != 0, nil
	case int32:
		return val != 0, nil
	case int:
		return val != 0, nil
	case []byte:
		// mysql BIT(1) arrives as a single raw byte
		if len(val) == 1 && val[0] <= 1 {
			return val[0] == 1, nil
		}
	}
	switch strings.ToLower(strings.TrimSpace(textOf(v))) {
	case "t", "true", "1", "y", "yes", "on":
		return true, nil
	}
	return false, nil
}

func sqlTime(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case int64:
		return time.UnixMilli(val).UTC(), nil
	}
	s := strings.TrimSpace(textOf(v))
	for _, layout := range sqlTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &core.MappingError{Kind: core.MappingInvalidTimestamp, Value: s, Err: core.ErrInvalidTimestamp}
}

// sqlArray converts a driver array value into an ordered sequence.
// Elements that cannot be coerced fall back to their text form.
func sqlArray(elem SQLType, v any) any {
	if items, ok := v.([]any); ok {
		out := make([]any, 0, len(items))
		for _, item := range items {
			out = append(out, arrayElem(elem, item))
		}
		return out
	}

	var elems []sql.NullString
	if err := (pq.GenericArray{A: &elems}).Scan(v); err != nil {
		return textOf(v)
	}
	out := make([]any, 0, len(elems))
	for _, e := range elems {
		if !e.Valid {
			out = append(out, nil)
			continue
		}
		out = append(out, arrayElem(elem, e.String))
	}
	return out
}

func arrayElem(elem SQLType, v any) any {
	if elem == SQLArray {
		return textOf(v)
	}
	if elem == SQLBinary {
		// bytea elements arrive hex-escaped and are kept as text
		return textOf(v)
	}
	out, err := FromSQL(SQLColumn{Type: elem}, v)
	if err != nil {
		return textOf(v)
	}
	return out
}
