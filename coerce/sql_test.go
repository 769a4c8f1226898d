package coerce

import (
	"math"
	"testing"
	"time"

	"github.com/poiesic/docimport/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSQLType(t *testing.T) {
	tests := map[string]SQLType{
		"VARCHAR(255)":                SQLChar,
		"character varying":           SQLChar,
		"TEXT":                        SQLChar,
		"int":                         SQLInteger,
		"BIGINT UNSIGNED":             SQLInteger,
		"int4":                        SQLInteger,
		"INTEGER":                     SQLInteger,
		"double precision":            SQLFloat,
		"REAL":                        SQLFloat,
		"NUMERIC(10,2)":               SQLDecimal,
		"decimal":                     SQLDecimal,
		"boolean":                     SQLBoolean,
		"date":                        SQLDate,
		"DATETIME":                    SQLTimestamp,
		"timestamp without time zone": SQLTimestamp,
		"timestamp with time zone":    SQLTimestampTZ,
		"timestamptz":                 SQLTimestampTZ,
		"time":                        SQLTime,
		"bytea":                       SQLBinary,
		"BLOB":                        SQLBinary,
		"ARRAY":                       SQLArray,
		"_int4":                       SQLArray,
		"text[]":                      SQLArray,
		"jsonb":                       SQLOther,
		"uuid":                        SQLOther,
	}
	for name, want := range tests {
		assert.Equal(t, want, ParseSQLType(name), name)
	}
}

func TestElemType(t *testing.T) {
	assert.Equal(t, SQLInteger, ElemType("_int4"))
	assert.Equal(t, SQLChar, ElemType("text[]"))
	assert.Equal(t, SQLOther, ElemType("ARRAY"))
}

func TestSemanticOf(t *testing.T) {
	assert.Equal(t, core.TypeInteger, SemanticOf(SQLInteger))
	assert.Equal(t, core.TypeFloat, SemanticOf(SQLDecimal))
	assert.Equal(t, core.TypeBoolean, SemanticOf(SQLBoolean))
	assert.Equal(t, core.TypeTimestamp, SemanticOf(SQLDate))
	assert.Equal(t, core.TypeTimestamp, SemanticOf(SQLTimestampTZ))
	assert.Equal(t, core.TypeString, SemanticOf(SQLBinary))
	assert.Equal(t, core.TypeString, SemanticOf(SQLOther))
}

func TestFromSQL(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	tests := []struct {
		name string
		col  SQLColumn
		in   any
		want any
	}{
		{name: "null integer", col: SQLColumn{Type: SQLInteger}, in: nil, want: nil},
		{name: "null text", col: SQLColumn{Type: SQLChar}, in: nil, want: nil},
		{name: "text from bytes", col: SQLColumn{Type: SQLChar}, in: []byte("hello"), want: "hello"},
		{name: "integer", col: SQLColumn{Type: SQLInteger}, in: int64(7), want: int64(7)},
		{name: "integer from bytes", col: SQLColumn{Type: SQLInteger}, in: []byte("123"), want: int64(123)},
		{name: "float", col: SQLColumn{Type: SQLFloat}, in: 1.25, want: 1.25},
		{name: "decimal from text", col: SQLColumn{Type: SQLDecimal}, in: []byte("10.50"), want: 10.5},
		{name: "boolean", col: SQLColumn{Type: SQLBoolean}, in: true, want: true},
		{name: "boolean from int", col: SQLColumn{Type: SQLBoolean}, in: int64(1), want: true},
		{name: "boolean from pg text", col: SQLColumn{Type: SQLBoolean}, in: "f", want: false},
		{name: "timestamp", col: SQLColumn{Type: SQLTimestamp}, in: ts, want: ts.UnixMilli()},
		{name: "timestamp from text", col: SQLColumn{Type: SQLTimestamp}, in: []byte("2024-05-06 07:08:09"), want: ts.UnixMilli()},
		{name: "date", col: SQLColumn{Type: SQLDate}, in: "2024-05-06", want: time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC).UnixMilli()},
		{name: "time of day", col: SQLColumn{Type: SQLTime}, in: "07:08:09", want: "07:08:09"},
		{name: "binary", col: SQLColumn{Type: SQLBinary}, in: []byte{0xde, 0xad, 0xbe, 0xef}, want: "3q2+7w=="},
		{name: "other", col: SQLColumn{Type: SQLOther}, in: []byte(`{"a":1}`), want: `{"a":1}`},
		{name: "other from int", col: SQLColumn{Type: SQLOther}, in: int64(9), want: "9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromSQL(tt.col, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromSQL_TimestampWithTimezone(t *testing.T) {
	zone := time.FixedZone("", -5*60*60)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, zone)

	got, err := FromSQL(SQLColumn{Type: SQLTimestampTZ}, ts)
	require.NoError(t, err)

	doc, ok := got.(*core.Document)
	require.True(t, ok, "expected *core.Document, got %T", got)
	assert.Equal(t, ts.UnixMilli(), doc.Value("timestamp"))
	assert.Equal(t, int64(-300), doc.Value("timezoneOffsetMinutes"))
}

func TestFromSQL_InvalidValues(t *testing.T) {
	_, err := FromSQL(SQLColumn{Type: SQLInteger}, "twelve")
	assert.True(t, core.IsMappingKind(err, core.MappingInvalidNumber))

	_, err = FromSQL(SQLColumn{Type: SQLTimestamp}, "yesterday")
	assert.True(t, core.IsMappingKind(err, core.MappingInvalidTimestamp))
}

func TestFromSQL_IntegerRange(t *testing.T) {
	col := SQLColumn{Type: SQLInteger}

	got, err := FromSQL(col, uint64(math.MaxInt64))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), got)

	got, err = FromSQL(col, float64(-42))
	require.NoError(t, err)
	assert.Equal(t, int64(-42), got)

	for _, in := range []any{uint64(math.MaxUint64), 2.5, 1e19, -1e19, math.NaN(), math.Inf(1)} {
		_, err := FromSQL(col, in)
		assert.True(t, core.IsMappingKind(err, core.MappingInvalidNumber), "%v", in)
	}
}

func TestFromSQL_Array(t *testing.T) {
	t.Run("postgres literal", func(t *testing.T) {
		got, err := FromSQL(SQLColumn{Type: SQLArray, Elem: SQLInteger}, []byte("{1,2,NULL,4}"))
		require.NoError(t, err)
		assert.Equal(t, []any{int64(1), int64(2), nil, int64(4)}, got)
	})

	t.Run("text elements", func(t *testing.T) {
		got, err := FromSQL(SQLColumn{Type: SQLArray, Elem: SQLChar}, `{alpha,"with space"}`)
		require.NoError(t, err)
		assert.Equal(t, []any{"alpha", "with space"}, got)
	})

	t.Run("driver slice", func(t *testing.T) {
		got, err := FromSQL(SQLColumn{Type: SQLArray, Elem: SQLBoolean}, []any{"t", "f"})
		require.NoError(t, err)
		assert.Equal(t, []any{true, false}, got)
	})

	t.Run("unparseable falls back to text", func(t *testing.T) {
		got, err := FromSQL(SQLColumn{Type: SQLArray, Elem: SQLInteger}, "not an array")
		require.NoError(t, err)
		assert.Equal(t, "not an array", got)
	})
}
