package coerce

import (
	"encoding/base64"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/poiesic/docimport/core"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// FromBSONDocument converts an ordered BSON document into a Document.
func FromBSONDocument(d bson.D) *core.Document {
	doc := core.NewDocument()
	for _, e := range d {
		doc.Set(e.Key, FromBSON(e.Value))
	}
	return doc
}

// FromBSON maps a decoded BSON value into the JSON-compatible value set.
// It never fails: values without a natural mapping are rendered as text.
func FromBSON(v any) any {
	switch val := v.(type) {
	case nil, bson.Null, bson.Undefined:
		return nil
	case bson.D:
		return FromBSONDocument(val)
	case bson.M:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		doc := core.NewDocument()
		for _, k := range keys {
			doc.Set(k, FromBSON(val[k]))
		}
		return doc
	case bson.A:
		out := make([]any, 0, len(val))
		for _, item := range val {
			out = append(out, FromBSON(item))
		}
		return out
	case []any:
		return FromBSON(bson.A(val))
	case string:
		return val
	case bool:
		return val
	case int32:
		return int64(val)
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return val
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return int64(val)
	case time.Time:
		return val.UnixMilli()
	case bson.Decimal128:
		s := val.String()
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	case bson.Binary:
		return base64.StdEncoding.EncodeToString(val.Data)
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case bson.Timestamp:
		return int64(val.T) * 1000
	case bson.Regex:
		return "/" + val.Pattern + "/" + val.Options
	case bson.JavaScript:
		return string(val)
	case bson.Symbol:
		return string(val)
	}
	return fmt.Sprint(v)
}
