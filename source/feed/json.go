package feed

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/buger/jsonparser"
	"github.com/poiesic/docimport/core"
)

// decodeObject converts a JSON object into a Document, keeping field order
// and leaving every value as written. Integers become int64; other numbers
// keep their literal text.
func decodeObject(data []byte) (*core.Document, error) {
	doc := core.NewDocument()
	err := jsonparser.ObjectEach(data, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return fmt.Errorf("field name %q: %w", key, err)
		}
		v, err := decodeValue(value, dataType)
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		doc.Set(name, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeValue(value []byte, dataType jsonparser.ValueType) (any, error) {
	switch dataType {
	case jsonparser.String:
		return jsonparser.ParseString(value)
	case jsonparser.Number:
		if n, err := strconv.ParseInt(string(value), 10, 64); err == nil {
			return n, nil
		}
		return json.Number(value), nil
	case jsonparser.Boolean:
		return jsonparser.ParseBoolean(value)
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Object:
		return decodeObject(value)
	case jsonparser.Array:
		out := []any{}
		var inner error
		_, err := jsonparser.ArrayEach(value, func(elem []byte, elemType jsonparser.ValueType, _ int, _ error) {
			if inner != nil {
				return
			}
			v, err := decodeValue(elem, elemType)
			if err != nil {
				inner = err
				return
			}
			out = append(out, v)
		})
		if err != nil {
			return nil, err
		}
		if inner != nil {
			return nil, inner
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported JSON value %q", value)
}
