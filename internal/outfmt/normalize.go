package outfmt

import (
	"encoding/json"
	"reflect"
)

// normalizeJSONOutput wraps top-level slices as {"items": [...]} so list
// output has the same shape as paged API responses.
func normalizeJSONOutput(v any) any {
	if v == nil {
		return v
	}
	switch v.(type) {
	case []byte, json.RawMessage:
		return v
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return v
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return v
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return v
	}
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return map[string]any{"items": []any{}}
	}
	return map[string]any{"items": rv.Interface()}
}
