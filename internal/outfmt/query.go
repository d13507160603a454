package outfmt

import (
	"encoding/json"
	"io"

	"github.com/conalog/patch-cli/internal/filter"
)

// ApplyQuery converts v to its generic JSON form and applies query to it.
// Typed lists are wrapped as {"items": [...]} first.
func ApplyQuery(v any, query string) (any, error) {
	data, err := json.Marshal(normalizeJSONOutput(v))
	if err != nil {
		return nil, err
	}
	if query == "" {
		var out any
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	return filter.ApplyFromJSON(data, query)
}

// WriteJSONFiltered writes v as JSON after applying the optional jq query.
func WriteJSONFiltered(w io.Writer, v any, query string, compact bool) error {
	if query == "" {
		return WriteJSONMaybeCompact(w, normalizeJSONOutput(v), compact)
	}
	result, err := ApplyQuery(v, query)
	if err != nil {
		return err
	}
	return WriteJSONMaybeCompact(w, result, compact)
}
