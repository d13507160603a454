// Package outfmt renders command results as tables, JSON or templates.
package outfmt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Mode selects how results are written.
type Mode int

const (
	// Text is tab-aligned human output.
	Text Mode = iota
	// JSON is a single indented document.
	JSON
	// JSONL writes one compact document per list element.
	JSONL
)

type (
	modeKey     struct{}
	compactKey  struct{}
	queryKey    struct{}
	templateKey struct{}
)

// Parse parses an --output value.
func Parse(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "table":
		return Text, nil
	case "json":
		return JSON, nil
	case "jsonl", "ndjson":
		return JSONL, nil
	default:
		return Text, fmt.Errorf("invalid output format: %q (use 'text', 'json' or 'jsonl')", s)
	}
}

func (m Mode) String() string {
	switch m {
	case JSON:
		return "json"
	case JSONL:
		return "jsonl"
	default:
		return "text"
	}
}

func WithMode(ctx context.Context, mode Mode) context.Context {
	return context.WithValue(ctx, modeKey{}, mode)
}

// ModeFromContext returns the output mode, Text when unset.
func ModeFromContext(ctx context.Context) Mode {
	if mode, ok := ctx.Value(modeKey{}).(Mode); ok {
		return mode
	}
	return Text
}

// IsJSON reports whether output is machine readable (JSON or JSONL).
func IsJSON(ctx context.Context) bool {
	mode := ModeFromContext(ctx)
	return mode == JSON || mode == JSONL
}

func WithCompact(ctx context.Context, compact bool) context.Context {
	return context.WithValue(ctx, compactKey{}, compact)
}

func IsCompact(ctx context.Context) bool {
	c, _ := ctx.Value(compactKey{}).(bool)
	return c
}

// WithQuery stores a jq expression applied before JSON is written.
func WithQuery(ctx context.Context, query string) context.Context {
	return context.WithValue(ctx, queryKey{}, query)
}

func GetQuery(ctx context.Context) string {
	q, _ := ctx.Value(queryKey{}).(string)
	return q
}

// WithTemplate stores a text/template rendered instead of JSON.
func WithTemplate(ctx context.Context, tmpl string) context.Context {
	return context.WithValue(ctx, templateKey{}, tmpl)
}

func GetTemplate(ctx context.Context) string {
	t, _ := ctx.Value(templateKey{}).(string)
	return t
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	return WriteJSONMaybeCompact(w, v, false)
}

// WriteJSONMaybeCompact writes v on one line when compact is set.
func WriteJSONMaybeCompact(w io.Writer, v any, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// WriteJSONLines writes each element of a list (or of a wrapped "items"
// list) as its own compact line. Anything else is written as one line.
func WriteJSONLines(w io.Writer, v any) error {
	var rows []any
	switch t := v.(type) {
	case []any:
		rows = t
	case map[string]any:
		if items, ok := t["items"].([]any); ok {
			rows = items
		} else {
			rows = []any{t}
		}
	default:
		rows = []any{t}
	}
	for _, row := range rows {
		if err := WriteJSONMaybeCompact(w, row, true); err != nil {
			return err
		}
	}
	return nil
}
