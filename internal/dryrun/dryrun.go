// Package dryrun previews write operations without sending them.
package dryrun

import (
	"context"
	"fmt"
	"io"
	"sort"
)

type contextKey struct{}

// WithDryRun marks the context as dry-run.
func WithDryRun(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, contextKey{}, enabled)
}

// IsEnabled reports whether dry-run mode is on.
func IsEnabled(ctx context.Context) bool {
	v, _ := ctx.Value(contextKey{}).(bool)
	return v
}

// Preview describes a request that would have been sent.
type Preview struct {
	Operation string         `json:"operation"`
	Resource  string         `json:"resource"`
	Method    string         `json:"method"`
	Path      string         `json:"path"`
	Details   map[string]any `json:"details,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
}

// Write prints the preview with details in key order.
func (p *Preview) Write(w io.Writer) {
	_, _ = fmt.Fprintf(w, "[DRY-RUN] Would %s %s\n", p.Operation, p.Resource)
	if p.Method != "" {
		_, _ = fmt.Fprintf(w, "  %s %s\n", p.Method, p.Path)
	}

	keys := make([]string, 0, len(p.Details))
	for k := range p.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "  %s: %v\n", k, p.Details[k])
	}

	for _, warning := range p.Warnings {
		_, _ = fmt.Fprintf(w, "  ! %s\n", warning)
	}
	_, _ = fmt.Fprintln(w, "No changes made (dry-run mode)")
}
