// Package debug carries the --debug flag through contexts and configures slog.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const debugKey contextKey = "debug_enabled"

// Log formats accepted by SetupLogger.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// WithDebug returns a context with debug mode enabled/disabled.
func WithDebug(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, debugKey, enabled)
}

// IsEnabled returns true if debug mode is enabled in the context.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(debugKey).(bool); ok {
		return v
	}
	return false
}

// SetupLogger installs the default slog logger on stderr. Debug mode logs at
// Debug level, otherwise only warnings and errors are shown.
func SetupLogger(debugEnabled bool, format string) {
	slog.SetDefault(NewLogger(os.Stderr, debugEnabled, format))
}

// NewLogger builds a text or JSON logger writing to w. Unknown formats fall
// back to text.
func NewLogger(w io.Writer, debugEnabled bool, format string) *slog.Logger {
	level := slog.LevelWarn
	if debugEnabled {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(format, FormatJSON) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
