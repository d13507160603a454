package outfmt

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
)

// Formatter writes command output in the mode carried by its context.
type Formatter struct {
	ctx    context.Context
	out    io.Writer
	errOut io.Writer
	tw     *tabwriter.Writer
}

func NewFormatter(ctx context.Context, out, errOut io.Writer) *Formatter {
	return &Formatter{
		ctx:    ctx,
		out:    out,
		errOut: errOut,
		tw:     tabwriter.NewWriter(out, 0, 4, 2, ' ', 0),
	}
}

// Output writes data as JSON, JSONL or a template. In text mode it does
// nothing; callers render their own tables.
func (f *Formatter) Output(data any) error {
	if !IsJSON(f.ctx) {
		return nil
	}
	query := GetQuery(f.ctx)
	if tmpl := GetTemplate(f.ctx); tmpl != "" {
		filtered, err := ApplyQuery(data, query)
		if err != nil {
			return err
		}
		return WriteTemplate(f.out, filtered, tmpl)
	}
	if ModeFromContext(f.ctx) == JSONL {
		filtered, err := ApplyQuery(data, query)
		if err != nil {
			return err
		}
		return WriteJSONLines(f.out, filtered)
	}
	return WriteJSONFiltered(f.out, data, query, IsCompact(f.ctx))
}

// StartTable writes headers and reports whether a table is being rendered.
func (f *Formatter) StartTable(headers ...string) bool {
	if IsJSON(f.ctx) {
		return false
	}
	f.Row(headers...)
	return true
}

func (f *Formatter) Row(columns ...string) {
	for i, col := range columns {
		if i > 0 {
			_, _ = fmt.Fprint(f.tw, "\t")
		}
		_, _ = fmt.Fprint(f.tw, col)
	}
	_, _ = fmt.Fprintln(f.tw)
}

func (f *Formatter) EndTable() error {
	return f.tw.Flush()
}

// Empty reports an empty result on stderr.
func (f *Formatter) Empty(message string) {
	_, _ = fmt.Fprintln(f.errOut, message)
}
