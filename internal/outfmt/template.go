package outfmt

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"text/template"
)

// WriteTemplate renders v with a Go text/template. The "json" func pretty
// prints any value.
func WriteTemplate(w io.Writer, v any, tmpl string) error {
	funcs := template.FuncMap{
		"json": func(val any) (string, error) {
			var buf bytes.Buffer
			if err := WriteJSON(&buf, val); err != nil {
				return "", err
			}
			return buf.String(), nil
		},
	}

	t, err := template.New("output").Funcs(funcs).Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return templateError("invalid template", err)
	}
	if err := t.Execute(w, v); err != nil {
		return templateError("template execution error", err)
	}
	return nil
}

var templatePos = regexp.MustCompile(`:(\d+):(\d+):`)

func templateError(kind string, err error) error {
	if m := templatePos.FindStringSubmatch(err.Error()); len(m) == 3 {
		return fmt.Errorf("%s at line %s, column %s: %w", kind, m[1], m[2], err)
	}
	return fmt.Errorf("%s: %w", kind, err)
}

