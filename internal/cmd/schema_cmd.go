package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conalog/patch-cli/internal/iocontext"
	"github.com/conalog/patch-cli/internal/schema"
)

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Describe PATCH document shapes",
		Long:  "List and show the field layout of PATCH documents, including every metrics shape.",
		Example: strings.TrimSpace(`
  patchctl schema list
  patchctl schema show metrics/panel-5m
  patchctl schema show plant -o json
`),
	}

	cmd.AddCommand(newSchemaListCmd())
	cmd.AddCommand(newSchemaShowCmd())
	return cmd
}

func newSchemaListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List known document shapes",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			names := schema.List()

			if isJSON(cmd) {
				type schemaSummary struct {
					Name        string `json:"name"`
					Description string `json:"description"`
				}
				summaries := make([]schemaSummary, 0, len(names))
				for _, name := range names {
					s, _ := schema.Get(name)
					summaries = append(summaries, schemaSummary{Name: name, Description: s.Description})
				}
				return printJSON(cmd, map[string]any{"items": summaries})
			}

			f := newFormatter(cmd)
			f.StartTable("NAME", "DESCRIPTION")
			for _, name := range names {
				s, _ := schema.Get(name)
				f.Row(name, s.Description)
			}
			return f.EndTable()
		}),
	}
}

func newSchemaShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show the fields of a document shape",
		Args:  cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			s, err := schema.Get(args[0])
			if err != nil {
				return fmt.Errorf("schema %q not found; available: %s", args[0], strings.Join(schema.List(), ", "))
			}
			if isJSON(cmd) {
				return printJSON(cmd, s)
			}
			printSchemaText(iocontext.GetIO(cmd.Context()).Out, args[0], s)
			return nil
		}),
	}
}

func printSchemaText(out io.Writer, name string, s *schema.Schema) {
	_, _ = fmt.Fprintf(out, "Schema: %s\n", name)
	if s.Description != "" {
		_, _ = fmt.Fprintf(out, "Description: %s\n", s.Description)
	}
	_, _ = fmt.Fprintln(out)
	printProperties(out, s, "  ")
}

func printProperties(out io.Writer, s *schema.Schema, indent string) {
	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}
	names := make([]string, 0, len(s.Properties))
	for n := range s.Properties {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		prop := s.Properties[n]
		typeName := prop.Type
		if prop.Items != nil {
			typeName = fmt.Sprintf("array<%s>", prop.Items.Type)
		}
		marker := ""
		if required[n] {
			marker = " (required)"
		}
		_, _ = fmt.Fprintf(out, "%s%s: %s%s\n", indent, n, typeName, marker)
		if prop.Description != "" {
			_, _ = fmt.Fprintf(out, "%s  %s\n", indent, prop.Description)
		}
		if len(prop.Enum) > 0 {
			_, _ = fmt.Fprintf(out, "%s  Allowed values: %s\n", indent, strings.Join(prop.Enum, ", "))
		}
		switch {
		case prop.Items != nil && len(prop.Items.Properties) > 0:
			printProperties(out, prop.Items, indent+"    ")
		case len(prop.Properties) > 0:
			printProperties(out, prop, indent+"    ")
		}
	}
}

// unknownMetricFields returns the requested fields that the sample schema
// of unit and interval does not list. Unknown shapes report nothing.
func unknownMetricFields(unit, interval string, fields []string) []string {
	if len(fields) == 0 {
		return nil
	}
	s, err := schema.Get("metrics/" + unit + "-" + interval)
	if err != nil {
		return nil
	}
	known := s.Properties["data"].Fields()
	var unknown []string
	for _, f := range fields {
		i := sort.SearchStrings(known, f)
		if i == len(known) || known[i] != f {
			unknown = append(unknown, f)
		}
	}
	return unknown
}
