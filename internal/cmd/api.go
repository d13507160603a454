package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conalog/patch-cli/internal/api"
	"github.com/conalog/patch-cli/internal/dryrun"
	"github.com/conalog/patch-cli/internal/iocontext"
)

var apiMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

func newAPICmd() *cobra.Command {
	var (
		method         string
		fields         []string
		rawFields      []string
		params         []string
		inputFile      string
		jsonBody       string
		silent         bool
		includeHeaders bool
	)

	cmd := &cobra.Command{
		Use:   "api <path>",
		Short: "Make an authenticated request to any PATCH endpoint",
		Long: `Make an authenticated request to any PATCH endpoint.

The path is relative to the base URL, for example api/v3/plants/plant-1.
Query parameters go through -p; a literal '?' or '#' in the path is rejected.
Expired sessions are refreshed the same way as in every other command.`,
		Example: strings.TrimSpace(`
  patchctl api api/v3/account/
  patchctl api api/v3/plants -p page=2 -p size=10
  patchctl api api/v3/plants -X POST -f name="North Field" -f organizationId=org-1
  patchctl api api/v3/plants -X POST -i body.json --dry-run
  patchctl api api/v3/plants/plant-1 --include
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			path := args[0]
			out := iocontext.GetIO(cmd.Context()).Out

			method = strings.ToUpper(method)
			if !containsString(apiMethods, method) {
				return api.NewValidationError("method", method, apiMethods)
			}
			if jsonBody != "" && inputFile != "" {
				return fmt.Errorf("--body and --input cannot be used together")
			}

			query, err := buildQuery(params)
			if err != nil {
				return err
			}
			body, err := buildRequestBody(fields, rawFields, inputFile, jsonBody)
			if err != nil {
				return err
			}
			var payload []byte
			if body != nil {
				if payload, err = json.Marshal(body); err != nil {
					return err
				}
			}

			if method != http.MethodGet {
				details := map[string]any{}
				if len(query) > 0 {
					details["query"] = query.Encode()
				}
				if payload != nil {
					details["body"] = string(payload)
				}
				if ok, err := maybeDryRun(cmd, &dryrun.Preview{
					Operation: "send",
					Resource:  "request",
					Method:    method,
					Path:      "/" + strings.TrimPrefix(path, "/"),
					Details:   details,
				}); ok {
					return err
				}
			}

			client, err := getClient(cmdContext(cmd))
			if err != nil {
				return err
			}
			resp, err := client.Do(cmdContext(cmd), method, path, query, payload)
			if err != nil {
				return err
			}
			if silent {
				return nil
			}

			if isJSON(cmd) {
				return printJSON(cmd, apiJSONPayload(resp, includeHeaders))
			}

			if includeHeaders {
				_, _ = fmt.Fprintf(out, "HTTP %d\n", resp.StatusCode)
				keys := make([]string, 0, len(resp.Header))
				for k := range resp.Header {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					for _, v := range resp.Header[k] {
						_, _ = fmt.Fprintf(out, "%s: %s\n", k, v)
					}
				}
				_, _ = fmt.Fprintln(out)
			}
			if len(resp.Body) == 0 {
				return nil
			}
			pretty := &bytes.Buffer{}
			if json.Valid(resp.Body) && json.Indent(pretty, resp.Body, "", "  ") == nil {
				_, _ = fmt.Fprintln(out, pretty.String())
				return nil
			}
			_, _ = fmt.Fprintln(out, string(resp.Body))
			return nil
		}),
	}

	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method (GET, POST, PUT, PATCH, DELETE)")
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Body field as key=value (string)")
	cmd.Flags().StringArrayVarP(&rawFields, "raw-field", "F", nil, "Body field as key=value (JSON parsed)")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Query parameter as key=value (repeatable)")
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Read the body from a file (- for stdin)")
	cmd.Flags().StringVarP(&jsonBody, "body", "d", "", "Body as inline JSON")
	cmd.Flags().BoolVarP(&silent, "silent", "s", false, "Suppress output")
	cmd.Flags().BoolVar(&includeHeaders, "include", false, "Include the status line and response headers")

	return cmd
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func apiJSONPayload(resp *api.RawResponse, includeHeaders bool) any {
	body := apiJSONBody(resp.Body)
	if !includeHeaders {
		return body
	}
	return map[string]any{
		"status":  resp.StatusCode,
		"headers": resp.Header,
		"body":    body,
	}
}

func apiJSONBody(respBody []byte) any {
	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if !json.Valid(respBody) {
		return string(respBody)
	}
	return json.RawMessage(respBody)
}

func buildQuery(params []string) (api.Query, error) {
	var q api.Query
	for _, p := range params {
		key, value, err := parseField(p)
		if err != nil {
			return nil, err
		}
		q = q.Add(key, value)
	}
	return q, nil
}

// buildRequestBody merges --body or --input with -f/-F fields; fields win.
func buildRequestBody(fields, rawFields []string, inputFile, jsonBody string) (map[string]any, error) {
	body := make(map[string]any)

	if jsonBody != "" {
		if err := json.Unmarshal([]byte(jsonBody), &body); err != nil {
			return nil, fmt.Errorf("failed to parse --body JSON: %w", err)
		}
	}
	if inputFile != "" {
		data, err := readInput(inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("failed to parse input JSON: %w", err)
		}
	}

	for _, field := range fields {
		key, value, err := parseField(field)
		if err != nil {
			return nil, err
		}
		body[key] = value
	}
	for _, field := range rawFields {
		key, value, err := parseRawField(field)
		if err != nil {
			return nil, err
		}
		body[key] = value
	}

	if len(body) == 0 {
		return nil, nil
	}
	return body, nil
}

func parseField(field string) (string, string, error) {
	key, value, ok := strings.Cut(field, "=")
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid field %q: must be key=value", field)
	}
	return key, value, nil
}

func parseRawField(field string) (string, any, error) {
	key, raw, err := parseField(field)
	if err != nil {
		return "", nil, err
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return "", nil, fmt.Errorf("invalid JSON in raw field %q: %w", key, err)
	}
	return key, value, nil
}
