package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conalog/patch-cli/internal/api"
	"github.com/conalog/patch-cli/internal/cache"
	"github.com/conalog/patch-cli/internal/cli"
	"github.com/conalog/patch-cli/internal/config"
	"github.com/conalog/patch-cli/internal/dryrun"
	"github.com/conalog/patch-cli/internal/iocontext"
	"github.com/conalog/patch-cli/internal/outfmt"
	"github.com/conalog/patch-cli/internal/resolve"
	"github.com/conalog/patch-cli/internal/urlparse"
	"github.com/conalog/patch-cli/internal/validation"
)

// now is replaceable in tests.
var now = time.Now

// getClient returns an authenticated client for the resolved profile.
func getClient(ctx context.Context) (*api.Client, error) {
	return newClientFactory().authenticated(ctx)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newTabWriter(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}

func newTabWriterFromCmd(cmd *cobra.Command) *tabwriter.Writer {
	return newTabWriter(iocontext.GetIO(cmd.Context()).Out)
}

func isJSON(cmd *cobra.Command) bool {
	return outfmt.IsJSON(cmd.Context())
}

// printJSON writes v in the context's JSON mode, applying --query and
// --template.
func printJSON(cmd *cobra.Command, v any) error {
	ioStreams := iocontext.GetIO(cmd.Context())
	return outfmt.NewFormatter(cmd.Context(), ioStreams.Out, ioStreams.ErrOut).Output(v)
}

func newFormatter(cmd *cobra.Command) *outfmt.Formatter {
	ioStreams := iocontext.GetIO(cmd.Context())
	return outfmt.NewFormatter(cmd.Context(), ioStreams.Out, ioStreams.ErrOut)
}

// printRawJSON pretty-prints a JSON document in text mode.
func printRawJSON(cmd *cobra.Command, raw json.RawMessage) error {
	return outfmt.WriteJSON(iocontext.GetIO(cmd.Context()).Out, raw)
}

// printAction reports a completed write in text mode.
func printAction(cmd *cobra.Command, action, resource, id, name string) {
	if flags.Quiet || isJSON(cmd) {
		return
	}
	msg := fmt.Sprintf("%s %s", action, resource)
	if id != "" {
		msg += " " + id
	}
	if name != "" {
		msg += fmt.Sprintf(" (%s)", name)
	}
	_, _ = fmt.Fprintln(iocontext.GetIO(cmd.Context()).Out, msg)
}

// maybeDryRun prints preview and returns true when --dry-run is set.
func maybeDryRun(cmd *cobra.Command, preview *dryrun.Preview) (bool, error) {
	if !dryrun.IsEnabled(cmd.Context()) {
		return false, nil
	}
	if isJSON(cmd) {
		return true, printJSON(cmd, map[string]any{
			"dry_run":   true,
			"operation": preview.Operation,
			"resource":  preview.Resource,
			"method":    preview.Method,
			"path":      preview.Path,
			"details":   preview.Details,
		})
	}
	preview.Write(iocontext.GetIO(cmd.Context()).Out)
	return true, nil
}

// resolveDate expands --date values such as "yesterday" or "3d ago".
func resolveDate(value string) (string, error) {
	date, err := cli.ParseDate(value, now())
	if err != nil {
		return "", fmt.Errorf("invalid --date: %w", err)
	}
	return date, nil
}

// literalID returns the ID named by arg without any lookup: the ID inside a
// PATCH API URL, or arg itself with a leading '=' removed.
func literalID(arg, resourceType string) (string, bool, error) {
	arg = strings.TrimSpace(arg)
	if urlparse.IsURL(arg) {
		parsed, err := urlparse.Parse(arg)
		if err != nil {
			return "", false, err
		}
		if parsed.ResourceType != resourceType || !parsed.HasResourceID() {
			return "", false, fmt.Errorf("URL does not name a %s: %s", resourceType, arg)
		}
		return parsed.ResourceID, true, nil
	}
	if id, ok := strings.CutPrefix(arg, "="); ok {
		return id, true, nil
	}
	return arg, false, nil
}

// resolvePlant maps a plant argument to an ID. URLs and '='-prefixed values
// are taken literally. With --resolve-names other values are matched against
// plant names; otherwise they are used as given.
func resolvePlant(ctx context.Context, client *api.Client, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("plant ID is required")
	}
	id, literal, err := literalID(arg, "plant")
	if err != nil {
		return "", err
	}
	if literal || !flags.ResolveNames {
		if id == "" {
			return "", fmt.Errorf("plant ID is required")
		}
		return id, nil
	}
	id, err := resolve.Plant(ctx, client.Plants(), plantCache(), arg)
	if err == nil {
		return id, nil
	}
	var amb *resolve.AmbiguousError
	if errors.As(err, &amb) {
		var options []string
		for _, m := range amb.Matches {
			options = append(options, fmt.Sprintf("  %s: %s", m.ID, m.Name))
		}
		return "", fmt.Errorf("multiple plants match %q, specify ID:\n%s", arg, strings.Join(options, "\n"))
	}
	return "", err
}

// envCacheDir overrides the cache location.
const envCacheDir = "PATCH_CACHE_DIR"

func resolveCacheDir() string {
	if dir := strings.TrimSpace(os.Getenv(envCacheDir)); dir != "" {
		return dir
	}
	dir, err := cache.DefaultDir()
	if err != nil {
		return ""
	}
	return dir
}

// plantCache returns the plant-name cache of the active credentials, or nil
// when there is no cache directory.
func plantCache() resolve.Cache {
	dir := resolveCacheDir()
	if dir == "" {
		return nil
	}
	cfg, err := config.ResolveClientConfig(newClientFactory().overrides)
	if err != nil {
		return nil
	}
	identity := cfg.Account
	if identity == "" {
		identity = cfg.Token
	}
	return cache.NewStore(dir, "plants", cfg.BaseURL, identity)
}

// previewPlantID is the plant ID shown in dry-run previews, where no
// name lookup is made.
func previewPlantID(arg string) string {
	id, _, err := literalID(arg, "plant")
	if err != nil {
		return strings.TrimSpace(arg)
	}
	return id
}

// resolveOrg maps an organization argument (ID or API URL) to an ID.
func resolveOrg(arg string) (string, error) {
	id, _, err := literalID(arg, "organization")
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("organization ID is required")
	}
	return id, nil
}

// pageOptions parses optional --page and --size values; empty means the
// server default.
func pageOptions(page, size string) (api.PageOptions, error) {
	var opts api.PageOptions
	if page != "" {
		n, err := validation.ParsePage(page, "--page")
		if err != nil {
			return opts, err
		}
		opts.Page = &n
	}
	if size != "" {
		n, err := validation.ParsePage(size, "--size")
		if err != nil {
			return opts, err
		}
		opts.Size = &n
	}
	return opts, nil
}

// readMetadata accepts inline JSON or @path and checks that it parses.
func readMetadata(value string) (json.RawMessage, error) {
	if value == "" {
		return nil, nil
	}
	data := []byte(value)
	if path, ok := strings.CutPrefix(value, "@"); ok {
		var err error
		if data, err = readInput(path); err != nil {
			return nil, fmt.Errorf("failed to read metadata: %w", err)
		}
	}
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, fmt.Errorf("--metadata must be valid JSON")
	}
	return json.RawMessage(data), nil
}

// readInput reads a file, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func splitCommaList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// errAlreadyHandled marks errors RunE has already printed, so Execute does
// not print them twice.
var errAlreadyHandled = errors.New("error already handled")

type handledError struct {
	err      error
	exitCode int
}

func (e *handledError) Error() string { return e.err.Error() }

func (e *handledError) Unwrap() []error { return []error{errAlreadyHandled, e.err} }

func (e *handledError) ExitCode() int { return e.exitCode }

// printJSONErr writes a JSON value to stderr.
func printJSONErr(cmd *cobra.Command, v any) error {
	return outfmt.WriteJSON(iocontext.GetIO(cmd.Context()).ErrOut, v)
}

// RunE wraps a command function with enhanced error handling
func RunE(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err == nil {
			return nil
		}
		if isJSON(cmd) {
			if structured := api.StructuredErrorFromError(err); structured != nil {
				_ = printJSONErr(cmd, map[string]any{"error": structured})
			}
		} else {
			_, _ = fmt.Fprint(cmd.ErrOrStderr(), HandleError(err))
		}
		return &handledError{err: err, exitCode: ExitCode(err)}
	}
}
