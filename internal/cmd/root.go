package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/conalog/patch-cli/internal/debug"
	"github.com/conalog/patch-cli/internal/dryrun"
	"github.com/conalog/patch-cli/internal/iocontext"
	"github.com/conalog/patch-cli/internal/outfmt"
)

// rootFlags holds global CLI flags
type rootFlags struct {
	Output       string
	JSON         bool
	Query        string
	JQ           string
	Template     string
	Compact      bool
	Debug        bool
	LogFormat    string
	DryRun       bool
	Quiet        bool
	ResolveNames bool
	Profile      string
	BaseURL      string
	Timeout      time.Duration
	RPS          float64
}

// flags holds the global command flags. It is reset at the start of every
// Execute call; reading it outside a command's RunE sees stale values.
var flags = defaultFlags()

func defaultFlags() rootFlags {
	return rootFlags{
		Output:       envOr("PATCH_OUTPUT", "text"),
		LogFormat:    envOr("PATCH_LOG_FORMAT", debug.FormatText),
		ResolveNames: parseBoolEnv("PATCH_RESOLVE_NAMES"),
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseBoolEnv(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}

// loadDotEnv loads ~/.config/patchctl/.env when present. Variables already
// set in the environment are not overwritten.
func loadDotEnv() {
	dir, err := os.UserConfigDir()
	if err != nil {
		return
	}
	path := filepath.Join(dir, "patchctl", ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// Execute runs the root command
func Execute(ctx context.Context, args []string) error {
	loadDotEnv()
	flags = defaultFlags()

	root := &cobra.Command{
		Use:           "patchctl",
		Short:         "CLI for the PATCH solar plant telemetry API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupContext(cmd)
		},
	}
	root.SetContext(ctx)
	root.SetArgs(args)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.Output, "output", "o", flags.Output, "Output format: text|json|jsonl (env PATCH_OUTPUT)")
	pf.BoolVarP(&flags.JSON, "json", "j", false, "Shorthand for --output json")
	pf.StringVarP(&flags.Query, "query", "q", "", "jq expression to filter JSON output")
	pf.StringVar(&flags.JQ, "jq", "", "Alias for --query")
	pf.StringVar(&flags.Template, "template", "", "Go template string (or @path) to render JSON output")
	pf.BoolVar(&flags.Compact, "compact-json", false, "Compact JSON output (no indentation)")
	pf.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	pf.StringVar(&flags.LogFormat, "log-format", flags.LogFormat, "Log format: text|json (env PATCH_LOG_FORMAT)")
	pf.BoolVar(&flags.DryRun, "dry-run", false, "Preview write requests without sending them")
	pf.BoolVarP(&flags.Quiet, "quiet", "Q", false, "Suppress non-essential output")
	pf.BoolVar(&flags.ResolveNames, "resolve-names", flags.ResolveNames, "Treat plant arguments as fuzzy names (env PATCH_RESOLVE_NAMES=1)")
	pf.StringVar(&flags.Profile, "profile", "", "Credential profile to use (env PATCH_PROFILE)")
	pf.StringVar(&flags.BaseURL, "base-url", "", "API base URL (env PATCH_BASE_URL)")
	pf.DurationVar(&flags.Timeout, "timeout", 0, "Per-request timeout, e.g. 30s (env PATCH_TIMEOUT)")
	pf.Float64Var(&flags.RPS, "rps", 0, "Client-side request rate limit, requests per second (env PATCH_RPS)")
	root.SetGlobalNormalizationFunc(normalizeFlagName)

	root.AddCommand(newAuthCmd())
	root.AddCommand(newAccountCmd())
	root.AddCommand(newPlantsCmd())
	root.AddCommand(newBlueprintCmd())
	root.AddCommand(newRegistryCmd())
	root.AddCommand(newMetricsCmd())
	root.AddCommand(newLogsCmd())
	root.AddCommand(newFilesCmd())
	root.AddCommand(newIndicatorsCmd())
	root.AddCommand(newOrgsCmd())
	root.AddCommand(newAPICmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newVersionCmd())

	if _, err := root.ExecuteC(); err != nil {
		if !errors.Is(err, errAlreadyHandled) {
			_, _ = fmt.Fprintln(root.ErrOrStderr(), err)
		}
		return err
	}
	return nil
}

func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "cj":
		name = "compact-json"
	case "base":
		name = "base-url"
	}
	return pflag.NormalizedName(name)
}

func setupContext(cmd *cobra.Command) error {
	ctx := cmd.Context()

	if flags.JQ != "" {
		if flags.Query != "" && flags.Query != flags.JQ {
			return fmt.Errorf("--jq and --query cannot be used together")
		}
		flags.Query = flags.JQ
	}
	if flags.JSON {
		if cmd.Flags().Changed("output") && !strings.EqualFold(flags.Output, "json") {
			return fmt.Errorf("--json conflicts with --output %s", flags.Output)
		}
		flags.Output = "json"
	}

	mode, err := outfmt.Parse(flags.Output)
	if err != nil {
		return err
	}
	if (flags.Query != "" || flags.Template != "") && mode == outfmt.Text {
		if cmd.Flags().Changed("output") {
			return fmt.Errorf("--query/--jq/--template require --output json or jsonl")
		}
		mode = outfmt.JSON
	}
	ctx = outfmt.WithMode(ctx, mode)
	ctx = outfmt.WithCompact(ctx, flags.Compact)
	if flags.Query != "" {
		ctx = outfmt.WithQuery(ctx, flags.Query)
	}
	if flags.Template != "" {
		tmpl, err := loadTemplate(flags.Template)
		if err != nil {
			return err
		}
		ctx = outfmt.WithTemplate(ctx, tmpl)
	}

	if flags.Timeout < 0 {
		return fmt.Errorf("--timeout must be >= 0")
	}
	if flags.RPS < 0 {
		return fmt.Errorf("--rps must be >= 0")
	}

	streams := iocontext.DefaultIO()
	if flags.Quiet && mode == outfmt.Text {
		streams.Out = io.Discard
	}
	ctx = iocontext.WithIO(ctx, streams)
	cmd.SetOut(streams.Out)
	cmd.SetErr(streams.ErrOut)

	debug.SetupLogger(flags.Debug, flags.LogFormat)
	ctx = debug.WithDebug(ctx, flags.Debug)
	ctx = dryrun.WithDryRun(ctx, flags.DryRun)

	cmd.SetContext(ctx)
	return nil
}

func loadTemplate(value string) (string, error) {
	if path, ok := strings.CutPrefix(value, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read template file: %w", err)
		}
		return string(data), nil
	}
	return value, nil
}
