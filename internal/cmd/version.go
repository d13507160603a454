package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conalog/patch-cli/internal/update"
)

// version is set at build time via ldflags
var version = "dev"

func newVersionCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			var result *update.CheckResult
			if check {
				var err error
				if result, err = update.Check(cmdContext(cmd), version); err != nil {
					return err
				}
			}

			if isJSON(cmd) {
				payload := map[string]any{"version": version}
				if result != nil {
					payload["update"] = result
				}
				return printJSON(cmd, payload)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "patchctl version %s\n", version)
			if result != nil && result.UpdateAvailable {
				errOut := cmd.ErrOrStderr()
				_, _ = fmt.Fprintf(errOut, "\nUpdate available: %s -> %s\n", result.CurrentVersion, result.LatestVersion)
				if result.UpdateURL != "" {
					_, _ = fmt.Fprintf(errOut, "Download: %s\n", result.UpdateURL)
				}
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&check, "check", false, "Check GitHub for a newer release")
	return cmd
}
