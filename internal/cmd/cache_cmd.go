package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conalog/patch-cli/internal/cache"
	"github.com/conalog/patch-cli/internal/iocontext"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local plant-name cache",
		Long:  "Plant lists fetched for --resolve-names are cached for a few minutes. Set PATCH_NO_CACHE=1 to disable the cache.",
	}

	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCachePathCmd())
	return cmd
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached data",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			dir := resolveCacheDir()
			if dir == "" {
				return fmt.Errorf("could not determine cache directory")
			}
			removed := cache.ClearAll(dir)
			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{"dir": dir, "removed": removed})
			}
			_, _ = fmt.Fprintf(iocontext.GetIO(cmd.Context()).Out, "Cache cleared: %s (%d files)\n", dir, removed)
			return nil
		}),
	}
}

func newCachePathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the cache directory and its files",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			dir := resolveCacheDir()
			if dir == "" {
				return fmt.Errorf("could not determine cache directory")
			}
			out := iocontext.GetIO(cmd.Context()).Out
			_, _ = fmt.Fprintln(out, dir)

			entries, err := os.ReadDir(dir)
			if err != nil {
				return nil
			}
			for _, e := range entries {
				if e.IsDir() || !cache.IsCacheFilename(e.Name()) {
					continue
				}
				info, err := e.Info()
				if err != nil {
					continue
				}
				_, _ = fmt.Fprintf(out, "  %s (%d bytes)\n", e.Name(), info.Size())
			}
			return nil
		}),
	}
}
