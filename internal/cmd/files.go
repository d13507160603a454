package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conalog/patch-cli/internal/dryrun"
	"github.com/conalog/patch-cli/internal/validation"
)

func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage plant files",
	}
	cmd.AddCommand(newFilesUploadCmd())
	return cmd
}

func newFilesUploadCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "upload <plant> <file>",
		Short: "Upload a file to a plant",
		Example: strings.TrimSpace(`
  patchctl files upload plant-1 ./layout.pdf
  patchctl files upload plant-1 ./layout.pdf --name "Site layout" --dry-run
`),
		Args: cobra.ExactArgs(2),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			path := args[1]
			filename := filepath.Base(path)
			if name == "" {
				name = filename
			}
			if err := validation.RejectCRLF(name, "--name"); err != nil {
				return err
			}
			content, err := readInput(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			if path == "-" {
				filename = "stdin"
			}

			if ok, err := maybeDryRun(cmd, &dryrun.Preview{
				Operation: "upload",
				Resource:  "file",
				Method:    "POST",
				Path:      "/api/v3/plants/" + previewPlantID(args[0]) + "/files",
				Details:   map[string]any{"name": name, "filename": filename, "bytes": len(content)},
			}); ok {
				return err
			}

			client, err := getClient(cmdContext(cmd))
			if err != nil {
				return err
			}
			plantID, err := resolvePlant(cmdContext(cmd), client, args[0])
			if err != nil {
				return err
			}
			upload, err := client.Files().Upload(cmdContext(cmd), plantID, name, filename, content)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printJSON(cmd, upload)
			}
			printAction(cmd, "Uploaded", "file", upload.ID, fmt.Sprintf("%s, %d bytes", upload.Filename, upload.Size))
			return nil
		}),
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the file name)")
	return cmd
}
