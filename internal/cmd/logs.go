package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conalog/patch-cli/internal/api"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Read device logs",
	}
	cmd.AddCommand(newInverterLogsCmd())
	return cmd
}

func newInverterLogsCmd() *cobra.Command {
	var (
		inverterID string
		page       string
		size       string
		legacy     bool
	)

	cmd := &cobra.Command{
		Use:   "inverter <plant>",
		Short: "List inverter logs of a plant",
		Example: strings.TrimSpace(`
  patchctl logs inverter plant-1
  patchctl logs inverter plant-1 --inverter inv-3 --page 2 --size 50
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			opts, err := pageOptions(page, size)
			if err != nil {
				return err
			}
			if legacy && inverterID != "" {
				return fmt.Errorf("--inverter cannot be used with --v2")
			}
			client, err := getClient(cmdContext(cmd))
			if err != nil {
				return err
			}
			plantID, err := resolvePlant(cmdContext(cmd), client, args[0])
			if err != nil {
				return err
			}

			var list *api.InverterLogList
			switch {
			case legacy:
				list, err = client.Logs().InverterV2(cmdContext(cmd), plantID, opts)
			case inverterID != "":
				list, err = client.Logs().InverterByID(cmdContext(cmd), plantID, inverterID, opts)
			default:
				list, err = client.Logs().Inverter(cmdContext(cmd), plantID, opts)
			}
			if err != nil {
				return err
			}
			if list.Items == nil {
				list.Items = []api.InverterLog{}
			}

			if isJSON(cmd) {
				return printJSON(cmd, list)
			}
			f := newFormatter(cmd)
			if len(list.Items) == 0 {
				f.Empty("No inverter logs found")
				return nil
			}
			f.StartTable("TIMESTAMP", "INVERTER", "LEVEL", "STATUS", "MESSAGE")
			for _, l := range list.Items {
				f.Row(l.Timestamp, l.InverterID, l.Level, orDash(l.Raw.Status), orDash(l.Message.Ko))
			}
			if err := f.EndTable(); err != nil {
				return err
			}
			if list.TotalPages > list.Page {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Page %d of %d; use --page for more\n", list.Page, list.TotalPages)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&inverterID, "inverter", "", "Only logs of this inverter")
	cmd.Flags().StringVar(&page, "page", "", "Page number (1-based)")
	cmd.Flags().StringVar(&size, "size", "", "Page size")
	cmd.Flags().BoolVar(&legacy, "v2", false, "Use the legacy v2 endpoint")
	return cmd
}
