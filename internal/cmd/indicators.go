package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conalog/patch-cli/internal/api"
)

func newIndicatorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "indicators",
		Aliases: []string{"ind"},
		Short:   "Plant health indicators",
	}
	cmd.AddCommand(newHealthLevelCmd())
	cmd.AddCommand(newSeqnumCmd())
	return cmd
}

func newHealthLevelCmd() *cobra.Command {
	var (
		unit string
		date string
		view string
		ids  bool
	)

	cmd := &cobra.Command{
		Use:   "health <plant>",
		Short: "Count assets per health level",
		Example: strings.TrimSpace(`
  patchctl indicators health plant-1 --unit panel --date yesterday
  patchctl indicators health plant-1 --unit inverter --ids
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(unit) == "" {
				return fmt.Errorf("--unit is required")
			}
			day, err := resolveDate(date)
			if err != nil {
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
			level, err := client.Indicators().HealthLevel(cmdContext(cmd), plantID, unit, day, view)
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, level)
			}
			f := newFormatter(cmd)
			headers := []string{"LEVEL", "COUNT"}
			if ids {
				headers = append(headers, "IDS")
			}
			f.StartTable(headers...)
			for _, row := range []struct {
				name string
				cat  api.HealthLevelCategory
			}{{"best", level.Best}, {"caution", level.Caution}, {"faulty", level.Faulty}} {
				cols := []string{row.name, strconv.FormatInt(row.cat.Count, 10)}
				if ids {
					cols = append(cols, orDash(strings.Join(row.cat.IDs, ",")))
				}
				f.Row(cols...)
			}
			return f.EndTable()
		}),
	}

	cmd.Flags().StringVar(&unit, "unit", api.UnitPanel, "Unit: panel|inverter")
	cmd.Flags().StringVar(&date, "date", "today", "Date (YYYY-MM-DD, today, yesterday, 3d ago)")
	cmd.Flags().StringVar(&view, "view", "", "Server-side view name")
	cmd.Flags().BoolVar(&ids, "ids", false, "Show asset IDs per level")
	return cmd
}

func newSeqnumCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "seqnum <plant>",
		Short: "Print the panel sequence-number indicator",
		Long:  "Prints the panel sequence-number indicator as JSON in every output mode.",
		Args:  cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			day, err := resolveDate(date)
			if err != nil {
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
			raw, err := client.Indicators().PanelSeqnum(cmdContext(cmd), plantID, day)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printJSON(cmd, raw)
			}
			return printRawJSON(cmd, raw)
		}),
	}

	cmd.Flags().StringVar(&date, "date", "today", "Date (YYYY-MM-DD, today, yesterday, 3d ago)")
	return cmd
}
