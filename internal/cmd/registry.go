package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conalog/patch-cli/internal/api"
	"github.com/conalog/patch-cli/internal/iocontext"
)

func newBlueprintCmd() *cobra.Command {
	var (
		date   string
		legacy bool
	)

	cmd := &cobra.Command{
		Use:   "blueprint <plant>",
		Short: "Print the plant blueprint for a date",
		Example: strings.TrimSpace(`
  patchctl blueprint plant-1 --date 2026-03-01 > blueprint.json
  patchctl blueprint plant-1 --date yesterday --v2
`),
		Args: cobra.ExactArgs(1),
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

			var text string
			if legacy {
				text, err = client.Plants().BlueprintV2(cmdContext(cmd), plantID, day)
			} else {
				text, err = client.Plants().Blueprint(cmdContext(cmd), plantID, day)
			}
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				var doc any = text
				if json.Valid([]byte(text)) {
					doc = json.RawMessage(text)
				}
				return printJSON(cmd, map[string]any{"plant_id": plantID, "date": day, "blueprint": doc})
			}
			out := iocontext.GetIO(cmd.Context()).Out
			_, _ = fmt.Fprint(out, text)
			if !strings.HasSuffix(text, "\n") {
				_, _ = fmt.Fprintln(out)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&date, "date", "today", "Date (YYYY-MM-DD, today, yesterday, 3d ago)")
	cmd.Flags().BoolVar(&legacy, "v2", false, "Use the legacy v2 endpoint")
	return cmd
}

func newRegistryCmd() *cobra.Command {
	var (
		date       string
		recordType string
		assetID    string
		mapID      string
		legacy     bool
	)

	cmd := &cobra.Command{
		Use:   "registry <plant>",
		Short: "List asset registrations of a plant",
		Example: strings.TrimSpace(`
  patchctl registry plant-1 --date 2026-03-01
  patchctl registry plant-1 --asset-id inv-3 -o json
`),
		Args: cobra.ExactArgs(1),
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

			q := api.RegistryQuery{RecordType: recordType, Date: day, AssetID: assetID, MapID: mapID}
			var records []api.RegistryRecord
			if legacy {
				records, err = client.Registry().GetV2(cmdContext(cmd), plantID, q)
			} else {
				records, err = client.Registry().Get(cmdContext(cmd), plantID, q)
			}
			if err != nil {
				return err
			}
			if records == nil {
				records = []api.RegistryRecord{}
			}

			if isJSON(cmd) {
				return printJSON(cmd, records)
			}
			f := newFormatter(cmd)
			if len(records) == 0 {
				f.Empty("No registrations found")
				return nil
			}
			f.StartTable("ASSET_ID", "ASSET_TYPE", "MAP_ID", "MAP_TYPE", "REGISTERED", "UNREGISTERED")
			for _, r := range records {
				f.Row(r.AssetID, r.AssetType, orDash(r.MapID), orDash(r.MapType), orDash(r.Registered), orDash(r.Unregistered))
			}
			return f.EndTable()
		}),
	}

	cmd.Flags().StringVar(&date, "date", "today", "Date (YYYY-MM-DD, today, yesterday, 3d ago)")
	cmd.Flags().StringVar(&recordType, "record-type", api.RegistrySnapshots, "Record type")
	cmd.Flags().StringVar(&assetID, "asset-id", "", "Only this asset")
	cmd.Flags().StringVar(&mapID, "map-id", "", "Only this map position")
	cmd.Flags().BoolVar(&legacy, "v2", false, "Use the legacy v2 endpoint")
	return cmd
}
