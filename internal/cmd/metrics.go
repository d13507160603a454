package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conalog/patch-cli/internal/api"
	"github.com/conalog/patch-cli/internal/iocontext"
	"github.com/conalog/patch-cli/internal/outfmt"
)

const defaultMetricsSource = "device"

func newMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "metrics",
		Aliases: []string{"m"},
		Short:   "Fetch plant, inverter and panel metrics",
	}

	cmd.AddCommand(newMetricsByDateCmd())
	cmd.AddCommand(newMetricsPanelCmd())
	cmd.AddCommand(newMetricsLatestDeviceCmd())
	cmd.AddCommand(newMetricsLatestInverterCmd())
	cmd.AddCommand(newMetricsBulkCmd())

	return cmd
}

// metricsQueryFlags are shared by by-date and bulk.
type metricsQueryFlags struct {
	source   string
	unit     string
	interval string
	date     string
	before   int64
	fields   string
	legacy   bool
}

func (m *metricsQueryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&m.source, "source", defaultMetricsSource, "Data source")
	cmd.Flags().StringVar(&m.unit, "unit", api.UnitPlant, "Unit: panel|inverter|plant")
	cmd.Flags().StringVar(&m.interval, "interval", api.Interval5m, "Interval: 5m|day")
	cmd.Flags().StringVar(&m.date, "date", "today", "Date (YYYY-MM-DD, today, yesterday, 3d ago)")
	cmd.Flags().Int64Var(&m.before, "before", 0, "Only samples before this Unix timestamp")
	cmd.Flags().StringVar(&m.fields, "fields", "", "Comma-separated fields to request")
	cmd.Flags().BoolVar(&m.legacy, "v2", false, "Use the legacy v2 endpoint")
}

func (m *metricsQueryFlags) query(cmd *cobra.Command) (api.MetricsQuery, error) {
	day, err := resolveDate(m.date)
	if err != nil {
		return api.MetricsQuery{}, err
	}
	for name, value := range map[string]string{"--source": m.source, "--unit": m.unit, "--interval": m.interval} {
		if strings.TrimSpace(value) == "" {
			return api.MetricsQuery{}, fmt.Errorf("%s is required", name)
		}
	}
	q := api.MetricsQuery{
		Source:   m.source,
		Unit:     m.unit,
		Interval: m.interval,
		Date:     day,
		Fields:   splitCommaList(m.fields),
	}
	if cmd.Flags().Changed("before") {
		before := m.before
		q.Before = &before
	}
	if unknown := unknownMetricFields(q.Unit, q.Interval, q.Fields); len(unknown) > 0 && !flags.Quiet {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: unknown %s-%s field(s) %s; see 'patchctl schema show metrics/%s-%s'\n",
			q.Unit, q.Interval, strings.Join(unknown, ", "), q.Unit, q.Interval)
	}
	return q, nil
}

func newMetricsByDateCmd() *cobra.Command {
	var mf metricsQueryFlags

	cmd := &cobra.Command{
		Use:   "by-date <plant>",
		Short: "Fetch a metrics series for one day",
		Example: strings.TrimSpace(`
  # Plant energy every 5 minutes today
  patchctl metrics by-date plant-1

  # Daily inverter energy for a given day
  patchctl metrics by-date plant-1 --unit inverter --interval day --date 2026-03-01

  # Total plant energy yesterday
  patchctl metrics by-date plant-1 --date yesterday -o json --jq '[.data[].energy] | add'
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			q, err := mf.query(cmd)
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

			var body api.MetricsBody
			if mf.legacy {
				body, err = client.Metrics().ByDateV2(cmdContext(cmd), plantID, q)
			} else {
				body, err = client.Metrics().ByDate(cmdContext(cmd), plantID, q)
			}
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, body)
			}
			return renderMetrics(cmd, body)
		}),
	}

	mf.register(cmd)
	return cmd
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// renderMetrics prints one table per metrics shape. Unrecognised shapes are
// printed as JSON.
func renderMetrics(cmd *cobra.Command, body api.MetricsBody) error {
	f := newFormatter(cmd)
	switch m := body.(type) {
	case *api.PanelIntraday:
		if len(m.Data) == 0 {
			f.Empty("No samples")
			return nil
		}
		f.StartTable("DATE", "PANEL", "ENERGY", "P", "V_IN", "V_OUT", "I_OUT", "TEMP")
		for _, d := range m.Data {
			f.Row(d.Date, d.ID, formatFloat(d.Energy), formatFloat(d.P), formatFloat(d.VIn), formatFloat(d.VOut), formatFloat(d.IOut), formatFloat(d.Temp))
		}
	case *api.PanelDaily:
		if len(m.Data) == 0 {
			f.Empty("No samples")
			return nil
		}
		f.StartTable("PANEL", "ENERGY")
		for _, d := range m.Data {
			f.Row(d.ID, formatFloat(d.Energy))
		}
	case *api.InverterIntraday:
		if len(m.Data) == 0 {
			f.Empty("No samples")
			return nil
		}
		f.StartTable("TIME", "INVERTER", "ENERGY")
		for _, d := range m.Data {
			f.Row(d.Time, d.ID, formatFloat(d.Energy))
		}
	case *api.InverterDaily:
		if len(m.Data) == 0 {
			f.Empty("No samples")
			return nil
		}
		f.StartTable("DATE", "INVERTER", "ENERGY")
		for _, d := range m.Data {
			f.Row(d.Date, d.ID, formatFloat(d.Energy))
		}
	case *api.PlantIntraday:
		if len(m.Data) == 0 {
			f.Empty("No samples")
			return nil
		}
		f.StartTable("DATE", "ENERGY", "CUMULATIVE")
		for _, d := range m.Data {
			f.Row(d.Date, formatFloat(d.Energy), formatFloat(d.CumulativeEnergy))
		}
	case *api.PlantAggregated:
		if len(m.Data) == 0 {
			f.Empty("No samples")
			return nil
		}
		f.StartTable("DATE", "ID", "ENERGY")
		for _, d := range m.Data {
			id := ""
			if d.ID != nil {
				id = *d.ID
			}
			f.Row(d.Date, orDash(id), formatFloat(d.Energy))
		}
	case *api.UnknownMetrics:
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unrecognised metrics shape (unit=%q interval=%q), printing raw JSON\n", m.Unit, m.Interval)
		return outfmt.WriteJSON(iocontext.GetIO(cmd.Context()).Out, json.RawMessage(m.Raw))
	default:
		return fmt.Errorf("unexpected metrics type %T", body)
	}
	return f.EndTable()
}

// metricsTotals returns the sample count and energy sum of a series.
func metricsTotals(body api.MetricsBody) (int, float64, bool) {
	var (
		n   int
		sum float64
	)
	switch m := body.(type) {
	case *api.PanelIntraday:
		for _, d := range m.Data {
			sum += d.Energy
		}
		n = len(m.Data)
	case *api.PanelDaily:
		for _, d := range m.Data {
			sum += d.Energy
		}
		n = len(m.Data)
	case *api.InverterIntraday:
		for _, d := range m.Data {
			sum += d.Energy
		}
		n = len(m.Data)
	case *api.InverterDaily:
		for _, d := range m.Data {
			sum += d.Energy
		}
		n = len(m.Data)
	case *api.PlantIntraday:
		for _, d := range m.Data {
			sum += d.Energy
		}
		n = len(m.Data)
	case *api.PlantAggregated:
		for _, d := range m.Data {
			sum += d.Energy
		}
		n = len(m.Data)
	default:
		return 0, 0, false
	}
	return n, sum, true
}

func newMetricsPanelCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "panel <plant>",
		Short: "Fetch 5-minute panel samples from device data",
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
			panel, err := client.Metrics().Panel(cmdContext(cmd), plantID, day)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printJSON(cmd, panel)
			}
			return renderMetrics(cmd, &api.PanelIntraday{
				MetricsHeader: api.MetricsHeader{PlantID: panel.PlantID, Date: panel.Date},
				Data:          panel.Data,
			})
		}),
	}

	cmd.Flags().StringVar(&date, "date", "today", "Date (YYYY-MM-DD, today, yesterday, 3d ago)")
	return cmd
}

func newMetricsLatestDeviceCmd() *cobra.Command {
	var (
		includeState bool
		ago          int64
		legacy       bool
	)

	cmd := &cobra.Command{
		Use:   "latest-device <plant>",
		Short: "Show the latest reading of every device",
		Args:  cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			var opts api.LatestDeviceOptions
			if cmd.Flags().Changed("include-state") {
				opts.IncludeState = &includeState
			}
			if cmd.Flags().Changed("ago") {
				if ago < 0 {
					return fmt.Errorf("--ago must be >= 0")
				}
				opts.Ago = &ago
			}

			client, err := getClient(cmdContext(cmd))
			if err != nil {
				return err
			}
			plantID, err := resolvePlant(cmdContext(cmd), client, args[0])
			if err != nil {
				return err
			}

			var devices []api.LatestDevice
			if legacy {
				devices, err = client.Metrics().LatestDeviceV2(cmdContext(cmd), plantID, opts)
			} else {
				devices, err = client.Metrics().LatestDevice(cmdContext(cmd), plantID, opts)
			}
			if err != nil {
				return err
			}
			if devices == nil {
				devices = []api.LatestDevice{}
			}

			if isJSON(cmd) {
				return printJSON(cmd, devices)
			}
			f := newFormatter(cmd)
			if len(devices) == 0 {
				f.Empty("No devices reported")
				return nil
			}
			f.StartTable("ASSET_ID", "TYPE", "MAP_ID", "TIMESTAMP", "V_IN", "V_OUT", "I_OUT", "TEMP")
			for _, d := range devices {
				f.Row(d.AssetID, d.AssetType, orDash(d.MapID), d.Timestamp,
					formatFloat(float64(d.Metrics.VIn)), formatFloat(float64(d.Metrics.VOut)),
					formatFloat(float64(d.Metrics.IOut)), formatFloat(float64(d.Metrics.Temp)))
			}
			return f.EndTable()
		}),
	}

	cmd.Flags().BoolVar(&includeState, "include-state", false, "Include device state flags")
	cmd.Flags().Int64Var(&ago, "ago", 0, "Look back this many seconds")
	cmd.Flags().BoolVar(&legacy, "v2", false, "Use the legacy v2 endpoint")
	return cmd
}

func newMetricsLatestInverterCmd() *cobra.Command {
	var legacy bool

	cmd := &cobra.Command{
		Use:   "latest-inverter <plant>",
		Short: "Show the latest state of every inverter",
		Args:  cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			client, err := getClient(cmdContext(cmd))
			if err != nil {
				return err
			}
			plantID, err := resolvePlant(cmdContext(cmd), client, args[0])
			if err != nil {
				return err
			}

			var inverters []api.LatestInverter
			if legacy {
				inverters, err = client.Metrics().LatestInverterV2(cmdContext(cmd), plantID)
			} else {
				inverters, err = client.Metrics().LatestInverter(cmdContext(cmd), plantID)
			}
			if err != nil {
				return err
			}
			if inverters == nil {
				inverters = []api.LatestInverter{}
			}

			if isJSON(cmd) {
				return printJSON(cmd, inverters)
			}
			f := newFormatter(cmd)
			if len(inverters) == 0 {
				f.Empty("No inverters reported")
				return nil
			}
			f.StartTable("ASSET_ID", "MODEL", "STATE", "DAILY_ENERGY", "TOTAL_ENERGY", "TIMESTAMP")
			for _, inv := range inverters {
				f.Row(inv.AssetID, orDash(inv.Model), orDash(inv.Data.State),
					optionalFloat(inv.Data.DailyEnergy), optionalFloat(inv.Data.TotalEnergy), inv.Timestamp)
			}
			return f.EndTable()
		}),
	}

	cmd.Flags().BoolVar(&legacy, "v2", false, "Use the legacy v2 endpoint")
	return cmd
}

func optionalFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatFloat(*v)
}

type bulkMetricsRow struct {
	PlantID string          `json:"plant_id"`
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Metrics api.MetricsBody `json:"metrics,omitempty"`
}

func newMetricsBulkCmd() *cobra.Command {
	var (
		mf          metricsQueryFlags
		all         bool
		concurrency int64
	)

	cmd := &cobra.Command{
		Use:   "bulk [plant...]",
		Short: "Fetch the same series for many plants concurrently",
		Example: strings.TrimSpace(`
  patchctl metrics bulk plant-1 plant-2 plant-3 --unit plant --interval day --date yesterday
  patchctl metrics bulk --all --concurrency 8 -o json
`),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return fmt.Errorf("pass plant IDs or --all, not both")
			}
			if concurrency < 0 {
				return fmt.Errorf("--concurrency must be >= 0")
			}
			q, err := mf.query(cmd)
			if err != nil {
				return err
			}
			client, err := getClient(cmdContext(cmd))
			if err != nil {
				return err
			}

			var ids []string
			if all {
				list, err := listAllPlants(cmd, client, 0)
				if err != nil {
					return err
				}
				for _, p := range list.Items {
					ids = append(ids, p.ID)
				}
			} else {
				for _, arg := range args {
					id, err := resolvePlant(cmdContext(cmd), client, arg)
					if err != nil {
						return err
					}
					ids = append(ids, id)
				}
			}
			if len(ids) == 0 {
				newFormatter(cmd).Empty("No plants found")
				return nil
			}

			progress := !flags.Quiet && !isJSON(cmd) && len(ids) > 1
			results := runBulkOperation(cmdContext(cmd), ids, concurrency, progress, cmd.ErrOrStderr(),
				func(ctx context.Context, id string) (api.MetricsBody, error) {
					if mf.legacy {
						return client.Metrics().ByDateV2(ctx, id, q)
					}
					return client.Metrics().ByDate(ctx, id, q)
				})
			succeeded, failed := countResults(results)

			rows := make([]bulkMetricsRow, 0, len(results))
			for _, r := range results {
				row := bulkMetricsRow{PlantID: r.ID, Success: r.Success}
				if r.Error != nil {
					row.Error = r.Error.Error()
				}
				if body, ok := r.Data.(api.MetricsBody); ok {
					row.Metrics = body
				}
				rows = append(rows, row)
			}

			if isJSON(cmd) {
				if err := printJSON(cmd, rows); err != nil {
					return err
				}
			} else {
				f := newFormatter(cmd)
				f.StartTable("PLANT", "UNIT", "INTERVAL", "SAMPLES", "ENERGY", "ERROR")
				for _, row := range rows {
					if !row.Success {
						f.Row(row.PlantID, "-", "-", "-", "-", row.Error)
						continue
					}
					h := row.Metrics.Header()
					samples, energy := "-", "-"
					if n, sum, ok := metricsTotals(row.Metrics); ok {
						samples, energy = strconv.Itoa(n), formatFloat(sum)
					}
					f.Row(row.PlantID, h.Unit, h.Interval, samples, energy, "-")
				}
				if err := f.EndTable(); err != nil {
					return err
				}
				if !flags.Quiet {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%d succeeded, %d failed\n", succeeded, failed)
				}
			}

			if failed > 0 {
				return errBulkPartial{failed: failed, total: len(results)}
			}
			return nil
		}),
	}

	mf.register(cmd)
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Fetch every visible plant")
	cmd.Flags().Int64Var(&concurrency, "concurrency", DefaultConcurrency, "Maximum concurrent requests")
	return cmd
}

type errBulkPartial struct {
	failed int
	total  int
}

func (e errBulkPartial) Error() string {
	return fmt.Sprintf("%d of %d plants failed", e.failed, e.total)
}
