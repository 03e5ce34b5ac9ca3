package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/miradorstack/mirador-engage/internal/api"
)

var (
	remoteAddr   string
	window       time.Duration
	hourly       int
	alertLimit   int
	exportDir    string
	exportUpload bool
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show the model health snapshot",
	Long: `Compute the health snapshot from the local prediction store, or ask a
running monitor with --addr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		req := api.HealthRequest{WindowHours: window.Hours(), HourlyHours: hourly}

		var resp api.HealthResponse
		if remoteAddr != "" {
			client, closeConn, err := dialMonitor(remoteAddr)
			if err != nil {
				return err
			}
			defer closeConn()
			if resp, err = client.Health(ctx, req); err != nil {
				return fmt.Errorf("health request failed: %w", err)
			}
		} else {
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			snap, err := a.Monitor.SnapshotWindow(ctx, window)
			if err != nil {
				return err
			}
			resp = api.HealthResponse{Available: snap != nil, Snapshot: api.ToSnapshotMessage(snap)}
			if hourly > 0 {
				hours, err := a.Monitor.Hourly(ctx, hourly)
				if err != nil {
					return err
				}
				resp.Hourly = api.ToHourlyMessages(hours)
			}
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, resp)
		}
		printHealth(out, resp)
		return nil
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List recent alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var resp api.AlertsResponse
		if remoteAddr != "" {
			client, closeConn, err := dialMonitor(remoteAddr)
			if err != nil {
				return err
			}
			defer closeConn()
			if resp, err = client.RecentAlerts(ctx, api.AlertsRequest{Limit: alertLimit}); err != nil {
				return fmt.Errorf("alerts request failed: %w", err)
			}
		} else {
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if resp.Alerts, err = a.Store.RecentAlerts(ctx, alertLimit); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, resp)
		}
		if len(resp.Alerts) == 0 {
			fmt.Fprintln(out, "no alerts")
			return nil
		}
		for _, alert := range resp.Alerts {
			fmt.Fprintf(out, "%s  %-9s %-12s %s\n", alert.CreatedAt.Format(time.RFC3339), alert.Severity, alert.Type, alert.Message)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write prediction and summary CSVs for dashboards",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if cmd.Flags().Changed("upload") {
			cfg.Export.Upload = exportUpload
		}
		if exportDir == "" {
			exportDir = cfg.Export.Dir
		}
		if window == 0 {
			window = cfg.Export.Window
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		exporter, err := a.Exporter()
		if err != nil {
			return err
		}
		result, err := exporter.Export(ctx, exportDir, window)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, result)
		}
		fmt.Fprintf(out, "exported %d predictions\n  %s\n  %s\n", result.Rows, result.PredictionsPath, result.SummaryPath)
		for _, name := range result.Uploaded {
			fmt.Fprintf(out, "  uploaded %s\n", name)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().StringVar(&remoteAddr, "addr", "", "Address of a running monitor (default: read the local store)")
	healthCmd.Flags().DurationVar(&window, "window", 0, "Snapshot window (default: policy window)")
	healthCmd.Flags().IntVar(&hourly, "hourly", 0, "Also show hourly aggregates for this many hours")

	alertsCmd.Flags().StringVar(&remoteAddr, "addr", "", "Address of a running monitor (default: read the local store)")
	alertsCmd.Flags().IntVar(&alertLimit, "limit", 20, "Number of alerts to show")

	exportCmd.Flags().StringVar(&exportDir, "dir", "", "Output directory (default: export.dir)")
	exportCmd.Flags().DurationVar(&window, "window", 0, "Export window (default: export.window)")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false, "Upload the files to blob storage")

	rootCmd.AddCommand(healthCmd, alertsCmd, exportCmd)
}

func dialMonitor(addr string) (*api.Client, func(), error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return api.NewClient(conn), func() { _ = conn.Close() }, nil
}

func printHealth(w io.Writer, resp api.HealthResponse) {
	if !resp.Available || resp.Snapshot == nil {
		fmt.Fprintln(w, "health unknown: no predictions in window")
	} else {
		s := resp.Snapshot
		fmt.Fprintf(w, "health %.1f (%s) over %d predictions in %.0fh\n", s.HealthScore, s.Status, s.Count, s.WindowHours)
		fmt.Fprintf(w, "  mean %.4f  std %.4f  min %.4f  max %.4f\n", s.Mean, s.StdDev, s.Min, s.Max)
		for _, b := range s.Distribution {
			fmt.Fprintf(w, "  %-10s [%.2f, %.2f)  %6d  %6.2f%%\n", b.Band, b.Lower, b.Upper, b.Count, b.Percentage)
		}
		if s.OutOfRange > 0 {
			fmt.Fprintf(w, "  %d predictions outside [0, 1]\n", s.OutOfRange)
		}
	}
	for _, h := range resp.Hourly {
		fmt.Fprintf(w, "  %s  %5d  mean %.4f\n", h.Hour.Format("2006-01-02 15:00"), h.Count, h.Mean)
	}
}
