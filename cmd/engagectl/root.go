package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-engage/internal/app"
	"github.com/miradorstack/mirador-engage/internal/config"
	"github.com/miradorstack/mirador-engage/internal/models"
	"github.com/miradorstack/mirador-engage/internal/utils"
)

var (
	configPath string
	logLevel   string
	jsonOutput bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "engagectl",
	Short: "Batch tooling for the engagement monitor",
	Long: `Analyse and rebalance training data, inspect model health and export
dashboards from the prediction store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		logger = utils.NewLoggerTo(cmd.ErrOrStderr(), level, cfg.Logging.JSON)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

// openApp wires the store-backed components for commands that need them.
func openApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDistribution(w io.Writer, title string, d models.ClassDistribution) {
	fmt.Fprintf(w, "%s (%d samples)\n", title, d.Total)
	labels := make([]string, 0, len(d.Counts))
	for label := range d.Counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(w, "  %-12s %8d  %6.2f%%\n", label, d.Counts[label], d.Percentages[label])
	}
	fmt.Fprintf(w, "  imbalance ratio %.2f:1", d.ImbalanceRatio)
	if d.IsImbalanced {
		fmt.Fprint(w, " (imbalanced)")
	}
	fmt.Fprintln(w)
}
