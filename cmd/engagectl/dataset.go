package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-engage/internal/api"
	"github.com/miradorstack/mirador-engage/internal/app"
	"github.com/miradorstack/mirador-engage/internal/balance"
	"github.com/miradorstack/mirador-engage/internal/dataset"
	"github.com/miradorstack/mirador-engage/internal/metrics"
	"github.com/miradorstack/mirador-engage/internal/models"
)

var (
	inputPath    string
	targetColumn string
	dropColumns  []string

	outputPath   string
	strategyName string
	neighbours   int
	seed         int64
	targetRatio  float64
	persist      bool

	trainPath    string
	testPath     string
	testFraction float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report the class distribution and class weights of a CSV dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := readInput()
		if err != nil {
			return err
		}
		m, err := balance.ComputeMetrics(ds.Labels, nil)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, api.ToMetricsMessage(m))
		}
		printDistribution(out, "class distribution", m.Distribution)
		fmt.Fprintf(out, "  minority frequency %.4f\n", m.MinorityFrequency)
		for _, label := range sortedKeys(m.ClassWeights) {
			fmt.Fprintf(out, "  weight %-12s %.4f\n", label, m.ClassWeights[label])
		}
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Resample a CSV dataset and write the balanced rows",
	Example: `  engagectl balance --input train.csv --target engagement_class --strategy smote --output balanced.csv
  engagectl balance --input train.csv --target engagement_class --strategy combined --persist`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := readInput()
		if err != nil {
			return err
		}
		b := balance.New(logger, balancerOptions(cmd))
		out, report, err := b.Balance(ds)
		if err != nil {
			return err
		}
		if err := writeDataset(cmd.OutOrStdout(), outputPath, out); err != nil {
			return err
		}
		if err := finishReport(cmd, report); err != nil {
			return err
		}
		// The CSV owns stdout when no output file is given.
		reportOut := cmd.OutOrStdout()
		if outputPath == "" || outputPath == "-" {
			reportOut = cmd.ErrOrStderr()
		}
		return printReport(cmd, reportOut, report)
	},
}

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Stratified train/test split; only the training partition is balanced",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := readInput()
		if err != nil {
			return err
		}
		if trainPath == "" || testPath == "" {
			return fmt.Errorf("--train and --test output paths are required")
		}
		fraction := testFraction
		if fraction == 0 {
			fraction = cfg.Balancing.TestFraction
		}
		result, err := balance.SplitAndBalance(ds, fraction, balance.New(logger, balancerOptions(cmd)))
		if err != nil {
			return err
		}
		if err := dataset.WriteFile(trainPath, result.Train, targetColumn); err != nil {
			return err
		}
		if err := dataset.WriteFile(testPath, result.Test, targetColumn); err != nil {
			return err
		}
		if err := finishReport(cmd, result.Report); err != nil {
			return err
		}

		testDist, err := balance.Analyze(result.Test.Labels)
		if err != nil && !errors.Is(err, models.ErrEmptyDataset) {
			return err
		}
		w := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(w, map[string]any{
				"train_rows":        result.Train.Len(),
				"train_unbalanced":  result.TrainUnbalanced,
				"test_rows":         result.Test.Len(),
				"test_distribution": api.ToDistributionMessage(testDist),
				"report":            api.ToReportMessage(result.Report),
				"note":              result.Note,
			})
		}
		fmt.Fprintf(w, "train: %d rows (%d before balancing) -> %s\n", result.Train.Len(), result.TrainUnbalanced, trainPath)
		fmt.Fprintf(w, "test:  %d rows -> %s\n", result.Test.Len(), testPath)
		printDistribution(w, "test distribution", testDist)
		fmt.Fprintln(w, result.Note)
		return printReport(cmd, w, result.Report)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{analyzeCmd, balanceCmd, splitCmd} {
		cmd.Flags().StringVar(&inputPath, "input", "", "CSV file to read")
		cmd.Flags().StringVar(&targetColumn, "target", "label", "Name of the label column")
		cmd.Flags().StringSliceVar(&dropColumns, "drop", nil, "Columns to ignore")
		_ = cmd.MarkFlagRequired("input")
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{balanceCmd, splitCmd} {
		cmd.Flags().StringVar(&strategyName, "strategy", "", "Balancing strategy (smote, adasyn, combined, undersample, none)")
		cmd.Flags().IntVar(&neighbours, "k", 0, "Neighbour count for synthetic strategies")
		cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed")
		cmd.Flags().Float64Var(&targetRatio, "target-ratio", 0, "Target majority:minority ratio after balancing")
		cmd.Flags().BoolVar(&persist, "persist", false, "Store the balancing report in the prediction store")
	}
	balanceCmd.Flags().StringVar(&outputPath, "output", "-", "Where to write the balanced CSV")
	splitCmd.Flags().StringVar(&trainPath, "train", "", "Where to write the balanced training CSV")
	splitCmd.Flags().StringVar(&testPath, "test", "", "Where to write the untouched test CSV")
	splitCmd.Flags().Float64Var(&testFraction, "test-fraction", 0, "Share of each class held out for testing")
}

func readInput() (models.Dataset, error) {
	return dataset.ReadFile(inputPath, dataset.Options{Target: targetColumn, Drop: dropColumns})
}

func writeDataset(w io.Writer, path string, ds models.Dataset) error {
	if path == "" || path == "-" {
		return dataset.Write(w, ds, targetColumn)
	}
	return dataset.WriteFile(path, ds, targetColumn)
}

func balancerOptions(cmd *cobra.Command) balance.Options {
	opts := app.BalancerOptions(cfg)
	if cmd.Flags().Changed("strategy") {
		strategy, err := models.ParseStrategy(strategyName)
		if err != nil {
			logger.Warn("unknown strategy, balancing will fall back", slog.String("strategy", strategyName))
		}
		opts.Strategy = strategy
	}
	if neighbours > 0 {
		opts.K = neighbours
	}
	if seed != 0 {
		opts.Seed = seed
	}
	if targetRatio > 0 {
		opts.TargetRatio = targetRatio
	}
	return opts
}

func finishReport(cmd *cobra.Command, report models.BalancingReport) error {
	outcome := metrics.OutcomeSuccess
	if report.FellBack {
		outcome = metrics.OutcomeFallback
	}
	metrics.ObserveBalancing(string(report.Strategy), outcome, report.SyntheticSamples)
	if !persist {
		return nil
	}
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	id, err := a.Store.StoreBalancingReport(cmd.Context(), report)
	if err != nil {
		return err
	}
	logger.Info("balancing report stored", slog.Int64("id", id))
	return nil
}

// printReport writes the JSON report to jsonOut, or the text form to stderr.
func printReport(cmd *cobra.Command, jsonOut io.Writer, report models.BalancingReport) error {
	w := cmd.ErrOrStderr()
	if jsonOutput {
		return printJSON(jsonOut, api.ToReportMessage(report))
	}
	if report.FellBack {
		fmt.Fprintf(w, "balancing fell back to original data: %s\n", report.FallbackReason)
	}
	printDistribution(w, "before "+string(report.Strategy), report.Before)
	if !report.FellBack {
		printDistribution(w, "after "+string(report.Strategy), report.After)
		fmt.Fprintf(w, "  synthetic %d, dropped %d, improvement %.2fx (%.1f%%)\n",
			report.SyntheticSamples, report.DroppedSamples, report.RatioImprovement, report.ImprovementPercent)
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
