package cmd

import (
	"fmt"

	"github.com/optischema/optischema/logger"
	"github.com/optischema/optischema/postgres"
	"github.com/optischema/optischema/sandbox"
	"github.com/optischema/optischema/tracker"
	"github.com/spf13/cobra"
)

/*
validateCmd benchmarks a stored recommendation against the sandbox database
and records the result.
*/
var validateCmd = &cobra.Command{
	Use:   "validate <recommendation-id>",
	Short: "Benchmark a recommendation in the sandbox",
	Long: `Load a stored recommendation, benchmark it against the sandbox database,
and persist the benchmark result. The recommendation moves to applied only
when the benchmark succeeds.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		applyFlags(cmd)
		cfg.ApplyLogging()

		if err := cfg.Validate(); err != nil {
			return err
		}
		if cfg.SandboxDatabaseURL == "" {
			return fmt.Errorf("SANDBOX_DATABASE_URL environment variable is required for validation")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		recordID := args[0]

		store, err := buildStorage(ctx)
		if err != nil {
			return err
		}

		record, err := store.GetTuningRecord(ctx, recordID)
		if err != nil {
			return fmt.Errorf("failed to load tuning record: %w", err)
		}
		if record.Recommendation == nil {
			return fmt.Errorf("tuning record %s has no recommendation", recordID)
		}
		if record.Status.Terminal() {
			return fmt.Errorf("recommendation %s is %s and cannot be validated", recordID, record.Status)
		}

		conn := postgres.NewConn(postgres.WithURL(cfg.SandboxDatabaseURL))
		if err := conn.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to sandbox database: %w", err)
		}
		defer conn.Close()

		validator := sandbox.NewValidator(
			sandbox.WithPool(sandbox.NewPool(sandbox.NewInstance(postgres.NewSession(conn)))),
			sandbox.WithRuns(cfg.BenchmarkRuns),
			sandbox.WithTimeout(cfg.BenchmarkTimeout),
		)

		result, err := validator.Benchmark(ctx, record.Recommendation)
		if err != nil {
			return err
		}

		record.Benchmark = result
		if result.Succeeded() {
			record.Status = tracker.StatusApplied
		}
		if err := store.SaveTuningRecord(ctx, record); err != nil {
			logger.Error("Failed to persist benchmark result", "id", recordID, "error", err)
		}

		fmt.Printf("Benchmark outcome: %s\n", result.Outcome)
		if result.Succeeded() {
			fmt.Printf("Baseline: %.2f ms, optimized: %.2f ms, improvement: %.2f%%\n",
				result.BaselineLatency, result.OptimizedLatency, result.ImprovementPct)
		} else if result.Error != "" {
			fmt.Printf("Error: %s\n", result.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
