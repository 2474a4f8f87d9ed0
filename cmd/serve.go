package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/optischema/optischema/ai"
	"github.com/optischema/optischema/aicache"
	"github.com/optischema/optischema/analysis"
	"github.com/optischema/optischema/logger"
	"github.com/optischema/optischema/metrics"
	"github.com/optischema/optischema/pipeline"
	"github.com/optischema/optischema/postgres"
	"github.com/optischema/optischema/recommend"
	"github.com/optischema/optischema/sandbox"
	"github.com/optischema/optischema/tracker"
	"github.com/spf13/cobra"
)

/*
serveCmd runs the continuous analysis pipeline until interrupted.
*/
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the continuous analysis pipeline",
	Long: `Start the poll and analysis cycles against the configured database.
The pipeline keeps running until it receives SIGINT or SIGTERM.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		applyFlags(cmd)
		cfg.ApplyLogging()
		return cfg.Validate()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		conn := postgres.NewConn(postgres.WithURL(cfg.DatabaseURL))
		if err := conn.Connect(ctx); err != nil {
			return err
		}
		defer conn.Close()

		installed, err := conn.HasStatStatements(ctx)
		if err != nil {
			return err
		}
		if !installed {
			return fmt.Errorf("pg_stat_statements extension is not installed in the target database")
		}

		store := metrics.NewStore(metrics.WithWindow(cfg.MetricsWindow))
		collector := metrics.NewCollector(
			metrics.WithSource(postgres.NewStatReader(conn)),
			metrics.WithStore(store),
		)

		analyzer := analysis.NewAnalyzer(
			analysis.WithPlanSource(postgres.NewExplainer(conn)),
			analysis.WithParallelism(cfg.MaxParallelAnalysis),
		)

		cache := aicache.NewClient(aicache.NewMemory(
			aicache.WithTTL(cfg.CacheTTL),
			aicache.WithSize(cfg.CacheSize),
		))

		generator := recommend.NewGenerator(
			recommend.WithProvider(buildProvider()),
			recommend.WithCache(cache),
			recommend.WithTimeout(cfg.ProviderTimeout),
		)

		store2, err := buildStorage(ctx)
		if err != nil {
			return err
		}

		track := tracker.NewTracker(tracker.WithArchive(store2))

		opts := []pipeline.PipelineOptionFn{
			pipeline.WithCollector(collector),
			pipeline.WithStore(store),
			pipeline.WithAnalyzer(analyzer),
			pipeline.WithGenerator(generator),
			pipeline.WithTracker(track),
			pipeline.WithArchive(store2),
			pipeline.WithPollInterval(cfg.PollingInterval),
			pipeline.WithAnalysisInterval(cfg.AnalysisInterval),
			pipeline.WithTopN(cfg.TopQueriesLimit),
		}

		if cfg.SandboxDatabaseURL != "" {
			sandboxConn := postgres.NewConn(postgres.WithURL(cfg.SandboxDatabaseURL))
			if err := sandboxConn.Connect(ctx); err != nil {
				return fmt.Errorf("failed to connect to sandbox database: %w", err)
			}
			defer sandboxConn.Close()

			pool := sandbox.NewPool(sandbox.NewInstance(postgres.NewSession(sandboxConn)))
			opts = append(opts, pipeline.WithValidator(sandbox.NewValidator(
				sandbox.WithPool(pool),
				sandbox.WithRuns(cfg.BenchmarkRuns),
				sandbox.WithTimeout(cfg.BenchmarkTimeout),
			)))
		} else {
			logger.Warn("SANDBOX_DATABASE_URL not set, recommendations cannot be validated")
		}

		pipe := pipeline.New(opts...)
		if err := pipe.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()
		logger.Info("Shutting down")
		return pipe.Stop()
	},
}

// buildProvider creates the configured reasoning provider.
func buildProvider() ai.Provider {
	if cfg.Provider == "deepseek" {
		return ai.NewConn(
			ai.WithName("deepseek"),
			ai.WithModel("deepseek-chat"),
			ai.WithBaseURL(cfg.DeepSeekBaseURL),
			ai.WithAPIKey(cfg.DeepSeekAPIKey),
		)
	}
	return ai.NewConn(ai.WithModel(cfg.OpenAIModel))
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
