/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/optischema/optischema/config"
	"github.com/optischema/optischema/storage"
	"github.com/spf13/cobra"
)

var cfg = config.New()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "optischema",
	Short: "Continuous PostgreSQL query analysis and optimization",
	Long:  rootLong,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}

// applyFlags folds persistent flag overrides into the configuration.
func applyFlags(cmd *cobra.Command) {
	if url, _ := cmd.Flags().GetString("database-url"); url != "" {
		cfg.SetDatabaseURL(url)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.SetLogLevel(level)
	}
}

// buildStorage creates the configured storage backend.
func buildStorage(ctx context.Context) (storage.Storage, error) {
	switch cfg.StorageType {
	case config.S3Storage:
		store, err := storage.NewS3Storage(ctx,
			storage.WithBucket(cfg.S3Bucket),
			storage.WithRegion(cfg.S3Region),
			storage.WithPrefix(cfg.S3Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewFileStorage(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file storage: %w", err)
		}
		return store, nil
	}
}

var rootLong = `
OptiSchema watches a PostgreSQL database through pg_stat_statements,
analyzes the most expensive statement shapes, and produces optimization
recommendations that can be validated against an isolated sandbox before
anything touches production.

Run 'optischema serve' to start the analysis pipeline.
`
