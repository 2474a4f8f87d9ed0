package cmd

import (
	"fmt"
	"time"

	"github.com/optischema/optischema/config"
	"github.com/optischema/optischema/logger"
	"github.com/optischema/optischema/storage"
	"github.com/spf13/cobra"
)

var retentionDays int

/*
cleanupCmd deletes tuning records older than the retention period. This is
mainly useful for S3 storage to control storage costs.
*/
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clean up old tuning records",
	Long: `Delete tuning records that are older than the specified retention period.
This command is particularly useful for S3 storage to control storage costs.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		applyFlags(cmd)
		cfg.ApplyLogging()
		return cfg.Validate()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Info("Starting cleanup of old tuning records",
			"retention_days", retentionDays,
			"storage_type", cfg.StorageType)

		if cfg.StorageType != config.S3Storage {
			logger.Info("File storage cleanup not implemented",
				"storage_path", cfg.StoragePath)
			logger.Info("To clean up file storage, manually delete files older than the retention period")
			return nil
		}

		logger.Info("Using S3 storage", "bucket", cfg.S3Bucket, "region", cfg.S3Region)
		store, err := storage.NewS3Storage(cmd.Context(),
			storage.WithBucket(cfg.S3Bucket),
			storage.WithRegion(cfg.S3Region),
			storage.WithPrefix(cfg.S3Prefix),
		)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 storage: %w", err)
		}

		retention := time.Duration(retentionDays) * 24 * time.Hour
		count, err := store.DeleteOldRecords(cmd.Context(), retention)
		if err != nil {
			return fmt.Errorf("failed to delete old records: %w", err)
		}

		logger.Info("Cleanup completed successfully", "deleted_records", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().IntVar(&retentionDays, "retention-days", 90, "Delete records older than this many days")
}
