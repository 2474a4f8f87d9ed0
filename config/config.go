package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/optischema/optischema/logger"
)

// StorageType represents the type of storage to use
type StorageType string

const (
	// FileStorage represents file-based storage
	FileStorage StorageType = "file"
	// S3Storage represents S3-based storage
	S3Storage StorageType = "s3"
)

/*
Config holds the application configuration including PostgreSQL connection
settings, AI provider settings, cache settings, storage settings, and the
intervals that drive the analysis pipeline.
*/
type Config struct {
	// PostgreSQL connection settings
	DatabaseURL        string
	SandboxDatabaseURL string

	// Pipeline intervals and limits
	PollingInterval     time.Duration
	AnalysisInterval    time.Duration
	MetricsWindow       time.Duration
	TopQueriesLimit     int
	MaxParallelAnalysis int

	// AI provider settings
	Provider        string
	OpenAIModel     string
	DeepSeekAPIKey  string
	DeepSeekBaseURL string
	ProviderTimeout time.Duration

	// AI response cache settings
	CacheTTL  time.Duration
	CacheSize int

	// Sandbox benchmark settings
	BenchmarkRuns    int
	BenchmarkTimeout time.Duration

	// Storage settings
	StorageType StorageType
	StoragePath string

	// S3 Storage settings
	S3Bucket        string
	S3Region        string
	S3Prefix        string
	S3RetentionDays int

	// Logging settings
	LogLevel log.Level
}

/*
New creates a new configuration with default values.
It initializes configuration from environment variables or falls back to defaults.
*/
func New() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	defaultStoragePath := filepath.Join(home, ".optischema", "records")

	return &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		SandboxDatabaseURL:  os.Getenv("SANDBOX_DATABASE_URL"),
		PollingInterval:     parseDuration(getEnvWithDefault("POLLING_INTERVAL", "30s"), 30*time.Second),
		AnalysisInterval:    parseDuration(getEnvWithDefault("ANALYSIS_INTERVAL", "60s"), 60*time.Second),
		MetricsWindow:       parseDuration(getEnvWithDefault("METRICS_WINDOW", "15m"), 15*time.Minute),
		TopQueriesLimit:     parseInt(getEnvWithDefault("TOP_QUERIES_LIMIT", "10"), 10),
		MaxParallelAnalysis: parseInt(getEnvWithDefault("MAX_PARALLEL_ANALYSIS", "4"), 4),
		Provider:            getEnvWithDefault("LLM_PROVIDER", "openai"),
		OpenAIModel:         getEnvWithDefault("OPENAI_MODEL", "gpt-4o"),
		DeepSeekAPIKey:      getEnvWithDefault("DEEPSEEK_API_KEY", ""),
		DeepSeekBaseURL:     getEnvWithDefault("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		ProviderTimeout:     parseDuration(getEnvWithDefault("PROVIDER_TIMEOUT", "30s"), 30*time.Second),
		CacheTTL:            parseDuration(getEnvWithDefault("CACHE_TTL", "1h"), time.Hour),
		CacheSize:           parseInt(getEnvWithDefault("CACHE_SIZE", "1000"), 1000),
		BenchmarkRuns:       parseInt(getEnvWithDefault("BENCHMARK_RUNS", "5"), 5),
		BenchmarkTimeout:    parseDuration(getEnvWithDefault("BENCHMARK_TIMEOUT", "60s"), 60*time.Second),
		StorageType:         StorageType(getEnvWithDefault("STORAGE_TYPE", string(FileStorage))),
		StoragePath:         getEnvWithDefault("STORAGE_PATH", defaultStoragePath),
		S3Bucket:            getEnvWithDefault("S3_BUCKET", ""),
		S3Region:            getEnvWithDefault("S3_REGION", "us-east-1"),
		S3Prefix:            getEnvWithDefault("S3_PREFIX", "tuning-records/"),
		S3RetentionDays:     parseInt(getEnvWithDefault("S3_RETENTION_DAYS", "90"), 90),
		LogLevel:            parseLogLevel(getEnvWithDefault("LOG_LEVEL", "info")),
	}
}

/*
Validate checks if the configuration is valid.
It ensures required fields are set and have appropriate values.
*/
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	if c.TopQueriesLimit <= 0 {
		return fmt.Errorf("top queries limit must be positive, got %d", c.TopQueriesLimit)
	}

	if c.BenchmarkRuns <= 0 {
		return fmt.Errorf("benchmark runs must be positive, got %d", c.BenchmarkRuns)
	}

	switch c.Provider {
	case "openai":
	case "deepseek":
		if c.DeepSeekAPIKey == "" {
			return fmt.Errorf("DEEPSEEK_API_KEY is required when LLM_PROVIDER=deepseek")
		}
	default:
		return fmt.Errorf("invalid provider: %s (valid values: openai, deepseek)", c.Provider)
	}

	switch c.StorageType {
	case S3Storage:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET environment variable is required when STORAGE_TYPE=s3")
		}
	case FileStorage:
	default:
		return fmt.Errorf("invalid storage type: %s (valid values: file, s3)", c.StorageType)
	}

	return nil
}

/*
SetDatabaseURL sets the database connection string in the configuration.
*/
func (c *Config) SetDatabaseURL(url string) {
	if url != "" {
		c.DatabaseURL = url
	}
}

/*
SetStoragePath sets the storage path in the configuration.
*/
func (c *Config) SetStoragePath(path string) {
	if path != "" {
		c.StoragePath = path
	}
}

/*
SetLogLevel sets the log level in the configuration.
*/
func (c *Config) SetLogLevel(level string) {
	if level != "" {
		c.LogLevel = parseLogLevel(level)
	}
}

/*
ApplyLogging configures the logger based on the current configuration.
*/
func (c *Config) ApplyLogging() {
	logger.SetLevel(c.LogLevel)
	logger.Info("Logging configured",
		"level", c.LogLevel.String(),
		"provider", c.Provider)
}

/*
getEnvWithDefault retrieves an environment variable or returns a default value if not set.
*/
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

/*
parseLogLevel converts a string log level to a log.Level value.
*/
func parseLogLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

/*
parseDuration converts a string to a time.Duration. Bare integers are read
as seconds to match the original environment conventions.
*/
func parseDuration(value string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

/*
parseInt converts a string to an int value.
*/
func parseInt(value string, fallback int) int {
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}
