package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all process configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds the HTTP/websocket listener configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds the Postgres connection pool configuration.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int32         `mapstructure:"max_open_conns"`
	MinOpenConns    int32         `mapstructure:"min_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// CacheConfig holds the Redis connection configuration backing the progress
// registry's snapshot and cancellation state.
type CacheConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// MatchingConfig holds process-level matching thresholds and sizing, loaded
// and checked by Validate. The matching engines do not read these values:
// tenantconfig.Loader falls back to its own hardcoded defaults when a
// tenant has no active MatchingConfiguration row.
type MatchingConfig struct {
	DefaultAutoApproveThreshold  float64 `mapstructure:"default_auto_approve_threshold"`
	DefaultManualReviewThreshold float64 `mapstructure:"default_manual_review_threshold"`
	DefaultRejectionThreshold    float64 `mapstructure:"default_rejection_threshold"`
	DefaultBatchSize             int     `mapstructure:"default_batch_size"`
	DefaultMaxConcurrentJobs     int     `mapstructure:"default_max_concurrent_jobs"`
}

// IngestionConfig bounds the CSV ingestion pipeline.
type IngestionConfig struct {
	MaxFileSizeBytes   int64         `mapstructure:"max_file_size_bytes"`
	ProgressCheckpoint int           `mapstructure:"progress_checkpoint_every"`
	SnapshotTTL        time.Duration `mapstructure:"snapshot_ttl"`
	UploadDir          string        `mapstructure:"upload_dir"`
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configuration from the given file plus environment overrides.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.min_open_conns", 2)
	viper.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	viper.SetDefault("database.conn_max_idle_time", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	viper.SetDefault("cache.addr", "localhost:6379")
	viper.SetDefault("cache.db", 0)
	viper.SetDefault("cache.pool_size", 10)

	viper.SetDefault("matching.default_auto_approve_threshold", 0.95)
	viper.SetDefault("matching.default_manual_review_threshold", 0.70)
	viper.SetDefault("matching.default_rejection_threshold", 0.40)
	viper.SetDefault("matching.default_batch_size", 100)
	viper.SetDefault("matching.default_max_concurrent_jobs", 5)

	viper.SetDefault("ingestion.max_file_size_bytes", 50*1024*1024)
	viper.SetDefault("ingestion.progress_checkpoint_every", 50)
	viper.SetDefault("ingestion.snapshot_ttl", time.Hour)
	viper.SetDefault("ingestion.upload_dir", "uploads")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

func bindEnvVars() {
	viper.BindEnv("database.dsn", "DATABASE_DSN")
	viper.BindEnv("cache.addr", "CACHE_ADDR")
	viper.BindEnv("cache.password", "CACHE_PASSWORD")
}

// Validate checks required configuration is present.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Cache.Addr == "" {
		return fmt.Errorf("cache.addr is required")
	}
	if c.Matching.DefaultAutoApproveThreshold <= c.Matching.DefaultManualReviewThreshold {
		return fmt.Errorf("matching.default_auto_approve_threshold must exceed default_manual_review_threshold")
	}
	if c.Matching.DefaultManualReviewThreshold <= c.Matching.DefaultRejectionThreshold {
		return fmt.Errorf("matching.default_manual_review_threshold must exceed default_rejection_threshold")
	}
	return nil
}
