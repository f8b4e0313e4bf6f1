package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Database
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Redis
	RedisURL string `mapstructure:"REDIS_URL"`

	// CORS
	CorsOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Storage
	DataDir      string `mapstructure:"DATA_DIR"`
	ArtifactsDir string `mapstructure:"ARTIFACTS_DIR"`

	// Training
	RetrainSchedule string  `mapstructure:"RETRAIN_SCHEDULE"`
	TrainWindowDays int     `mapstructure:"TRAIN_WINDOW_DAYS"`
	TrainMinMinutes float64 `mapstructure:"TRAIN_MIN_MINUTES"`
	ArtifactKeep    int     `mapstructure:"ARTIFACT_KEEP"`

	// Daily feed (optional remote CSV pull)
	CSVFeedURL              string        `mapstructure:"CSV_FEED_URL"`
	FeedTimeout             time.Duration `mapstructure:"FEED_TIMEOUT"`
	FeedRatePerMinute       int           `mapstructure:"FEED_RATE_PER_MINUTE"`
	CircuitBreakerThreshold int           `mapstructure:"CIRCUIT_BREAKER_THRESHOLD"`

	// Caching
	CacheTTL time.Duration `mapstructure:"CACHE_TTL"`

	// Upload limits
	UploadRateLimit  int           `mapstructure:"UPLOAD_RATE_LIMIT"`
	UploadRateWindow time.Duration `mapstructure:"UPLOAD_RATE_WINDOW"`
	MaxUploadBytes   int64         `mapstructure:"MAX_UPLOAD_BYTES"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("DATABASE_URL", "sqlite://data/projections.db")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	viper.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("DATA_DIR", "data")
	viper.SetDefault("ARTIFACTS_DIR", "data/artifacts")
	viper.SetDefault("RETRAIN_SCHEDULE", "0 6 * * *") // nightly, after feeds settle
	viper.SetDefault("TRAIN_WINDOW_DAYS", 0)          // 0 = full history
	viper.SetDefault("TRAIN_MIN_MINUTES", 6.0)
	viper.SetDefault("ARTIFACT_KEEP", 5)
	viper.SetDefault("CSV_FEED_URL", "")
	viper.SetDefault("FEED_TIMEOUT", "10s")
	viper.SetDefault("FEED_RATE_PER_MINUTE", 2)
	viper.SetDefault("CIRCUIT_BREAKER_THRESHOLD", 5)
	viper.SetDefault("CACHE_TTL", "5m")
	viper.SetDefault("UPLOAD_RATE_LIMIT", 12)
	viper.SetDefault("UPLOAD_RATE_WINDOW", "1h")
	viper.SetDefault("MAX_UPLOAD_BYTES", 16<<20)

	// Read from environment
	viper.AutomaticEnv()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Parse CORS origins from comma-separated string
	if corsStr := viper.GetString("CORS_ORIGINS"); corsStr != "" {
		config.CorsOrigins = strings.Split(corsStr, ",")
	}

	return &config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
