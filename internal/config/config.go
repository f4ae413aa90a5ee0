// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Storage
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)
	RedisURL    string // Redis address (optional, uses in-process cache/limiter if not set)

	// Risk policy
	BlockThreshold  float64 // probability at or above which we block
	ReviewThreshold float64 // probability at or above which we flag for review

	// Rate limiting
	RateLimitWindow time.Duration // length of the fixed rate-limit window

	// Model training
	TrainingInterval time.Duration // how often the scheduler considers a run
	TrainingMinRows  int           // minimum labeled samples before training runs
	TrainingEpochs   int
	LearningRate     float64

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint for traces (optional)

	// Security
	AdminSecret string // secret for partner provisioning endpoints
}

// Defaults
const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultBlockThreshold  = 0.9
	DefaultReviewThreshold = 0.6
	DefaultTrainingMinRows = 100
	DefaultTrainingEpochs  = 100
	DefaultLearningRate    = 0.01
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		LogLevel:         getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:      os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		RedisURL:         os.Getenv("REDIS_URL"),    // Optional, uses in-process if not set
		BlockThreshold:   getEnvFloat("RISK_BLOCK_THRESHOLD", DefaultBlockThreshold),
		ReviewThreshold:  getEnvFloat("RISK_REVIEW_THRESHOLD", DefaultReviewThreshold),
		RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		TrainingInterval: getEnvDuration("TRAINING_INTERVAL", time.Hour),
		TrainingMinRows:  int(getEnvInt64("TRAINING_MIN_SAMPLES", DefaultTrainingMinRows)),
		TrainingEpochs:   int(getEnvInt64("TRAINING_EPOCHS", DefaultTrainingEpochs)),
		LearningRate:     getEnvFloat("TRAINING_LEARNING_RATE", DefaultLearningRate),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		AdminSecret:      os.Getenv("ADMIN_SECRET"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent
func (c *Config) Validate() error {
	if c.BlockThreshold <= 0 || c.BlockThreshold > 1 {
		return fmt.Errorf("RISK_BLOCK_THRESHOLD must be in (0, 1], got %v", c.BlockThreshold)
	}
	if c.ReviewThreshold <= 0 || c.ReviewThreshold > 1 {
		return fmt.Errorf("RISK_REVIEW_THRESHOLD must be in (0, 1], got %v", c.ReviewThreshold)
	}
	if c.ReviewThreshold >= c.BlockThreshold {
		return fmt.Errorf("RISK_REVIEW_THRESHOLD (%v) must be below RISK_BLOCK_THRESHOLD (%v)",
			c.ReviewThreshold, c.BlockThreshold)
	}
	if c.RateLimitWindow < time.Second {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be at least 1s, got %v", c.RateLimitWindow)
	}
	if c.TrainingMinRows < 1 {
		return fmt.Errorf("TRAINING_MIN_SAMPLES must be positive, got %d", c.TrainingMinRows)
	}
	if c.TrainingEpochs < 1 {
		return fmt.Errorf("TRAINING_EPOCHS must be positive, got %d", c.TrainingEpochs)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("TRAINING_LEARNING_RATE must be positive, got %v", c.LearningRate)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
