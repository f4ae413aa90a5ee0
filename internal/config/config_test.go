package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, DefaultBlockThreshold, cfg.BlockThreshold)
	assert.Equal(t, DefaultReviewThreshold, cfg.ReviewThreshold)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, DefaultTrainingMinRows, cfg.TrainingMinRows)
}

func TestLoad_ThresholdOverrides(t *testing.T) {
	setEnv(t, "RISK_BLOCK_THRESHOLD", "0.95")
	setEnv(t, "RISK_REVIEW_THRESHOLD", "0.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.95, cfg.BlockThreshold)
	assert.Equal(t, 0.5, cfg.ReviewThreshold)
}

func TestLoad_InvalidThresholds(t *testing.T) {
	setEnv(t, "RISK_BLOCK_THRESHOLD", "0.5")
	setEnv(t, "RISK_REVIEW_THRESHOLD", "0.8")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "RISK_REVIEW_THRESHOLD")
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		BlockThreshold:   0.9,
		ReviewThreshold:  0.6,
		RateLimitWindow:  time.Minute,
		TrainingMinRows:  100,
		TrainingEpochs:   100,
		LearningRate:     0.01,
		TrainingInterval: time.Hour,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "block threshold above one",
			mutate:  func(c *Config) { c.BlockThreshold = 1.5 },
			wantErr: "RISK_BLOCK_THRESHOLD",
		},
		{
			name:    "review at or above block",
			mutate:  func(c *Config) { c.ReviewThreshold = 0.9 },
			wantErr: "RISK_REVIEW_THRESHOLD",
		},
		{
			name:    "sub-second rate limit window",
			mutate:  func(c *Config) { c.RateLimitWindow = 100 * time.Millisecond },
			wantErr: "RATE_LIMIT_WINDOW",
		},
		{
			name:    "zero training rows",
			mutate:  func(c *Config) { c.TrainingMinRows = 0 },
			wantErr: "TRAINING_MIN_SAMPLES",
		},
		{
			name:    "negative learning rate",
			mutate:  func(c *Config) { c.LearningRate = -0.1 },
			wantErr: "TRAINING_LEARNING_RATE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvDuration(t *testing.T) {
	setEnv(t, "TEST_DUR", "30s")
	setEnv(t, "TEST_INVALID", "not_a_duration")

	assert.Equal(t, 30*time.Second, getEnvDuration("TEST_DUR", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("NONEXISTENT_VAR", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("TEST_INVALID", time.Minute)) // Falls back on parse error
}
