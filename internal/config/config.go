package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabasePath  string
	HistoryDir    string
	CheckpointDir string
	Checkpoint    bool
	Restart       bool
	LogLevel      string
	Port          int
	DtAU          float64
	Steps         int64
	RecordEvery   int64
	Substeps      int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnvAsInt("PORT", 8001),
		DatabasePath:  getEnv("DATABASE_PATH", "./data/maxlink.db"),
		HistoryDir:    getEnv("HISTORY_DIR", "./data/history"),
		CheckpointDir: getEnv("CHECKPOINT_DIR", "./data/checkpoints"),
		Checkpoint:    getEnvAsBool("CHECKPOINT", true),
		Restart:       getEnvAsBool("RESTART", false),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DtAU:          getEnvAsFloat("DT_AU", 0.1),
		Steps:         int64(getEnvAsInt("STEPS", 20000)),
		RecordEvery:   int64(getEnvAsInt("RECORD_EVERY", 10)),
		Substeps:      getEnvAsInt("SUBSTEPS", 1),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.DtAU <= 0 {
		return fmt.Errorf("DT_AU must be positive")
	}
	if c.Steps <= 0 {
		return fmt.Errorf("STEPS must be positive")
	}
	if c.RecordEvery <= 0 {
		return fmt.Errorf("RECORD_EVERY must be positive")
	}
	if c.Restart && !c.Checkpoint {
		return fmt.Errorf("RESTART requires CHECKPOINT to be enabled")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
