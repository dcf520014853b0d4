// Package config loads server configuration from environment variables,
// with optional .env support for local development.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// WorkerMode selects how the automation worker runs.
const (
	WorkerModeSimulated = "simulated"
	WorkerModeProcess   = "process"
)

type Config struct {
	AppEnv        string
	Port          string
	LogLevel      string
	LogFormat     string
	DatabasePath  string
	UploadDir     string
	ScreenshotDir string
	WorkerMode    string
	WorkerCommand string
	CatalogPath   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		DatabasePath:  getEnv("DATABASE_PATH", ""),
		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
		ScreenshotDir: getEnv("SCREENSHOT_DIR", "debug_screenshots"),
		WorkerMode:    getEnv("WORKER_MODE", WorkerModeSimulated),
		WorkerCommand: getEnv("WORKER_COMMAND", ""),
		CatalogPath:   getEnv("CATALOG_PATH", ""),
	}

	if cfg.WorkerMode != WorkerModeSimulated && cfg.WorkerMode != WorkerModeProcess {
		return nil, fmt.Errorf("WORKER_MODE must be %q or %q, got %q", WorkerModeSimulated, WorkerModeProcess, cfg.WorkerMode)
	}
	if cfg.WorkerMode == WorkerModeProcess && cfg.WorkerCommand == "" {
		return nil, fmt.Errorf("WORKER_COMMAND is required when WORKER_MODE is %q", WorkerModeProcess)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
