package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

type Config struct {
	Addr        string
	DatabaseURL string
	Environment string

	UploadDir string
	ExportDir string

	MaxUploadBytes       int64
	ImportWorkers        int
	ImportErrorThreshold float64
	ThresholdMinRows     int
	DocumentPattern      string

	JobWorkers   int
	JobQueueSize int

	RunMigrations bool
	MigrationsDir string
}

func Load() Config {
	return Config{
		Addr:                 getEnv("APP_ADDR", ":8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		Environment:          getEnv("APP_ENV", "development"),
		UploadDir:            getEnv("UPLOAD_DIR", "storage/uploads"),
		ExportDir:            getEnv("EXPORT_DIR", "storage/exports"),
		MaxUploadBytes:       int64(getEnvInt("MAX_UPLOAD_BYTES", 64<<20)),
		ImportWorkers:        getEnvInt("IMPORT_WORKERS", 4),
		ImportErrorThreshold: getEnvFloat("IMPORT_ERROR_THRESHOLD", 0.5),
		ThresholdMinRows:     getEnvInt("IMPORT_THRESHOLD_MIN_ROWS", 100),
		DocumentPattern:      getEnv("DOCUMENT_PATTERN", ""),
		JobWorkers:           getEnvInt("JOB_WORKERS", 2),
		JobQueueSize:         getEnvInt("JOB_QUEUE_SIZE", 64),
		RunMigrations:        getEnvBool("RUN_MIGRATIONS", true),
		MigrationsDir:        getEnv("MIGRATIONS_DIR", "migrations"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" && c.Environment == "production" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	if c.MaxUploadBytes < 1024 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be at least 1024")
	}
	if c.ImportWorkers <= 0 {
		return fmt.Errorf("IMPORT_WORKERS must be positive")
	}
	if c.ImportErrorThreshold < 0 || c.ImportErrorThreshold > 1 {
		return fmt.Errorf("IMPORT_ERROR_THRESHOLD must be between 0 and 1")
	}
	if c.JobWorkers <= 0 {
		return fmt.Errorf("JOB_WORKERS must be positive")
	}
	if c.DocumentPattern != "" {
		if _, err := regexp.Compile(c.DocumentPattern); err != nil {
			return fmt.Errorf("DOCUMENT_PATTERN is not a valid regular expression: %w", err)
		}
	}
	return nil
}
