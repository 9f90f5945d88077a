package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string // LANDSCAPE_DATABASE_URL (required)
	HTTPAddr    string // LANDSCAPE_HTTP_ADDR (default ":8080")
	NATSURL     string // LANDSCAPE_NATS_URL (optional, empty = no event mirroring)
	AuthToken   string // LANDSCAPE_AUTH_TOKEN (optional, empty = auth disabled)

	// Event bus settings
	MaxSubscribers int // LANDSCAPE_MAX_SUBSCRIBERS (default 1024)

	// Scoring settings
	RulesPath string // LANDSCAPE_RULES_PATH (optional, empty = built-in rules)

	// Export settings
	ExportInterval   time.Duration // LANDSCAPE_EXPORT_INTERVAL (default 3m; 0 = disabled)
	ExportS3Bucket   string        // LANDSCAPE_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string        // LANDSCAPE_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // LANDSCAPE_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string        // LANDSCAPE_EXPORT_S3_KEY (default "landscape/snapshot.jsonl")
	ExportDir        string        // LANDSCAPE_EXPORT_DIR (enables local file export when set)
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:      os.Getenv("LANDSCAPE_DATABASE_URL"),
		HTTPAddr:         envOrDefault("LANDSCAPE_HTTP_ADDR", ":8080"),
		NATSURL:          os.Getenv("LANDSCAPE_NATS_URL"),
		AuthToken:        os.Getenv("LANDSCAPE_AUTH_TOKEN"),
		RulesPath:        os.Getenv("LANDSCAPE_RULES_PATH"),
		ExportS3Bucket:   os.Getenv("LANDSCAPE_EXPORT_S3_BUCKET"),
		ExportS3Endpoint: os.Getenv("LANDSCAPE_EXPORT_S3_ENDPOINT"),
		ExportS3Region:   envOrDefault("LANDSCAPE_EXPORT_S3_REGION", "us-east-1"),
		ExportS3Key:      envOrDefault("LANDSCAPE_EXPORT_S3_KEY", "landscape/snapshot.jsonl"),
		ExportDir:        os.Getenv("LANDSCAPE_EXPORT_DIR"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("LANDSCAPE_DATABASE_URL is required")
	}

	maxSubsStr := envOrDefault("LANDSCAPE_MAX_SUBSCRIBERS", "1024")
	maxSubs, err := strconv.Atoi(maxSubsStr)
	if err != nil || maxSubs < 1 {
		return nil, fmt.Errorf("LANDSCAPE_MAX_SUBSCRIBERS: invalid value %q", maxSubsStr)
	}
	c.MaxSubscribers = maxSubs

	intervalStr := envOrDefault("LANDSCAPE_EXPORT_INTERVAL", "3m")
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("LANDSCAPE_EXPORT_INTERVAL: %w", err)
		}
		c.ExportInterval = d
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
