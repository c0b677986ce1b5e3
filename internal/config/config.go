package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends understood by STORAGE_BACKEND
const (
	StorageLocal = "local"
	StorageHTTP  = "http"
	StorageAzure = "azure"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	MaxImageSize       int64
	LogLevel           string

	// Where measurement images are read from and CSV results written to
	StorageBackend   string
	ImageDir         string
	ResultsDir       string
	AzureAccountName string
	AzureAccountKey  string

	// AllowAbsolutePaths lets local measurements name files outside
	// ImageDir. It is never read from the environment, the CLI sets it.
	AllowAbsolutePaths bool

	// Measurement defaults
	DefaultThreshold int
	ErosionSize      int
	CropMinSize      int
	CropDivisor      int
	LowPassSigma     float64
	MaxWorkers       int
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

func LoadFromEnv() (*Config, error) {
	// Set defaults
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 10*time.Minute),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 1024*1024), // 1MB of descriptors
		MaxImageSize:       parseIntOrDefault("MAX_IMAGE_SIZE", 256*1024*1024),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		StorageBackend:     strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", StorageLocal)),
		ImageDir:           getEnvOrDefault("IMAGE_DIR", "."),
		ResultsDir:         getEnvOrDefault("RESULTS_DIR", "csvFiles"),
		AzureAccountName:   os.Getenv("AZURE_ACCOUNT_NAME"),
		AzureAccountKey:    os.Getenv("AZURE_ACCOUNT_KEY"),
		DefaultThreshold:   int(parseIntOrDefault("DEFAULT_THRESHOLD", 30)),
		ErosionSize:        int(parseIntOrDefault("EROSION_SIZE", 2)),
		CropMinSize:        int(parseIntOrDefault("CROP_MIN_SIZE", 400)),
		CropDivisor:        int(parseIntOrDefault("CROP_DIVISOR", 9)),
		LowPassSigma:       parseFloatOrDefault("LOWPASS_SIGMA", 9),
		MaxWorkers:         int(parseIntOrDefault("MAX_WORKERS", 1)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges, LoadFromEnv calls it for you
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.MaxImageSize <= 0 {
		return fmt.Errorf("MAX_IMAGE_SIZE must be > 0 (got %d)", c.MaxImageSize)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be > 0 (got %s)", c.RequestTimeout)
	}
	switch c.StorageBackend {
	case StorageLocal, StorageHTTP:
	case StorageAzure:
		if c.AzureAccountName == "" || c.AzureAccountKey == "" {
			return fmt.Errorf("STORAGE_BACKEND=azure requires AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY")
		}
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND: %q", c.StorageBackend)
	}
	if c.DefaultThreshold < 1 || c.DefaultThreshold > 255 {
		return fmt.Errorf("DEFAULT_THRESHOLD must be within 1..255 (got %d)", c.DefaultThreshold)
	}
	if c.ErosionSize < 0 {
		return fmt.Errorf("EROSION_SIZE must be >= 0 (got %d)", c.ErosionSize)
	}
	if c.CropMinSize <= 0 || c.CropDivisor <= 0 {
		return fmt.Errorf("CROP_MIN_SIZE and CROP_DIVISOR must be > 0 (got %d, %d)", c.CropMinSize, c.CropDivisor)
	}
	if c.LowPassSigma <= 0 {
		return fmt.Errorf("LOWPASS_SIGMA must be > 0 (got %g)", c.LowPassSigma)
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("MAX_WORKERS must be >= 1 (got %d)", c.MaxWorkers)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
