package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/anime-shed/plant-classifier-go/pkg/validation"
)

const (
	PreviewBackendMemory = "memory"
	PreviewBackendAzure  = "azure"
)

// DefaultKnownLabels are the PlantVillage classes offered as corrected-label suggestions.
var DefaultKnownLabels = []string{
	"Pepper_bell_Bacterial_spot",
	"Pepper_bell_healthy",
	"Potato_Early_blight",
	"Potato_Late_blight",
	"Potato_healthy",
	"Tomato_Bacterial_spot",
	"Tomato_Early_blight",
	"Tomato_Late_blight",
	"Tomato_Leaf_Mold",
	"Tomato_Septoria_leaf_spot",
	"Tomato_Spider_mites_Two_spotted_spider_mite",
	"Tomato_Target_Spot",
	"Tomato_Tomato_YellowLeaf_Curl_Virus",
	"Tomato_Tomato_mosaic_virus",
	"Tomato_healthy",
}

type Config struct {
	Host                 string
	Port                 string
	ClassifierURL        string
	FeedbackURL          string
	RequestTimeout       time.Duration
	UpstreamTimeout      time.Duration
	UpstreamInsecureTLS  bool
	MaxUploadSize        int64
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	PreviewBackend       string
	AzureAccountName     string
	AzureAccountKey      string
	AzureContainer       string
	KnownLabels          []string
	LogLevel             string
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
		Host:                 getEnvOrDefault("HOST", "0.0.0.0"),
		Port:                 getEnvOrDefault("PORT", "3000"),
		ClassifierURL:        getEnvOrDefault("CLASSIFIER_URL", "http://0.0.0.0:8080/predict"),
		FeedbackURL:          getEnvOrDefault("FEEDBACK_URL", "http://127.0.0.1:4000/feedback"),
		RequestTimeout:       parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		UpstreamTimeout:      parseDurationOrDefault("UPSTREAM_TIMEOUT", 20*time.Second),
		UpstreamInsecureTLS:  parseBoolOrDefault("UPSTREAM_INSECURE_TLS", false),
		MaxUploadSize:        parseIntOrDefault("MAX_UPLOAD_SIZE", 10*1024*1024), // 10MB
		SessionTTL:           parseDurationOrDefault("SESSION_TTL", 30*time.Minute),
		SessionSweepInterval: parseDurationOrDefault("SESSION_SWEEP_INTERVAL", time.Minute),
		PreviewBackend:       strings.ToLower(getEnvOrDefault("PREVIEW_BACKEND", PreviewBackendMemory)),
		AzureAccountName:     os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureAccountKey:      os.Getenv("AZURE_STORAGE_KEY"),
		AzureContainer:       getEnvOrDefault("AZURE_PREVIEW_CONTAINER", "previews"),
		KnownLabels:          parseListOrDefault("KNOWN_LABELS", DefaultKnownLabels),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}

	v := validation.NewURLValidator()
	if err := v.ValidateEndpointURL(c.ClassifierURL); err != nil {
		return fmt.Errorf("invalid CLASSIFIER_URL %q: %w", c.ClassifierURL, err)
	}
	if err := v.ValidateEndpointURL(c.FeedbackURL); err != nil {
		return fmt.Errorf("invalid FEEDBACK_URL %q: %w", c.FeedbackURL, err)
	}

	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be > 0 (got %d)", c.MaxUploadSize)
	}
	if c.RequestTimeout <= 0 || c.UpstreamTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, upstream=%s)",
			c.RequestTimeout, c.UpstreamTimeout)
	}
	if c.SessionTTL <= 0 || c.SessionSweepInterval <= 0 {
		return fmt.Errorf("session durations must be > 0 (got ttl=%s, sweep=%s)",
			c.SessionTTL, c.SessionSweepInterval)
	}

	switch c.PreviewBackend {
	case PreviewBackendMemory:
	case PreviewBackendAzure:
		if c.AzureAccountName == "" || c.AzureAccountKey == "" || c.AzureContainer == "" {
			return fmt.Errorf("PREVIEW_BACKEND=azure requires AZURE_STORAGE_ACCOUNT, AZURE_STORAGE_KEY and AZURE_PREVIEW_CONTAINER")
		}
	default:
		return fmt.Errorf("unsupported PREVIEW_BACKEND: %q", c.PreviewBackend)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return strings.TrimSpace(value)
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

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
