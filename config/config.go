// Package config provides engine configuration loaded from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all engine configuration.
type Config struct {
	// Addr is the listen address of the transport surface.
	Addr string
	// DBPath is the sqlite database file.
	DBPath string
	// PrimaryProvider / FallbackProvider name the backend order: "openai",
	// "anthropic" or "mock". FallbackProvider may be empty.
	PrimaryProvider  string
	FallbackProvider string
	OpenAIModel      string
	AnthropicModel   string
	// ClassifierWindow is how many recent messages the risk classifier reads.
	ClassifierWindow int
	// MaxHistory bounds how many messages the responder replays per call.
	MaxHistory int
	// ProtocolDir overrides the embedded assessment protocols when set.
	ProtocolDir string
	// StreamBufferSize sets chunk channel buffering per turn.
	StreamBufferSize int
	// ProviderTimeout bounds each individual provider call.
	ProviderTimeout time.Duration
	// LogLevel is debug, info, warn or error. LogFormat is json or text.
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:             getEnv("ADDR", ":8080"),
		DBPath:           getEnv("DB_PATH", "./data/converse.db"),
		PrimaryProvider:  getEnv("PRIMARY_PROVIDER", "openai"),
		FallbackProvider: getEnv("FALLBACK_PROVIDER", "anthropic"),
		OpenAIModel:      getEnv("OPENAI_MODEL", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", ""),
		ClassifierWindow: getEnvInt("CLASSIFIER_WINDOW", 5),
		MaxHistory:       getEnvInt("MAX_HISTORY", 100),
		ProtocolDir:      getEnv("PROTOCOL_DIR", ""),
		StreamBufferSize: getEnvInt("STREAM_BUFFER_SIZE", 64),
		ProviderTimeout:  getEnvDuration("PROVIDER_TIMEOUT", 60*time.Second),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are usable.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("ADDR cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if !validProvider(c.PrimaryProvider) {
		return fmt.Errorf("PRIMARY_PROVIDER must be openai, anthropic or mock, got %q", c.PrimaryProvider)
	}
	if c.FallbackProvider != "" && !validProvider(c.FallbackProvider) {
		return fmt.Errorf("FALLBACK_PROVIDER must be openai, anthropic or mock, got %q", c.FallbackProvider)
	}
	if c.FallbackProvider == c.PrimaryProvider {
		return fmt.Errorf("FALLBACK_PROVIDER must differ from PRIMARY_PROVIDER")
	}
	if c.ClassifierWindow <= 0 {
		return fmt.Errorf("CLASSIFIER_WINDOW must be > 0")
	}
	if c.MaxHistory <= 0 {
		return fmt.Errorf("MAX_HISTORY must be > 0")
	}
	if c.StreamBufferSize <= 0 {
		return fmt.Errorf("STREAM_BUFFER_SIZE must be > 0")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be > 0")
	}
	return nil
}

func validProvider(name string) bool {
	switch name {
	case "openai", "anthropic", "mock":
		return true
	}
	return false
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
