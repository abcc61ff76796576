// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned by Load when no credential for the generation
// service is configured. The server refuses to start without it.
var ErrMissingAPIKey = errors.New("API_KEY environment variable is not set.")

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendFile   = "file"
)

// Config holds everything the service reads from the environment
type Config struct {
	Port      string
	APIKey    string
	LogDir    string
	LogLevel  string
	DebugMode bool

	// Generation
	LLMProvider       string
	TextModel         string
	ImageModel        string
	VideoModel        string
	VideoPollInterval time.Duration

	// Session cache
	CacheBackend  string
	RedisURL      string
	CacheDir      string
	SessionTTL    time.Duration
	CacheMaxBytes int64
	CacheSweep    string

	AllowedOrigins []string
}

// Load reads the optional .env file and then the process environment
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		APIKey:    getEnv("API_KEY", os.Getenv("GEMINI_API_KEY")),
		LogDir:    getEnv("LOG_DIR", "logs"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		DebugMode: getEnvBool("DEBUG_MODE", false),

		LLMProvider:       getEnv("LLM_PROVIDER", "google"),
		TextModel:         getEnv("TEXT_MODEL", "gemini-2.5-flash"),
		ImageModel:        getEnv("IMAGE_MODEL", "imagen-3.0-generate-002"),
		VideoModel:        getEnv("VIDEO_MODEL", "veo-2.0-generate-001"),
		VideoPollInterval: getEnvDuration("VIDEO_POLL_INTERVAL", 10*time.Second),

		CacheBackend:  strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendMemory)),
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		CacheDir:      getEnv("CACHE_DIR", "data/cache"),
		SessionTTL:    getEnvDuration("SESSION_TTL", 12*time.Hour),
		CacheMaxBytes: getEnvInt64("CACHE_MAX_BYTES", 256<<20),
		CacheSweep:    getEnv("CACHE_SWEEP_SCHEDULE", "@every 10m"),

		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants Load cannot express through defaults
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.VideoPollInterval <= 0 {
		return fmt.Errorf("VIDEO_POLL_INTERVAL must be positive, got %s", c.VideoPollInterval)
	}
	switch c.CacheBackend {
	case CacheBackendMemory, CacheBackendRedis, CacheBackendFile:
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q (expected %q, %q or %q)", c.CacheBackend, CacheBackendMemory, CacheBackendRedis, CacheBackendFile)
	}
	return nil
}

// LLMConfig is the provider configuration map handed to llm.GetProvider
func (c *Config) LLMConfig() map[string]string {
	return map[string]string{
		"api_key":     c.APIKey,
		"text_model":  c.TextModel,
		"image_model": c.ImageModel,
		"video_model": c.VideoModel,
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		fmt.Printf("warning: invalid duration %s=%q, using %s\n", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		fmt.Printf("warning: invalid integer %s=%q, using %d\n", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
