// Package config loads the service configuration from .env files and
// CASEVALUE_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings
const envPrefix = "CASEVALUE"

// Config is the full service configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
	Mode string `mapstructure:"mode" validate:"oneof=debug release test"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider" validate:"oneof=gemini openai"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions" validate:"eq=768"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RateLimit  float64       `mapstructure:"rate_limit" validate:"gte=0"`
	Burst      int           `mapstructure:"burst" validate:"gte=0"`
}

// RedisConfig enables the embedding cache when URL is set
type RedisConfig struct {
	URL      string        `mapstructure:"url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
}

type EngineConfig struct {
	WeightsTTL             time.Duration `mapstructure:"weights_ttl" validate:"gt=0"`
	IgnoreWeights          bool          `mapstructure:"ignore_weights"`
	IncludeEarlyResolution bool          `mapstructure:"include_early_resolution"`
	NeighborLimit          int           `mapstructure:"neighbor_limit" validate:"min=1,max=200"`
	PrimaryAlpha           float64       `mapstructure:"primary_alpha" validate:"gt=0"`
	FallbackAlpha          float64       `mapstructure:"fallback_alpha" validate:"gt=0"`
	NovelMinNeighbors      int           `mapstructure:"novel_min_neighbors" validate:"gte=0"`
	NovelMinConfidence     float64       `mapstructure:"novel_min_confidence" validate:"gte=0,lte=100"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type" validate:"oneof=local s3"`
	LocalPath string `mapstructure:"local_path"`
	S3Bucket  string `mapstructure:"s3_bucket" validate:"required_if=Type s3"`
	S3Region  string `mapstructure:"s3_region"`
	S3Prefix  string `mapstructure:"s3_prefix"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// defaults is every known key with its default. Viper only binds environment
// variables for keys it knows, so each setting must appear here.
var defaults = map[string]interface{}{
	"server.port": 8080,
	"server.mode": "release",

	"database.url": "",

	"embedding.provider":   "gemini",
	"embedding.api_key":    "",
	"embedding.model":      "",
	"embedding.dimensions": 768,
	"embedding.timeout":    8 * time.Second,
	"embedding.rate_limit": 5.0,
	"embedding.burst":      5,

	"redis.url":       "",
	"redis.cache_ttl": 7 * 24 * time.Hour,

	"engine.weights_ttl":              24 * time.Hour,
	"engine.ignore_weights":           false,
	"engine.include_early_resolution": true,
	"engine.neighbor_limit":           25,
	"engine.primary_alpha":            0.3,
	"engine.fallback_alpha":           0.8,
	"engine.novel_min_neighbors":      10,
	"engine.novel_min_confidence":     70.0,

	"storage.type":       "local",
	"storage.local_path": "./storage/reports",
	"storage.s3_bucket":  "",
	"storage.s3_region":  "us-east-1",
	"storage.s3_prefix":  "",

	"log.level": "info",
}

// newViper builds a viper instance with the CASEVALUE_ prefix, automatic env
// binding and a "." to "_" key replacer, so "database.url" resolves to
// CASEVALUE_DATABASE_URL.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// Load reads .env (current directory, then ../../.env for cmd/* binaries run
// from their own directory), then builds and validates the configuration.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		_ = godotenv.Load("../../.env")
	}
	return LoadFromEnv()
}

// LoadFromEnv builds the configuration from the process environment only
func LoadFromEnv() (*Config, error) {
	v := newViper()
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks struct constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required for the openai provider")
	}
	return nil
}
