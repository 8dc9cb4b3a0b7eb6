// Copyright (C) 2025 Innkeeper AI (oss@innkeeper.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads concierge configuration with priority
// env > file > defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level concierge configuration.
//
// Thread Safety: safe to read concurrently, not safe to modify after
// Load.
type Config struct {
	// Server contains HTTP transport settings.
	Server ServerConfig `json:"server" yaml:"server"`

	// Logging contains log output settings.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Resilience contains circuit breaker settings.
	Resilience ResilienceConfig `json:"resilience" yaml:"resilience"`

	// Cache contains two-tier response cache settings.
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Semantic contains knowledge-base search settings.
	Semantic SemanticConfig `json:"semantic" yaml:"semantic"`

	// Providers contains generative backend settings.
	Providers ProvidersConfig `json:"providers" yaml:"providers"`

	// Escalation contains rule thresholds.
	Escalation EscalationConfig `json:"escalation" yaml:"escalation"`
}

// ServerConfig contains HTTP transport settings.
type ServerConfig struct {
	Addr            string        `json:"addr" yaml:"addr" validate:"required"`
	RequestTimeout  time.Duration `json:"request_timeout" yaml:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `json:"dir" yaml:"dir"`
	JSON  bool   `json:"json" yaml:"json"`
	Quiet bool   `json:"quiet" yaml:"quiet"`
}

// ResilienceConfig contains circuit breaker settings shared by every
// dependency breaker.
type ResilienceConfig struct {
	FailureThreshold int           `json:"failure_threshold" yaml:"failure_threshold" validate:"gt=0"`
	SuccessThreshold int           `json:"success_threshold" yaml:"success_threshold" validate:"gt=0"`
	ResetTimeout     time.Duration `json:"reset_timeout" yaml:"reset_timeout" validate:"gt=0"`
}

// CacheConfig contains two-tier response cache settings.
type CacheConfig struct {
	// Capacity bounds the in-memory tier.
	Capacity int `json:"capacity" yaml:"capacity" validate:"gt=0"`

	// TTL is the in-memory entry lifetime.
	TTL time.Duration `json:"ttl" yaml:"ttl" validate:"gt=0"`

	// SweepInterval schedules the background expiry sweep.
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval" validate:"gt=0"`

	// Backend selects the durable tier: "badger", "redis", or "none".
	Backend string `json:"backend" yaml:"backend" validate:"oneof=badger redis none"`

	// BadgerPath is the on-disk location for the badger backend.
	BadgerPath string `json:"badger_path" yaml:"badger_path"`

	// RedisURL configures the redis backend ("redis://host:6379/0").
	RedisURL string `json:"redis_url" yaml:"redis_url"`
}

// SemanticConfig contains knowledge-base search settings.
type SemanticConfig struct {
	// Enabled toggles the semantic-search stage.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// WeaviateHost locates the vector index ("localhost:8080").
	WeaviateHost string `json:"weaviate_host" yaml:"weaviate_host"`

	// WeaviateScheme is "http" or "https".
	WeaviateScheme string `json:"weaviate_scheme" yaml:"weaviate_scheme" validate:"oneof=http https"`

	// CertaintyFloor drops matches below this similarity.
	CertaintyFloor float64 `json:"certainty_floor" yaml:"certainty_floor" validate:"gt=0,lte=1"`
}

// ProvidersConfig contains generative backend settings.
type ProvidersConfig struct {
	// Preferred routes generative calls to this backend first.
	Preferred string `json:"preferred" yaml:"preferred"`

	// Embedder names the single backend used for embeddings.
	Embedder string `json:"embedder" yaml:"embedder"`

	// SystemPrompt sets the concierge persona for generative answers.
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`

	// OpenAI settings. The API key comes from OPENAI_API_KEY or a
	// container secret, never from a config file.
	OpenAIEnabled    bool   `json:"openai_enabled" yaml:"openai_enabled"`
	OpenAIChatModel  string `json:"openai_chat_model" yaml:"openai_chat_model"`
	OpenAIEmbedModel string `json:"openai_embed_model" yaml:"openai_embed_model"`

	// Ollama settings.
	OllamaEnabled    bool   `json:"ollama_enabled" yaml:"ollama_enabled"`
	OllamaBaseURL    string `json:"ollama_base_url" yaml:"ollama_base_url"`
	OllamaChatModel  string `json:"ollama_chat_model" yaml:"ollama_chat_model"`
	OllamaEmbedModel string `json:"ollama_embed_model" yaml:"ollama_embed_model"`
}

// EscalationConfig contains rule thresholds.
type EscalationConfig struct {
	ConsecutiveFailureThreshold int     `json:"consecutive_failure_threshold" yaml:"consecutive_failure_threshold" validate:"gt=0"`
	ComplexityThreshold         float64 `json:"complexity_threshold" yaml:"complexity_threshold" validate:"gt=0,lte=1"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8085",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Resilience: ResilienceConfig{
			FailureThreshold: 5,
			SuccessThreshold: 1,
			ResetTimeout:     60 * time.Second,
		},
		Cache: CacheConfig{
			Capacity:      200,
			TTL:           3 * time.Minute,
			SweepInterval: time.Minute,
			Backend:       "badger",
			BadgerPath:    "~/.innkeeper/respcache",
		},
		Semantic: SemanticConfig{
			Enabled:        true,
			WeaviateHost:   "localhost:8080",
			WeaviateScheme: "http",
			CertaintyFloor: 0.75,
		},
		Providers: ProvidersConfig{
			Embedder:      "ollama",
			OllamaEnabled: true,
			OllamaBaseURL: "http://localhost:11434",
		},
		Escalation: EscalationConfig{
			ConsecutiveFailureThreshold: 3,
			ComplexityThreshold:         0.8,
		},
	}
}

// Load builds the configuration: defaults, then the optional config
// file (YAML or JSON), then environment overrides, then validation.
// A .env file in the working directory is loaded first when present.
func Load(configPath string) (Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	config := Default()

	if configPath != "" {
		if err := loadFile(configPath, &config); err != nil {
			return config, fmt.Errorf("load config file: %w", err)
		}
	}

	loadEnv(&config)

	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// Validate checks field constraints and cross-field requirements.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Cache.Backend == "badger" && c.Cache.BadgerPath == "" {
		return fmt.Errorf("cache.badger_path required for the badger backend")
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisURL == "" {
		return fmt.Errorf("cache.redis_url required for the redis backend")
	}
	if c.Semantic.Enabled && c.Semantic.WeaviateHost == "" {
		return fmt.Errorf("semantic.weaviate_host required when semantic search is enabled")
	}
	if !c.Providers.OpenAIEnabled && !c.Providers.OllamaEnabled {
		return fmt.Errorf("at least one provider backend must be enabled")
	}
	return nil
}

func loadFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	// Try YAML first, then JSON.
	if err := yaml.Unmarshal(data, config); err != nil {
		if jsonErr := json.Unmarshal(data, config); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func loadEnv(config *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				*dst = i
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString("CONCIERGE_ADDR", &config.Server.Addr)
	setDuration("CONCIERGE_REQUEST_TIMEOUT", &config.Server.RequestTimeout)

	setString("CONCIERGE_LOG_LEVEL", &config.Logging.Level)
	setString("CONCIERGE_LOG_DIR", &config.Logging.Dir)
	setBool("CONCIERGE_LOG_JSON", &config.Logging.JSON)

	setInt("CONCIERGE_BREAKER_FAILURE_THRESHOLD", &config.Resilience.FailureThreshold)
	setDuration("CONCIERGE_BREAKER_RESET_TIMEOUT", &config.Resilience.ResetTimeout)

	setInt("CONCIERGE_CACHE_CAPACITY", &config.Cache.Capacity)
	setDuration("CONCIERGE_CACHE_TTL", &config.Cache.TTL)
	setString("CONCIERGE_CACHE_BACKEND", &config.Cache.Backend)
	setString("CONCIERGE_CACHE_BADGER_PATH", &config.Cache.BadgerPath)
	setString("CONCIERGE_CACHE_REDIS_URL", &config.Cache.RedisURL)

	setBool("CONCIERGE_SEMANTIC_ENABLED", &config.Semantic.Enabled)
	setString("WEAVIATE_HOST", &config.Semantic.WeaviateHost)
	setString("WEAVIATE_SCHEME", &config.Semantic.WeaviateScheme)
	setFloat("CONCIERGE_SEMANTIC_CERTAINTY", &config.Semantic.CertaintyFloor)

	setString("CONCIERGE_PREFERRED_PROVIDER", &config.Providers.Preferred)
	setString("CONCIERGE_EMBEDDER", &config.Providers.Embedder)
	setBool("CONCIERGE_OPENAI_ENABLED", &config.Providers.OpenAIEnabled)
	setString("OPENAI_MODEL", &config.Providers.OpenAIChatModel)
	setBool("CONCIERGE_OLLAMA_ENABLED", &config.Providers.OllamaEnabled)
	setString("OLLAMA_BASE_URL", &config.Providers.OllamaBaseURL)
	setString("OLLAMA_MODEL", &config.Providers.OllamaChatModel)

	setInt("CONCIERGE_ESCALATION_FAILURES", &config.Escalation.ConsecutiveFailureThreshold)
	setFloat("CONCIERGE_ESCALATION_COMPLEXITY", &config.Escalation.ComplexityThreshold)
}
