package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the full server configuration.
// Values come from defaults, then an optional config.yaml, then environment
// variables (highest precedence).
type Config struct {
	// Server settings
	Port       int    `yaml:"port"`
	SQLitePath string `yaml:"sqlite_path"`

	// Upstream OpenAI-compatible API (OpenRouter by default)
	Upstream UpstreamConfig `yaml:"upstream"`

	// Model catalog: model id -> display name
	AvailableModels map[string]string `yaml:"available_models"`
	DefaultModel    string            `yaml:"default_model"`

	// Models that support image output; requests to them ask for
	// both image and text modalities.
	ImageGenerationModels []string `yaml:"image_generation_models"`

	// Reasoning models get a max_tokens cap on upstream calls.
	ReasoningMaxTokens map[string]int `yaml:"reasoning_max_tokens"`

	// Long-term memory settings
	Memory MemoryConfig `yaml:"memory"`

	// History cache window: messages before the largest multiple of this
	// size are flattened into one cached system message per turn.
	CacheWindow int `yaml:"cache_window"`
}

// UpstreamConfig holds credentials and endpoint for the model provider.
type UpstreamConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // e.g. https://openrouter.ai/api/v1
}

// MemoryConfig controls the background profile summarizer.
type MemoryConfig struct {
	CharacterLimit         int    `yaml:"character_limit"`
	SummarizerModel        string `yaml:"summarizer_model"`
	InactivityDelaySeconds int    `yaml:"inactivity_delay_seconds"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Port:       8000,
		SQLitePath: "./data/opal.db",
		Upstream: UpstreamConfig{
			BaseURL: "https://openrouter.ai/api/v1",
		},
		AvailableModels: map[string]string{
			"google/gemini-2.0-flash-001":            "Google Gemini 2.0 Flash",
			"openai/gpt-5":                           "OpenAI GPT-5",
			"openai/gpt-4.1-mini":                    "GPT-4.1 Mini",
			"google/gemini-2.5-flash-image-preview":  "Google Gemini 2.5 Flash Image",
			"qwen/qwen3-coder":                       "Qwen3 Coder",
			"openai/gpt-4-turbo":                     "OpenAI GPT-4 Turbo",
		},
		DefaultModel: "google/gemini-2.0-flash-001",
		ImageGenerationModels: []string{
			"google/gemini-2.5-flash-image-preview",
		},
		ReasoningMaxTokens: map[string]int{
			"openai/gpt-5": 32000,
		},
		Memory: MemoryConfig{
			CharacterLimit:         2000,
			SummarizerModel:        "google/gemini-2.5-flash",
			InactivityDelaySeconds: 15,
		},
		CacheWindow: 10,
	}
}

// Load reads configuration: defaults, then an optional YAML file at path
// (skipped when path is empty or missing), then environment overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.Upstream.APIKey == "" {
		return cfg, fmt.Errorf("upstream API key not configured (set OPENROUTER_API_KEY)")
	}
	if _, ok := cfg.AvailableModels[cfg.DefaultModel]; !ok {
		return cfg, fmt.Errorf("default model %q is not in the available model catalog", cfg.DefaultModel)
	}
	return cfg, nil
}

// applyEnv overrides config fields from environment variables.
// Env names match the original deployment's .env conventions.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.Upstream.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_API_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := os.Getenv("MODEL_NAME"); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv("SUMMARIZER_MODEL"); v != "" {
		c.Memory.SummarizerModel = v
	}
	if v := os.Getenv("MEMORY_CHARACTER_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Memory.CharacterLimit = n
		}
	}
	if v := os.Getenv("OPAL_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := os.Getenv("OPAL_SQLITE_PATH"); v != "" {
		c.SQLitePath = v
	}
}

// IsImageGenerationModel reports whether the model supports image output.
func (c Config) IsImageGenerationModel(model string) bool {
	for _, m := range c.ImageGenerationModels {
		if m == model {
			return true
		}
	}
	return false
}
