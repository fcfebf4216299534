package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// EnvLLMBaseURL overrides the LLM provider base URL.
	EnvLLMBaseURL = "LLM_BASE_URL"

	// EnvLLMAPIKey overrides the LLM provider API key.
	EnvLLMAPIKey = "LLM_API_KEY"

	// EnvLLMModel overrides the LLM model identifier.
	EnvLLMModel = "LLM_MODEL"

	// EnvLLMTemperature overrides the generation temperature.
	EnvLLMTemperature = "LLM_TEMPERATURE"

	// EnvLLMMaxTokens overrides the generation token budget.
	EnvLLMMaxTokens = "LLM_MAX_TOKENS"

	// EnvLLMTimeout overrides the request timeout.
	EnvLLMTimeout = "LLM_TIMEOUT"
)

// LLMConfig contains LLM provider configuration. The provider is any
// OpenAI-compatible chat completion endpoint.
type LLMConfig struct {
	BaseURL     string  `toml:"base_url"`
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
}

// TimeoutDuration parses and returns the request timeout as a time.Duration.
func (c *LLMConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, loads environment overrides, and validates the LLM configuration.
func (c *LLMConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *LLMConfig) Merge(overlay *LLMConfig) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.Temperature != 0 {
		c.Temperature = overlay.Temperature
	}
	if overlay.MaxTokens != 0 {
		c.MaxTokens = overlay.MaxTokens
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *LLMConfig) loadDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4-turbo-preview"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
}

func (c *LLMConfig) loadEnv() {
	if v := os.Getenv(EnvLLMBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvLLMAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvLLMModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvLLMTemperature); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			c.Temperature = t
		}
	}
	if v := os.Getenv(EnvLLMMaxTokens); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxTokens = n
		}
	}
	if v := os.Getenv(EnvLLMTimeout); v != "" {
		c.Timeout = v
	}
}

func (c *LLMConfig) validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2]: %f", c.Temperature)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive: %d", c.MaxTokens)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
