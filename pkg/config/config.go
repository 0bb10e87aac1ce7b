package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Assistant  AssistantConfig  `json:"assistant"`
	Providers  ProvidersConfig  `json:"providers"`
	Notion     NotionConfig     `json:"notion"`
	Gateway    GatewayConfig    `json:"gateway"`
	Extraction ExtractionConfig `json:"extraction"`
	Storage    StorageConfig    `json:"storage"`
	mu         sync.RWMutex
}

type AssistantConfig struct {
	Provider    string  `json:"provider" env:"PARAFLOW_ASSISTANT_PROVIDER"`
	Model       string  `json:"model" env:"PARAFLOW_ASSISTANT_MODEL"`
	MaxTokens   int     `json:"max_tokens" env:"PARAFLOW_ASSISTANT_MAX_TOKENS"`
	Temperature float64 `json:"temperature" env:"PARAFLOW_ASSISTANT_TEMPERATURE"`
}

type ProvidersConfig struct {
	OpenRouter ProviderConfig `json:"openrouter"`
	OpenAI     OpenAIConfig   `json:"openai"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" env:"PARAFLOW_PROVIDERS_OPENROUTER_API_KEY"`
	APIBase string `json:"api_base" env:"PARAFLOW_PROVIDERS_OPENROUTER_API_BASE"`
	Proxy   string `json:"proxy,omitempty" env:"PARAFLOW_PROVIDERS_OPENROUTER_PROXY"`
}

type OpenAIConfig struct {
	APIKey     string `json:"api_key" env:"PARAFLOW_PROVIDERS_OPENAI_API_KEY"`
	APIKeyFile string `json:"api_key_file" env:"PARAFLOW_PROVIDERS_OPENAI_API_KEY_FILE"`
	APIBase    string `json:"api_base" env:"PARAFLOW_PROVIDERS_OPENAI_API_BASE"`
	Proxy      string `json:"proxy,omitempty" env:"PARAFLOW_PROVIDERS_OPENAI_PROXY"`
}

// NotionConfig covers the remote structured store endpoint. Per-user tokens
// live in the settings store, not here; this is only the shared API surface.
type NotionConfig struct {
	APIBase string `json:"api_base" env:"PARAFLOW_NOTION_API_BASE"`
	Version string `json:"version" env:"PARAFLOW_NOTION_VERSION"`
}

type GatewayConfig struct {
	Host string `json:"host" env:"PARAFLOW_GATEWAY_HOST"`
	Port int    `json:"port" env:"PARAFLOW_GATEWAY_PORT"`
}

type ExtractionConfig struct {
	// Temperature for classification calls. Deliberately above zero: recall
	// over determinism for suggestion extraction.
	Temperature float64 `json:"temperature" env:"PARAFLOW_EXTRACTION_TEMPERATURE"`
	MaxTokens   int     `json:"max_tokens" env:"PARAFLOW_EXTRACTION_MAX_TOKENS"`
	TimeoutSecs int     `json:"timeout_seconds" env:"PARAFLOW_EXTRACTION_TIMEOUT_SECONDS"`
}

type StorageConfig struct {
	Path string `json:"path" env:"PARAFLOW_STORAGE_PATH"`
}

func DefaultConfig() *Config {
	return &Config{
		Assistant: AssistantConfig{
			Provider:    "openrouter",
			Model:       "openai/gpt-4o-mini",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Providers: ProvidersConfig{
			OpenRouter: ProviderConfig{},
			OpenAI:     OpenAIConfig{},
		},
		Notion: NotionConfig{
			APIBase: "https://api.notion.com/v1",
			Version: "2022-06-28",
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 8990,
		},
		Extraction: ExtractionConfig{
			Temperature: 0.3,
			MaxTokens:   2048,
			TimeoutSecs: 30,
		},
		Storage: StorageConfig{
			Path: "~/.paraflow/state/paraflow.db",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Timeout returns the extraction deadline as a duration.
func (e ExtractionConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSecs) * time.Second
}

// StoragePath returns the sqlite path with ~ expanded.
func (c *Config) StoragePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Storage.Path)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
