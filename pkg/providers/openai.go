package providers

import (
	"fmt"
	"strings"

	"github.com/paraflow/paraflow/pkg/config"
)

const (
	openAIDefaultAPIBase = "https://api.openai.com/v1"
	openAIDefaultModel   = "gpt-4o-mini"
)

func init() {
	RegisterFactory(ProviderOpenAI, newOpenAIProvider, validateOpenAIConfig)
}

func validateOpenAIConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.Providers.OpenAI.APIKey) == "" && strings.TrimSpace(cfg.Providers.OpenAI.APIKeyFile) == "" {
		return fmt.Errorf("OpenAI API key not configured: set api_key or api_key_file")
	}
	return nil
}

func openAITokenSource(cfg *config.Config) TokenSource {
	if strings.TrimSpace(cfg.Providers.OpenAI.APIKey) != "" {
		return NewStaticTokenSource(cfg.Providers.OpenAI.APIKey, "config.providers.openai.api_key")
	}
	return NewFileTokenSource(cfg.Providers.OpenAI.APIKeyFile)
}

func newOpenAIProvider(cfg *config.Config) (LLMProvider, error) {
	if err := validateOpenAIConfig(cfg); err != nil {
		return nil, err
	}

	apiBase := strings.TrimSpace(cfg.Providers.OpenAI.APIBase)
	if apiBase == "" {
		apiBase = openAIDefaultAPIBase
	}

	model := strings.TrimSpace(cfg.Assistant.Model)
	if model == "" {
		model = openAIDefaultModel
	}

	auth := NewBearerTokenAuth(openAITokenSource(cfg))
	return newChatCompletionsProvider(ProviderOpenAI, apiBase, model, cfg.Providers.OpenAI.Proxy, auth)
}
