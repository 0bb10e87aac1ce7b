package providers

import (
	"fmt"
	"strings"

	"github.com/paraflow/paraflow/pkg/config"
)

const (
	openRouterDefaultAPIBase = "https://openrouter.ai/api/v1"
	openRouterDefaultModel   = "openai/gpt-4o-mini"
)

func init() {
	RegisterFactory(ProviderOpenRouter, newOpenRouterProvider, validateOpenRouterConfig)
}

func validateOpenRouterConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.Providers.OpenRouter.APIKey) == "" {
		return fmt.Errorf("OpenRouter API key not configured")
	}
	return nil
}

func newOpenRouterProvider(cfg *config.Config) (LLMProvider, error) {
	if err := validateOpenRouterConfig(cfg); err != nil {
		return nil, err
	}

	apiBase := strings.TrimSpace(cfg.Providers.OpenRouter.APIBase)
	if apiBase == "" {
		apiBase = openRouterDefaultAPIBase
	}

	model := strings.TrimSpace(cfg.Assistant.Model)
	if model == "" {
		model = openRouterDefaultModel
	}

	auth := NewBearerTokenAuth(NewStaticTokenSource(cfg.Providers.OpenRouter.APIKey, "config.providers.openrouter.api_key"))
	return newChatCompletionsProvider(ProviderOpenRouter, apiBase, model, cfg.Providers.OpenRouter.Proxy, auth)
}
