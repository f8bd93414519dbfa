package llm

import (
	"fmt"
	"strings"

	"adventure-bot/internal/config"
)

const (
	ProviderMistral = "mistral"
	ProviderOpenAI  = "openai"
	ProviderYandex  = "yandex"
)

// DefaultModel is the fine-tune the adventure guide was trained as.
const DefaultModel = "ft:open-mistral-7b:f00b4002:20241120:78b6c5a8"

var AllowedModels = map[string]bool{
	DefaultModel:              true,
	"open-mistral-7b":         true,
	"mistral-small-latest":    true,
	"mistral-large-latest":    true,
	"openai/gpt-5-nano":       true,
	"openai/gpt-oss-20b:free": true,
}

// Factory creates LLM clients with consistent logic
type Factory struct {
	MistralAPIKey      string
	OpenaiAPIKey       string
	OpenaiBaseURL      string
	OpenRouterReferrer string
	OpenRouterTitle    string
	YandexOAuthToken   string
	YandexFolderID     string
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		MistralAPIKey:      cfg.MistralAPIKey,
		OpenaiAPIKey:       cfg.OpenAIAPIKey,
		OpenaiBaseURL:      cfg.OpenAIBaseURL,
		OpenRouterReferrer: cfg.OpenRouterReferrer,
		OpenRouterTitle:    cfg.OpenRouterTitle,
		YandexOAuthToken:   cfg.YandexOAuthToken,
		YandexFolderID:     cfg.YandexFolderID,
	}
}

func (f *Factory) CreateClient(provider, model string) (Client, error) {
	switch strings.ToLower(provider) {
	case ProviderMistral:
		return NewMistral(f.MistralAPIKey, model), nil
	case ProviderOpenAI:
		return NewOpenAI(f.OpenaiAPIKey, f.OpenaiBaseURL, model, f.OpenRouterReferrer, f.OpenRouterTitle), nil
	case ProviderYandex:
		return NewYandex(f.YandexOAuthToken, f.YandexFolderID)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}

func IsModelAllowed(model string) bool {
	return AllowedModels[model]
}

func GetAllowedModels() []string {
	models := make([]string, 0, len(AllowedModels))
	for model := range AllowedModels {
		models = append(models, model)
	}
	return models
}
