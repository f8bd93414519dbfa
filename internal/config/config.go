package config

import (
	"log"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderMistral LLMProvider = "mistral"
	ProviderOpenAI  LLMProvider = "openai"
	ProviderYandex  LLMProvider = "yandex"
)

type Config struct {
	// Web front-end
	WebPort int `env:"WEB_PORT" envDefault:"8080"`

	// Telegram front-end, disabled when the token is empty
	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN"`
	AllowedUsers     []int64 `env:"ALLOWED_USERS" envSeparator:":"`
	AdminUserID      int64   `env:"ADMIN_USER"`

	// LLM settings
	LLMProvider      LLMProvider `env:"LLM_PROVIDER" envDefault:"mistral"`
	Model            string      `env:"LLM_MODEL" envDefault:"ft:open-mistral-7b:f00b4002:20241120:78b6c5a8"`
	MistralAPIKey    string      `env:"MISTRAL_API_KEY"`
	OpenAIAPIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string      `env:"OPENAI_BASE_URL"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Prompts
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH" envDefault:"prompts/system_prompt.txt"`

	// Transcripts: JSONL file by default, SQLite when a DB path is set
	LogFilePath      string `env:"LOG_FILE_PATH" envDefault:"logs/log.jsonl"`
	TranscriptDBPath string `env:"TRANSCRIPT_DB_PATH"`

	// Access control (telegram only; empty allowlist file means open access)
	AllowlistFilePath string `env:"ALLOWLIST_FILE_PATH" envDefault:"data/allowlist.json"`

	// Overrides persistence
	ModelFilePath string `env:"MODEL_FILE_PATH" envDefault:"data/model.txt"`

	// Daily report
	ReportCronSpec string `env:"REPORT_CRON_SPEC" envDefault:"0 21 * * *"`

	// Formatting
	MessageParseMode string `env:"MESSAGE_PARSE_MODE" envDefault:"HTML"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
