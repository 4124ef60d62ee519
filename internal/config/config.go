package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings. Values come from the environment
// (optionally seeded from a .env file by main). The deprecated retry/backoff
// knobs of earlier versions are gone: a rate limit skips the account instead
// of retrying.
type Config struct {
	XBearerToken string `env:"X_BEARER_TOKEN"`
	XAPIBaseURL  string `env:"X_API_BASE_URL" envDefault:"https://api.twitter.com"`

	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	OpenAIModel  string `env:"OPENAI_MODEL"   envDefault:"gpt-4-turbo-preview"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"TELEGRAM_CHAT_ID"`

	SMTPHost     string `env:"SMTP_HOST"     envDefault:"smtp.gmail.com"`
	SMTPPort     int    `env:"SMTP_PORT"     envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	EmailTo      string `env:"EMAIL_TO"`

	SummaryCronHour   int `env:"SUMMARY_CRON_HOUR"   envDefault:"8"`
	SummaryCronMinute int `env:"SUMMARY_CRON_MINUTE" envDefault:"0"`

	DatabasePath string `env:"DATABASE_PATH" envDefault:"data/x_monitor.db"`
	AccountsPath string `env:"ACCOUNTS_PATH" envDefault:"data/accounts.json"`
	OutputDir    string `env:"OUTPUT_DIR"    envDefault:"output"`

	FetchBatchSize    int           `env:"FETCH_BATCH_SIZE"    envDefault:"5"`
	FetchAccountDelay time.Duration `env:"FETCH_ACCOUNT_DELAY" envDefault:"2s"`
	FetchBatchDelay   time.Duration `env:"FETCH_BATCH_DELAY"   envDefault:"30s"`
	FetchMaxResults   int           `env:"FETCH_MAX_RESULTS"   envDefault:"100"`
	LookbackHours     int           `env:"LOOKBACK_HOURS"      envDefault:"24"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

// Lookback is the default per-account fetch window and the reporting window.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackHours) * time.Hour
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

func (c *Config) EmailEnabled() bool {
	return c.SMTPUser != "" && c.SMTPPassword != "" && c.EmailTo != ""
}
