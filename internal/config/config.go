package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/campaign.db"`
	RedisURL string     `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// WhatsApp Cloud API.
	WhatsAppToken      string `env:"WHATSAPP_TOKEN"`
	WhatsAppPhoneID    string `env:"WHATSAPP_NUMBER_ID"`
	WebhookVerifyToken string `env:"WEBHOOK_VERIFY_TOKEN"`
	BotPhone           string `env:"BOT_PHONE" envDefault:"5217206266927"`

	// Receipt extraction.
	OpenAIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIModel   string        `env:"OPENAI_VISION_MODEL" envDefault:"gpt-4o"`
	OpenAITimeout time.Duration `env:"OPENAI_TIMEOUT" envDefault:"45s"`
	OpenAIRetries int           `env:"OPENAI_RETRY" envDefault:"2"`

	// Conversation sessions expire after this long without activity.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// Inventory reconciliation.
	SyncMaxAge       time.Duration `env:"SYNC_MAX_AGE" envDefault:"1h"`
	AutoSyncOnReport bool          `env:"AUTO_SYNC_ON_REPORT" envDefault:"true"`

	// Optional JSON file mapping seller codes to display names.
	SellersFile string `env:"SELLERS_FILE"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
