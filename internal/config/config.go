package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port string `env:"PORT" envDefault:"8080"`
	Mode string `env:"GIN_MODE" envDefault:"debug"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Database configuration
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"content-market.db"`

	// Redis configuration, empty keeps the replay cache in memory
	RedisURL string `env:"REDIS_URL"`

	// RabbitMQ, empty falls back to a logging publisher
	AMQPURL string `env:"AMQP_URL"`

	OperatorAPIKey        string `env:"OPERATOR_API_KEY"`
	PaymentCallbackSecret string `env:"PAYMENT_CALLBACK_SECRET"`
	SettlementCurrency    string `env:"SETTLEMENT_CURRENCY" envDefault:"XTR"`

	Telegram     Telegram     `envPrefix:"TELEGRAM_"`
	Delivery     Delivery     `envPrefix:"DELIVERY_"`
	Notification Notification `envPrefix:"NOTIFY_"`
	Schedule     Schedule
	Brevo        Brevo `envPrefix:"BREVO_"`

	AdminAlertEmail  string `env:"ADMIN_ALERT_EMAIL"`
	LocalesDir       string `env:"LOCALES_DIR"`
	DefaultLanguage  string `env:"DEFAULT_LANGUAGE" envDefault:"en"`
	MaxActiveCoupons int    `env:"MAX_ACTIVE_COUPONS" envDefault:"5"`
}

type Telegram struct {
	BotToken string `env:"BOT_TOKEN"`
}

// Delivery configures the user-session delivery sidecar.
type Delivery struct {
	BaseURL                    string        `env:"BASE_URL"`
	Secret                     string        `env:"SECRET"`
	Timeout                    time.Duration `env:"TIMEOUT" envDefault:"30s"`
	DefaultSelfDestructSeconds int           `env:"DEFAULT_SELF_DESTRUCT_SECONDS" envDefault:"30"`
}

type Notification struct {
	BatchSize  int           `env:"BATCH_SIZE" envDefault:"50"`
	SendDelay  time.Duration `env:"SEND_DELAY" envDefault:"50ms"`
	MaxRetries int           `env:"MAX_RETRIES" envDefault:"3"`
}

// Schedule holds cron specs for the background jobs.
type Schedule struct {
	Drain  string `env:"DRAIN_SCHEDULE" envDefault:"@every 30s"`
	Retry  string `env:"RETRY_SCHEDULE" envDefault:"@every 10m"`
	Expiry string `env:"EXPIRY_SCHEDULE" envDefault:"@every 1h"`
}

type Brevo struct {
	APIKey    string `env:"API_KEY"`
	FromEmail string `env:"FROM_EMAIL"`
	FromName  string `env:"FROM_NAME" envDefault:"Content Market"`
}

var AppConfig *Config

// InitConfig loads .env (when present) and parses the environment into AppConfig.
func InitConfig() error {
	// Ignore error if .env file doesn't exist
	_ = godotenv.Load()

	cfg, err := Load()
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// Load parses the current environment without touching AppConfig.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.MaxActiveCoupons <= 0 {
		return nil, fmt.Errorf("MAX_ACTIVE_COUPONS must be positive, got %d", cfg.MaxActiveCoupons)
	}
	if cfg.Notification.BatchSize <= 0 {
		return nil, fmt.Errorf("NOTIFY_BATCH_SIZE must be positive, got %d", cfg.Notification.BatchSize)
	}
	return cfg, nil
}
