// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Username string  `yaml:"username"`
	Workers  int     `yaml:"workers"` // polling workers
	AdminIDs []int64 `yaml:"admin_ids"`
	Locale   string  `yaml:"locale"` // pt | en
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	PublicURL      string        `yaml:"public_url"` // externally reachable base, used for the notification URL
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type AdminConfig struct {
	JWTSecret string        `yaml:"jwt_secret"` // admin API disabled when empty
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL         string        `yaml:"url"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
	FloodLimit  int           `yaml:"flood_limit"` // messages per window per user
	FloodWindow time.Duration `yaml:"flood_window"`
}

type AIConfig struct {
	Provider        string        `yaml:"provider"` // gemini | openai | "" (disabled)
	OpenAIKey       string        `yaml:"openai_key"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	GeminiKey       string        `yaml:"gemini_key"`
	GeminiURL       string        `yaml:"gemini_url"`
	Model           string        `yaml:"model"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	MaxTopicTokens  int           `yaml:"max_topic_tokens"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent AI calls
	Timeout         time.Duration `yaml:"timeout"`
}

type MercadoPagoConfig struct {
	AccessToken   string        `yaml:"access_token"`
	BaseURL       string        `yaml:"base_url"`
	WebhookSecret string        `yaml:"webhook_secret"` // signature check disabled when empty
	Timeout       time.Duration `yaml:"timeout"`
	LogPII        bool          `yaml:"-"` // set from dev mode
}

type PaymentConfig struct {
	Amount      int64             `yaml:"amount"` // centavos
	Currency    string            `yaml:"currency"`
	Description string            `yaml:"description"`
	TTL         time.Duration     `yaml:"ttl"`
	CallbackURL string            `yaml:"callback_url"` // defaults to http.public_url + /webhooks/mercadopago
	MercadoPago MercadoPagoConfig `yaml:"mercadopago"`
}

type LimitsConfig struct {
	CreateCooldown time.Duration `yaml:"create_cooldown"`
	VerifyCooldown time.Duration `yaml:"verify_cooldown"`
}

type SweeperConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	BatchSize  int           `yaml:"batch_size"`
	Workers    int           `yaml:"workers"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Payment  PaymentConfig  `yaml:"payment"`
	Limits   LimitsConfig   `yaml:"limits"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the yaml file at path (optional), applies env overrides and
// defaults, and validates. Errors match domain.ErrConfiguration.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// env-only deployment
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, domain.ConfigError(path, err.Error())
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev
	cfg.Payment.MercadoPago.LogPII = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"TELEGRAM_TOKEN":    &cfg.Bot.Token,
		"MP_ACCESS_TOKEN":   &cfg.Payment.MercadoPago.AccessToken,
		"MP_WEBHOOK_SECRET": &cfg.Payment.MercadoPago.WebhookSecret,
		"DATABASE_URL":      &cfg.Database.URL,
		"REDIS_URL":         &cfg.Redis.URL,
		"PUBLIC_URL":        &cfg.HTTP.PublicURL,
		"ADMIN_JWT_SECRET":  &cfg.Admin.JWTSecret,
		"GEMINI_API_KEY":    &cfg.AI.GeminiKey,
		"OPENAI_API_KEY":    &cfg.AI.OpenAIKey,
	}
	for k, dst := range str {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("ADMIN_IDS"); v != "" {
		ids, err := parseIDs(v)
		if err != nil {
			return domain.ConfigError("ADMIN_IDS", err.Error())
		}
		cfg.Bot.AdminIDs = ids
	}
	return nil
}

func parseIDs(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.Locale == "" {
		cfg.Bot.Locale = "pt"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	cfg.HTTP.RequestTimeout = orDefault(cfg.HTTP.RequestTimeout, 15*time.Second)
	cfg.Admin.TokenTTL = orDefault(cfg.Admin.TokenTTL, time.Hour)
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.SessionTTL = orDefault(cfg.Redis.SessionTTL, 30*24*time.Hour)
	if cfg.Redis.FloodLimit <= 0 {
		cfg.Redis.FloodLimit = 20
	}
	cfg.Redis.FloodWindow = orDefault(cfg.Redis.FloodWindow, time.Minute)

	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 4
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 800
	}
	if cfg.AI.MaxTopicTokens <= 0 {
		cfg.AI.MaxTopicTokens = 120
	}
	cfg.AI.Timeout = orDefault(cfg.AI.Timeout, 60*time.Second)
	if cfg.AI.Provider == "" {
		switch {
		case cfg.AI.GeminiKey != "":
			cfg.AI.Provider = "gemini"
		case cfg.AI.OpenAIKey != "":
			cfg.AI.Provider = "openai"
		}
	}
	if cfg.AI.Model == "" {
		switch cfg.AI.Provider {
		case "gemini":
			cfg.AI.Model = "gemini-2.5-flash"
		case "openai":
			cfg.AI.Model = "gpt-4o-mini"
		}
	}

	if cfg.Payment.Amount <= 0 {
		cfg.Payment.Amount = 590
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "BRL"
	}
	if cfg.Payment.Description == "" {
		cfg.Payment.Description = "Acesso Prompts Premium"
	}
	cfg.Payment.TTL = orDefault(cfg.Payment.TTL, 900*time.Second)
	if cfg.Payment.CallbackURL == "" && cfg.HTTP.PublicURL != "" {
		cfg.Payment.CallbackURL = strings.TrimRight(cfg.HTTP.PublicURL, "/") + "/webhooks/mercadopago"
	}
	if cfg.Payment.MercadoPago.BaseURL == "" {
		cfg.Payment.MercadoPago.BaseURL = "https://api.mercadopago.com"
	}
	cfg.Payment.MercadoPago.Timeout = orDefault(cfg.Payment.MercadoPago.Timeout, 30*time.Second)

	cfg.Limits.CreateCooldown = orDefault(cfg.Limits.CreateCooldown, 60*time.Second)
	cfg.Limits.VerifyCooldown = orDefault(cfg.Limits.VerifyCooldown, 10*time.Second)

	cfg.Sweeper.Interval = orDefault(cfg.Sweeper.Interval, time.Minute)
	cfg.Sweeper.StaleAfter = orDefault(cfg.Sweeper.StaleAfter, 2*time.Minute)
	if cfg.Sweeper.BatchSize <= 0 {
		cfg.Sweeper.BatchSize = 100
	}
	if cfg.Sweeper.Workers <= 0 {
		cfg.Sweeper.Workers = 4
	}
}

// Validate reports the first missing or invalid setting. Dev mode runs without
// Postgres and without the payment provider.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return domain.ConfigError("bot.token", "TELEGRAM_TOKEN is required")
	}
	if !c.Runtime.Dev {
		if c.Payment.MercadoPago.AccessToken == "" {
			return domain.ConfigError("payment.mercadopago.access_token", "MP_ACCESS_TOKEN is required")
		}
		if c.Database.URL == "" {
			return domain.ConfigError("database.url", "DATABASE_URL is required")
		}
	}
	switch c.AI.Provider {
	case "":
	case "gemini":
		if c.AI.GeminiKey == "" {
			return domain.ConfigError("ai.gemini_key", "required for the gemini provider")
		}
	case "openai":
		if c.AI.OpenAIKey == "" {
			return domain.ConfigError("ai.openai_key", "required for the openai provider")
		}
	default:
		return domain.ConfigError("ai.provider", fmt.Sprintf("unknown provider %q", c.AI.Provider))
	}
	if c.Payment.TTL < time.Minute {
		return domain.ConfigError("payment.ttl", "must be at least 1m")
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
