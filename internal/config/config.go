package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// MetalRateConfig holds the provider settings for one metal type. Immutable
// after load.
type MetalRateConfig struct {
	APIURL       string  `env:"RATE_API_URL"`
	APIKey       string  `env:"RATE_API_KEY"`
	APIKeyHeader string  `env:"RATE_API_KEY_HEADER" envDefault:"x-api-key"`
	APIKeyPrefix string  `env:"RATE_API_KEY_PREFIX"`
	ResponsePath string  `env:"RATE_RESPONSE_PATH" envDefault:"ratePerGram"`
	Multiplier   float64 `env:"RATE_MULTIPLIER" envDefault:"1" validate:"gte=0"`
	ManualRate   string  `env:"MANUAL_RATE"`
	CurrencyCode string  `env:"RATE_CURRENCY" envDefault:"USD"`
}

type Config struct {
	Gold     MetalRateConfig `envPrefix:"GOLD_"`
	Platinum MetalRateConfig `envPrefix:"PLATINUM_"`

	NivodaAPIURL   string `env:"NIVODA_API_URL" envDefault:"https://integrations.nivoda.net/api/diamonds" validate:"required,url"`
	NivodaAPIKey   string `env:"NIVODA_API_KEY"`
	NivodaUsername string `env:"NIVODA_USERNAME"`
	NivodaPassword string `env:"NIVODA_PASSWORD"`

	ShopifyStoreDomain     string `env:"SHOPIFY_STORE_DOMAIN"`
	ShopifyStorefrontToken string `env:"SHOPIFY_STOREFRONT_TOKEN"`
	ShopifyAdminToken      string `env:"SHOPIFY_ADMIN_TOKEN"`
	ShopifyAPIVersion      string `env:"SHOPIFY_API_VERSION" envDefault:"2025-01"`

	PricingAliasesFile string `env:"PRICING_ALIASES_FILE"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`

	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173" validate:"omitempty,url"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ShopifyStoreDomain = normalizeStoreDomain(cfg.ShopifyStoreDomain)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// HasNivodaCredentials reports whether diamond search can authenticate, via
// either a static API key or username/password.
func (c *Config) HasNivodaCredentials() bool {
	if strings.TrimSpace(c.NivodaAPIKey) != "" {
		return true
	}
	return strings.TrimSpace(c.NivodaUsername) != "" && strings.TrimSpace(c.NivodaPassword) != ""
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	hasUsername := strings.TrimSpace(c.NivodaUsername) != ""
	hasPassword := strings.TrimSpace(c.NivodaPassword) != ""
	if hasUsername != hasPassword {
		return fmt.Errorf("NIVODA_USERNAME and NIVODA_PASSWORD must be set together")
	}

	return nil
}

// normalizeStoreDomain strips the scheme and any trailing path so the value
// can be embedded into storefront URLs directly.
func normalizeStoreDomain(value string) string {
	cleaned := strings.Join(strings.Fields(strings.TrimSpace(value)), "")
	cleaned = strings.TrimPrefix(cleaned, "https://")
	cleaned = strings.TrimPrefix(cleaned, "http://")
	if idx := strings.Index(cleaned, "/"); idx >= 0 {
		cleaned = cleaned[:idx]
	}
	return cleaned
}
