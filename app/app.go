package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"

	"github.com/ringforgeapp/ringforge/internal/cache"
	"github.com/ringforgeapp/ringforge/internal/config"
	"github.com/ringforgeapp/ringforge/internal/handlers"
	"github.com/ringforgeapp/ringforge/internal/metalrate"
	"github.com/ringforgeapp/ringforge/internal/nivoda"
	"github.com/ringforgeapp/ringforge/internal/numeric"
	"github.com/ringforgeapp/ringforge/internal/pricing"
	"github.com/ringforgeapp/ringforge/internal/shopify"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	CacheProvider cache.Provider
	Handlers      *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	rateProvider := metalrate.NewProvider(map[metalrate.Metal]metalrate.Config{
		metalrate.Gold:     metalRateConfig(cfg.Gold),
		metalrate.Platinum: metalRateConfig(cfg.Platinum),
	}, logger.With("component", "metal_rates"))
	rateResolver := metalrate.NewResolver(rateProvider, logger.With("component", "metal_rates"))

	fieldTable, err := pricing.LoadFieldTable(cfg.PricingAliasesFile)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		return nil, fmt.Errorf("failed to load pricing aliases: %w", err)
	}
	mapper := shopify.NewProductMapper(fieldTable)

	diamonds := nivoda.NewClient(nivoda.Config{
		APIURL:   cfg.NivodaAPIURL,
		APIKey:   cfg.NivodaAPIKey,
		Username: cfg.NivodaUsername,
		Password: cfg.NivodaPassword,
	}, cacheProvider, logger.With("component", "nivoda"))

	shop := shopify.NewClient(shopify.Config{
		StoreDomain:     cfg.ShopifyStoreDomain,
		StorefrontToken: cfg.ShopifyStorefrontToken,
		AdminToken:      cfg.ShopifyAdminToken,
		APIVersion:      cfg.ShopifyAPIVersion,
	}, mapper, rateResolver, logger.With("component", "shopify"))

	h, err := handlers.New(handlers.Dependencies{
		Config:        cfg,
		CacheProvider: cacheProvider,
		Rates:         rateResolver,
		Diamonds:      diamonds,
		Shop:          shop,
		Logger:        logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		CacheProvider: cacheProvider,
		Handlers:      h,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
}

func metalRateConfig(src config.MetalRateConfig) metalrate.Config {
	return metalrate.Config{
		APIURL:       src.APIURL,
		APIKey:       src.APIKey,
		APIKeyHeader: src.APIKeyHeader,
		APIKeyPrefix: src.APIKeyPrefix,
		ResponsePath: src.ResponsePath,
		Multiplier:   src.Multiplier,
		ManualRate:   numeric.ToPositiveNumber(src.ManualRate),
		CurrencyCode: src.CurrencyCode,
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: cfg.LogLevel,
	}))
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
