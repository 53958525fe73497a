package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ringforgeapp/ringforge/internal/cache"
	"github.com/ringforgeapp/ringforge/internal/config"
	"github.com/ringforgeapp/ringforge/internal/logging"
	"github.com/ringforgeapp/ringforge/internal/metalrate"
	"github.com/ringforgeapp/ringforge/internal/nivoda"
	"github.com/ringforgeapp/ringforge/internal/shopify"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

// Handlers provides the HTTP request handlers for the ring builder API.
type Handlers struct {
	config        *config.Config
	cacheProvider cache.Provider
	rates         *metalrate.Resolver
	diamonds      *nivoda.Client
	shop          *shopify.Client
	logger        *slog.Logger
}

type Dependencies struct {
	Config        *config.Config
	CacheProvider cache.Provider
	Rates         *metalrate.Resolver
	Diamonds      *nivoda.Client
	Shop          *shopify.Client
	Logger        *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.CacheProvider == nil {
		return nil, fmt.Errorf("handlers dependencies: cacheProvider is required")
	}
	if deps.Rates == nil {
		return nil, fmt.Errorf("handlers dependencies: rates is required")
	}
	if deps.Diamonds == nil {
		return nil, fmt.Errorf("handlers dependencies: diamonds is required")
	}
	if deps.Shop == nil {
		return nil, fmt.Errorf("handlers dependencies: shop is required")
	}

	return &Handlers{
		config:        deps.Config,
		cacheProvider: deps.CacheProvider,
		rates:         deps.Rates,
		diamonds:      deps.Diamonds,
		shop:          deps.Shop,
		logger:        logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, r, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

// decodeBody reads a JSON request body with a size cap.
func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
