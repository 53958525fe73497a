package metalrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ringforgeapp/ringforge/internal/logging"
	"github.com/ringforgeapp/ringforge/internal/numeric"
	"github.com/ringforgeapp/ringforge/internal/observability"
)

// rateFieldCandidates are the payload paths tried after the configured
// response path, covering the field names seen across rate provider APIs.
var rateFieldCandidates = []string{
	"ratePerGram",
	"pricePerGram",
	"price_per_gram",
	"goldRatePerGram",
	"data.ratePerGram",
	"data.pricePerGram",
	"data.price_per_gram",
	"result.ratePerGram",
	"result.pricePerGram",
}

// Provider fetches live spot rates from the per-metal configured APIs.
type Provider struct {
	configs    map[Metal]Config
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

func NewProvider(configs map[Metal]Config, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Provider{
		configs:    configs,
		httpClient: observability.NewHTTPClient(observability.DefaultUpstreamTimeout),
		logger:     logger,
		now:        time.Now,
	}
}

// Config returns the settings for a metal type, normalizing unknown names to
// gold.
func (p *Provider) Config(metal Metal) Config {
	return p.configs[Normalize(string(metal))]
}

// FetchLiveRate queries the configured provider for one metal. A missing API
// URL means the feature is disabled for that metal and returns (nil, nil); a
// payload with no parseable positive rate also returns (nil, nil). Transport
// and HTTP failures return a *FetchError.
func (p *Provider) FetchLiveRate(ctx context.Context, metal Metal) (*Rate, error) {
	normalized := Normalize(string(metal))
	cfg := p.configs[normalized]

	if cfg.APIURL == "" {
		return nil, nil
	}

	payload, err := p.get(ctx, normalized, cfg)
	if err != nil {
		return nil, &FetchError{Metal: normalized, Err: err}
	}

	raw := pickRate(payload, cfg)
	if raw == nil {
		logging.FromContext(ctx, p.logger).Warn("no parseable rate in provider payload",
			"metal", normalized,
			"provider_url", cfg.APIURL,
		)
		return nil, nil
	}

	multiplier := 1.0
	if m := numeric.ToPositiveNumber(cfg.Multiplier); m != nil {
		multiplier = *m
	}

	adjusted := numeric.RoundRate(*raw * multiplier)
	if adjusted <= 0 {
		return nil, nil
	}

	return &Rate{
		MetalType:    normalized,
		RatePerGram:  adjusted,
		Source:       SourceLive,
		CurrencyCode: cfg.CurrencyCode,
		FallbackUsed: false,
		FetchedAt:    p.now(),
		ProviderURL:  cfg.APIURL,
	}, nil
}

func (p *Provider) get(ctx context.Context, metal Metal, cfg Config) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.APIURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s rate request: %w", metal, err)
	}
	req.Header.Set("Accept", "application/json")
	if cfg.APIKey != "" {
		header := cfg.APIKeyHeader
		if header == "" {
			header = "x-api-key"
		}
		req.Header.Set(header, cfg.APIKeyPrefix+cfg.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}
	return payload, nil
}

// pickRate tries the configured response path first, then the common field
// candidates; the first value parsing to a positive number wins.
func pickRate(payload map[string]any, cfg Config) *float64 {
	if cfg.ResponsePath != "" {
		if value, ok := numeric.ReadPath(payload, cfg.ResponsePath); ok {
			if parsed := numeric.ToPositiveNumber(value); parsed != nil {
				return parsed
			}
		}
	}

	for _, path := range rateFieldCandidates {
		value, ok := numeric.ReadPath(payload, path)
		if !ok {
			continue
		}
		if parsed := numeric.ToPositiveNumber(value); parsed != nil {
			return parsed
		}
	}

	return nil
}
