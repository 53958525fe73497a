package metalrate

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ringforgeapp/ringforge/internal/logging"
	"github.com/ringforgeapp/ringforge/internal/numeric"
)

const fallbackReasonUnavailable = "live_rate_unavailable"

// LiveFetcher is the live-rate dependency of the resolver, satisfied by
// *Provider.
type LiveFetcher interface {
	FetchLiveRate(ctx context.Context, metal Metal) (*Rate, error)
	Config(metal Metal) Config
}

// ResolveOptions carries request-scoped manual rate overrides.
type ResolveOptions struct {
	ManualRates map[Metal]float64
}

// RateSet is the result of resolving every supported metal independently.
type RateSet struct {
	Rates     map[Metal]*Rate  `json:"rates"`
	Errors    map[Metal]string `json:"errors"`
	FetchedAt time.Time        `json:"fetchedAt"`
}

// RateFor returns the resolved rate for a metal, or nil when resolution
// failed for that metal.
func (s *RateSet) RateFor(metal Metal) *Rate {
	if s == nil {
		return nil
	}
	return s.Rates[Normalize(string(metal))]
}

// ErrorFor returns the recorded resolution failure for a metal, if any.
func (s *RateSet) ErrorFor(metal Metal) string {
	if s == nil {
		return ""
	}
	return s.Errors[Normalize(string(metal))]
}

// Resolver orchestrates live-fetch-with-fallback rate resolution.
type Resolver struct {
	fetcher LiveFetcher
	logger  *slog.Logger
	now     func() time.Time
}

func NewResolver(fetcher LiveFetcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

// Resolve returns a rate for one metal, preferring the live provider, then
// the request-supplied manual rate, then the environment manual rate. When
// every tier fails it returns an *UnresolvedError carrying the live failure.
func (r *Resolver) Resolve(ctx context.Context, metal Metal, opts ResolveOptions) (*Rate, error) {
	normalized := Normalize(string(metal))
	cfg := r.fetcher.Config(normalized)

	var liveErr error
	live, err := r.fetcher.FetchLiveRate(ctx, normalized)
	if err != nil {
		liveErr = err
		logging.FromContext(ctx, r.logger).Warn("live rate fetch failed, trying manual fallbacks",
			"metal", normalized,
			"error", err,
		)
	}
	if live != nil && live.RatePerGram > 0 {
		return live, nil
	}

	if manual := requestManualRate(opts, normalized); manual != nil {
		return r.manualRate(normalized, cfg, *manual, SourceManualRequest, liveErr), nil
	}

	if cfg.ManualRate != nil && *cfg.ManualRate > 0 {
		return r.manualRate(normalized, cfg, *cfg.ManualRate, SourceManualEnv, liveErr), nil
	}

	return nil, &UnresolvedError{Metal: normalized, LiveErr: liveErr}
}

// ResolveAll resolves every supported metal concurrently. A failure for one
// metal never blocks or cancels the others: its slot stays nil and the
// failure message is recorded per metal.
func (r *Resolver) ResolveAll(ctx context.Context, opts ResolveOptions) *RateSet {
	set := &RateSet{
		Rates:     make(map[Metal]*Rate, len(SupportedMetals)),
		Errors:    make(map[Metal]string),
		FetchedAt: r.now(),
	}

	results := make([]*Rate, len(SupportedMetals))
	failures := make([]error, len(SupportedMetals))

	g, gctx := errgroup.WithContext(ctx)
	for i, metal := range SupportedMetals {
		g.Go(func() error {
			// Capture the outcome instead of returning the error so a
			// failing metal cannot cancel its sibling via gctx.
			results[i], failures[i] = r.Resolve(gctx, metal, opts)
			return nil
		})
	}
	_ = g.Wait()

	for i, metal := range SupportedMetals {
		set.Rates[metal] = results[i]
		if failures[i] != nil {
			set.Errors[metal] = failures[i].Error()
		}
	}

	return set
}

func (r *Resolver) manualRate(metal Metal, cfg Config, value float64, source string, liveErr error) *Rate {
	reason := fallbackReasonUnavailable
	if liveErr != nil {
		reason = liveErr.Error()
	}
	return &Rate{
		MetalType:      metal,
		RatePerGram:    numeric.RoundRate(value),
		Source:         source,
		CurrencyCode:   cfg.CurrencyCode,
		FallbackUsed:   true,
		FetchedAt:      r.now(),
		FallbackReason: reason,
	}
}

func requestManualRate(opts ResolveOptions, metal Metal) *float64 {
	if opts.ManualRates == nil {
		return nil
	}
	value, exists := opts.ManualRates[metal]
	if !exists {
		return nil
	}
	return numeric.ToPositiveNumber(value)
}
