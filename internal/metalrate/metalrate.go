package metalrate

// Package metalrate resolves per-gram precious metal rates from configured
// provider APIs with manual-override fallbacks.

import (
	"fmt"
	"strings"
	"time"
)

type Metal string

const (
	Gold     Metal = "gold"
	Platinum Metal = "platinum"
)

// SupportedMetals lists every metal type a storefront product can price
// against, in resolution order.
var SupportedMetals = []Metal{Gold, Platinum}

// Normalize maps free-text metal names onto a supported metal type. Unknown
// values fall back to gold, matching how untagged catalog variants price.
func Normalize(value string) Metal {
	switch Metal(strings.ToLower(strings.TrimSpace(value))) {
	case Platinum:
		return Platinum
	default:
		return Gold
	}
}

// Rate sources.
const (
	SourceLive          = "live"
	SourceManualRequest = "manual-request"
	SourceManualEnv     = "manual-env"
)

// Config holds the provider settings for one metal type.
type Config struct {
	APIURL       string
	APIKey       string
	APIKeyHeader string
	APIKeyPrefix string
	ResponsePath string
	Multiplier   float64
	ManualRate   *float64
	CurrencyCode string
}

// Rate is a resolved per-gram rate. Produced fresh on every resolution call;
// never cached or persisted.
type Rate struct {
	MetalType      Metal     `json:"metalType"`
	RatePerGram    float64   `json:"ratePerGram"`
	Source         string    `json:"source"`
	CurrencyCode   string    `json:"currencyCode"`
	FallbackUsed   bool      `json:"fallbackUsed"`
	FetchedAt      time.Time `json:"fetchedAt"`
	ProviderURL    string    `json:"providerUrl,omitempty"`
	FallbackReason string    `json:"fallbackReason,omitempty"`
}

// FetchError reports a transport or HTTP failure talking to a rate provider.
// It is recoverable: the resolver falls back to manual rates.
type FetchError struct {
	Metal Metal
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch live %s rate: %v", e.Metal, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// UnresolvedError means the live fetch and every manual fallback tier failed
// for one metal type.
type UnresolvedError struct {
	Metal   Metal
	LiveErr error
}

func (e *UnresolvedError) Error() string {
	if e.LiveErr != nil {
		return fmt.Sprintf("unable to resolve %s rate: live fetch failed (%v) and no manual fallback is configured", e.Metal, e.LiveErr)
	}
	return fmt.Sprintf("unable to resolve %s rate: no live rate available and no manual fallback is configured", e.Metal)
}

func (e *UnresolvedError) Unwrap() error {
	return e.LiveErr
}
