package pricing

import (
	"regexp"
	"strings"
	"time"

	"github.com/ringforgeapp/ringforge/internal/metalrate"
	"github.com/ringforgeapp/ringforge/internal/numeric"
)

// PricingModel tags computed pricing payloads so clients can tell dynamic
// prices from static catalog prices.
const PricingModel = "metal-rate-v2"

// Option name/value heuristics for detecting which metal a variant is made
// of. Name matching includes common merchant misspellings; colour-style
// option names only count when the value also names a metal.
var (
	metalOptionNameRe  = regexp.MustCompile(`(?i)(metal|matel|metel|matal|material|alloy|finish)`)
	metalOptionBroadRe = regexp.MustCompile(`(?i)(metal|matel|metel|matal|color|colour|material|alloy|finish)`)
	metalValueRe       = regexp.MustCompile(`(?i)(gold|platinum|\bwg\b|\byg\b|\brg\b|\bpt\b)`)
)

// SelectedOption is one name/value pair of a variant's selected options.
type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MetalLabel returns the raw option value naming the variant's metal, or ""
// when no option matches.
func MetalLabel(options []SelectedOption) string {
	for _, option := range options {
		if metalOptionNameRe.MatchString(option.Name) && metalValueRe.MatchString(option.Value) {
			return strings.TrimSpace(option.Value)
		}
	}
	for _, option := range options {
		if metalOptionBroadRe.MatchString(option.Name) && metalValueRe.MatchString(option.Value) {
			return strings.TrimSpace(option.Value)
		}
	}
	for _, option := range options {
		if metalValueRe.MatchString(option.Value) {
			return strings.TrimSpace(option.Value)
		}
	}
	return ""
}

// DetectMetal maps a variant's selected options to a metal type, defaulting
// to gold when nothing matches.
func DetectMetal(options []SelectedOption) (metalrate.Metal, string) {
	label := MetalLabel(options)
	if strings.Contains(strings.ToLower(label), "platinum") {
		return metalrate.Platinum, label
	}
	return metalrate.Gold, label
}

// ManualRateFor picks the manual rate override for a metal: the typed rate
// (manual_gold_rate / manual_platinum_rate) wins over the generic
// manual_metal_rate.
func ManualRateFor(cfg Config, metal metalrate.Metal) (*float64, string) {
	var typed *float64
	var typedKey string
	switch metalrate.Normalize(string(metal)) {
	case metalrate.Platinum:
		typed = cfg.ManualPlatinumRate
		typedKey = cfg.SourceKeys["manualPlatinumRate"]
	default:
		typed = cfg.ManualGoldRate
		typedKey = cfg.SourceKeys["manualGoldRate"]
	}
	if typed != nil {
		return typed, typedKey
	}
	if cfg.ManualMetalRate != nil {
		return cfg.ManualMetalRate, cfg.SourceKeys["manualMetalRate"]
	}
	return nil, ""
}

// Computation is the output of Compute. When Configured is false the caller
// must fall back to the catalog base price.
type Computation struct {
	Configured           bool
	MetalWeightGrams     *float64
	MakingCharge         float64
	StylePriceAdjustment float64
	RatePerGram          *float64
	MetalValue           *float64
	FinalPrice           *float64
}

// Compute combines a metal rate with the extracted configuration. Pricing is
// only "configured" when both a positive weight and a positive rate exist;
// otherwise MetalValue and FinalPrice stay nil.
func Compute(weight, ratePerGram *float64, makingCharge, styleAdjustment float64) Computation {
	normalizedWeight := positiveOrNil(weight)
	normalizedRate := positiveOrNil(ratePerGram)
	if makingCharge < 0 {
		makingCharge = 0
	}

	result := Computation{
		MetalWeightGrams:     normalizedWeight,
		MakingCharge:         makingCharge,
		StylePriceAdjustment: styleAdjustment,
		RatePerGram:          normalizedRate,
	}

	if normalizedWeight == nil || normalizedRate == nil {
		return result
	}

	metalValue := numeric.RoundMoney(*normalizedWeight * *normalizedRate)
	finalPrice := numeric.RoundMoney(metalValue + makingCharge + styleAdjustment)
	roundedRate := numeric.RoundRate(*normalizedRate)

	result.Configured = true
	result.RatePerGram = &roundedRate
	result.MetalValue = &metalValue
	result.FinalPrice = &finalPrice
	return result
}

// VariantPricing is the full pricing payload attached to each variant in API
// responses. Computed fresh per request, never persisted.
type VariantPricing struct {
	Configured           bool              `json:"configured"`
	Model                string            `json:"model"`
	BasePriceAmount      float64           `json:"basePriceAmount"`
	MetalType            metalrate.Metal   `json:"metalType"`
	MetalLabel           string            `json:"metalLabel"`
	MetalWeightGrams     *float64          `json:"metalWeightGrams"`
	MakingCharge         float64           `json:"makingCharge"`
	StylePriceAdjustment float64           `json:"stylePriceAdjustment"`
	ManualMetalRate      *float64          `json:"manualMetalRate"`
	ManualGoldRate       *float64          `json:"manualGoldRate"`
	ManualPlatinumRate   *float64          `json:"manualPlatinumRate"`
	MetalRatePerGram     *float64          `json:"metalRatePerGram"`
	MetalValue           *float64          `json:"metalValue"`
	FinalPrice           *float64          `json:"finalPrice"`
	CurrencyCode         string            `json:"currencyCode"`
	RateSource           string            `json:"rateSource,omitempty"`
	FallbackUsed         bool              `json:"fallbackUsed"`
	SourceKeys           map[string]string `json:"sourceKeys"`
	LiveRateFetchedAt    *time.Time        `json:"liveRateFetchedAt,omitempty"`
	APIError             string            `json:"apiError,omitempty"`
}

// DisplayAmount is the price callers should show: the computed final price
// when configured, else the catalog base price. Partially computed values are
// never mixed in.
func (p *VariantPricing) DisplayAmount() float64 {
	if p != nil && p.Configured && p.FinalPrice != nil {
		return *p.FinalPrice
	}
	if p == nil {
		return 0
	}
	return p.BasePriceAmount
}

// BuildVariantPricing resolves the effective rate for a variant (live rate
// for its detected metal, else its manual-rate override) and computes the
// final pricing payload.
func BuildVariantPricing(
	cfg Config,
	options []SelectedOption,
	rates *metalrate.RateSet,
	basePriceAmount float64,
	currencyCode string,
) VariantPricing {
	metal, label := DetectMetal(options)
	live := rates.RateFor(metal)
	manual, manualSource := ManualRateFor(cfg, metal)

	var effective *float64
	var rateSource string
	var fallbackUsed bool
	var liveFetchedAt *time.Time

	switch {
	case live != nil && live.RatePerGram > 0:
		effective = &live.RatePerGram
		rateSource = live.Source
		fallbackUsed = live.FallbackUsed
		fetchedAt := live.FetchedAt
		liveFetchedAt = &fetchedAt
	case manual != nil:
		effective = manual
		rateSource = manualSource
		fallbackUsed = true
	}

	computed := Compute(cfg.MetalWeightGrams, effective, cfg.MakingCharge, cfg.StylePriceAdjustment)

	return VariantPricing{
		Configured:           computed.Configured,
		Model:                PricingModel,
		BasePriceAmount:      basePriceAmount,
		MetalType:            metal,
		MetalLabel:           label,
		MetalWeightGrams:     cfg.MetalWeightGrams,
		MakingCharge:         computed.MakingCharge,
		StylePriceAdjustment: computed.StylePriceAdjustment,
		ManualMetalRate:      cfg.ManualMetalRate,
		ManualGoldRate:       cfg.ManualGoldRate,
		ManualPlatinumRate:   cfg.ManualPlatinumRate,
		MetalRatePerGram:     computed.RatePerGram,
		MetalValue:           computed.MetalValue,
		FinalPrice:           computed.FinalPrice,
		CurrencyCode:         currencyCode,
		RateSource:           rateSource,
		FallbackUsed:         fallbackUsed,
		SourceKeys:           cfg.SourceKeys,
		LiveRateFetchedAt:    liveFetchedAt,
		APIError:             rates.ErrorFor(metal),
	}
}

func positiveOrNil(value *float64) *float64 {
	if value == nil || *value <= 0 {
		return nil
	}
	return value
}
