package nivoda

import (
	"math"
	"strings"

	"github.com/ringforgeapp/ringforge/internal/numeric"
)

const (
	// DefaultLimit and MaxLimit bound diamond search page sizes.
	DefaultLimit = 12
	MaxLimit     = 50

	defaultMinCarat = 0.0
	defaultMaxCarat = 30.0

	// Price bounds in minor currency units.
	defaultMinPrice = 0
	defaultMaxPrice = 500_000_000
)

// SearchInput is the loosely-typed query input for a diamond search, straight
// from HTTP query parameters.
type SearchInput struct {
	Shape    string
	MinCarat string
	MaxCarat string
	Color    string
	Clarity  string
	Cut      string
	PriceMin string
	PriceMax string
	Labgrown string
	Limit    string
	Offset   string
}

// BuildFilters maps loose query input onto the structured DiamondQuery filter
// object. Unrecognized or empty inputs are omitted entirely.
func BuildFilters(input SearchInput) map[string]any {
	filters := make(map[string]any)

	if shape := strings.TrimSpace(input.Shape); shape != "" {
		filters["shapes"] = []string{strings.ToUpper(shape)}
	}

	if input.MinCarat != "" || input.MaxCarat != "" {
		from := defaultMinCarat
		if parsed := numeric.ToNumber(input.MinCarat); parsed != nil {
			from = *parsed
		}
		to := defaultMaxCarat
		if parsed := numeric.ToNumber(input.MaxCarat); parsed != nil {
			to = *parsed
		}
		filters["sizes"] = map[string]any{"from": from, "to": to}
	}

	if list := splitUpper(input.Color); len(list) > 0 {
		filters["color"] = list
	}
	if list := splitUpper(input.Clarity); len(list) > 0 {
		filters["clarity"] = list
	}
	if list := splitUpper(input.Cut); len(list) > 0 {
		filters["cut"] = list
	}

	if input.PriceMin != "" || input.PriceMax != "" {
		from := defaultMinPrice
		if parsed := numeric.ToNumber(input.PriceMin); parsed != nil {
			from = toMinorUnits(*parsed)
		}
		to := defaultMaxPrice
		if parsed := numeric.ToNumber(input.PriceMax); parsed != nil {
			to = toMinorUnits(*parsed)
		}
		filters["dollar_value"] = map[string]any{"from": from, "to": to}
	}

	if labgrown := strings.TrimSpace(input.Labgrown); labgrown != "" {
		filters["labgrown"] = strings.EqualFold(labgrown, "true")
	}

	return filters
}

// ParseLimit applies the default page size and the hard cap.
func ParseLimit(raw string) int {
	limit := DefaultLimit
	if parsed := numeric.ToNumber(raw); parsed != nil {
		limit = int(*parsed)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit
}

// ParseOffset floors offsets at zero.
func ParseOffset(raw string) int {
	offset := 0
	if parsed := numeric.ToNumber(raw); parsed != nil {
		offset = int(*parsed)
	}
	if offset < 0 {
		offset = 0
	}
	return offset
}

func splitUpper(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToUpper(trimmed))
	}
	return values
}

// toMinorUnits converts a major-unit amount to integer minor units.
func toMinorUnits(amount float64) int {
	return int(math.Round(amount * 100))
}
