package numeric

// Package numeric normalizes loosely-typed values coming from metafields,
// query parameters and provider payloads into validated numbers.

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// RatePlaces is the precision for per-gram metal rates (basis points).
	RatePlaces = 4
	// MoneyPlaces is the precision for money amounts.
	MoneyPlaces = 2
)

// ToNumber parses numbers and numeric-looking strings. Thousands separators
// and stray currency symbols are stripped; anything that does not end up a
// finite float yields nil.
func ToNumber(value any) *float64 {
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return finite(float64(v))
	case int32:
		return finite(float64(v))
	case int64:
		return finite(float64(v))
	case json.Number:
		return parseNumericString(v.String())
	case string:
		return parseNumericString(v)
	case *string:
		if v == nil {
			return nil
		}
		return parseNumericString(*v)
	default:
		return nil
	}
}

// ToPositiveNumber is ToNumber restricted to values strictly greater than zero.
func ToPositiveNumber(value any) *float64 {
	parsed := ToNumber(value)
	if parsed == nil || *parsed <= 0 {
		return nil
	}
	return parsed
}

// RoundRate rounds to 4 decimal places.
func RoundRate(value float64) float64 {
	return round(value, RatePlaces)
}

// RoundMoney rounds to 2 decimal places.
func RoundMoney(value float64) float64 {
	return round(value, MoneyPlaces)
}

func round(value float64, places int32) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	rounded, _ := decimal.NewFromFloat(value).Round(places).Float64()
	return rounded
}

// ReadPath walks a dotted path ("data.rates.gram") through nested maps.
// The second return is false if any segment is missing.
func ReadPath(obj map[string]any, path string) (any, bool) {
	if obj == nil || strings.TrimSpace(path) == "" {
		return nil, false
	}

	var current any = obj
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			continue
		}
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		next, exists := node[segment]
		if !exists {
			return nil, false
		}
		current = next
	}
	return current, true
}

func parseNumericString(raw string) *float64 {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, strings.ReplaceAll(strings.TrimSpace(raw), ",", ""))

	if cleaned == "" {
		return nil
	}

	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return finite(parsed)
}

func finite(value float64) *float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	return &value
}
