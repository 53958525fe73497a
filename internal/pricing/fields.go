package pricing

// Package pricing derives per-variant sale prices from catalog metafields and
// resolved metal rates.

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ringforgeapp/ringforge/internal/numeric"
)

// Metafield is a raw catalog metafield value as returned by Shopify.
type Metafield struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

// Metafields holds a product's or variant's metafields keyed by metafield key
// (namespace is always "custom" for pricing fields).
type Metafields map[string]*Metafield

// FieldTable is the declarative priority table mapping each logical pricing
// field to an ordered list of metafield keys. The first candidate passing the
// field's validation rule wins.
type FieldTable struct {
	Weight             []string `yaml:"weight"`
	MakingCharge       []string `yaml:"making_charge"`
	StyleAdjustment    []string `yaml:"style_adjustment"`
	ManualMetalRate    []string `yaml:"manual_metal_rate"`
	ManualGoldRate     []string `yaml:"manual_gold_rate"`
	ManualPlatinumRate []string `yaml:"manual_platinum_rate"`
}

// DefaultFieldTable covers the metafield keys used by current and legacy
// catalog setups, newest naming first.
func DefaultFieldTable() FieldTable {
	return FieldTable{
		Weight:             []string{"metal_weight", "gold_weight_grams", "gold_weight"},
		MakingCharge:       []string{"making_charge", "labour_cost", "labor_cost"},
		StyleAdjustment:    []string{"style_price", "style_price_difference", "style_price_adjustment"},
		ManualMetalRate:    []string{"manual_metal_rate"},
		ManualGoldRate:     []string{"manual_gold_rate"},
		ManualPlatinumRate: []string{"manual_platinum_rate"},
	}
}

// LoadFieldTable reads alias overrides from a YAML file. Fields left empty in
// the file keep the default candidate lists.
func LoadFieldTable(path string) (FieldTable, error) {
	table := DefaultFieldTable()
	if path == "" {
		return table, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return table, fmt.Errorf("failed to read pricing aliases file: %w", err)
	}

	var overrides FieldTable
	if err := yaml.Unmarshal(content, &overrides); err != nil {
		return table, fmt.Errorf("failed to parse pricing aliases file: %w", err)
	}

	if len(overrides.Weight) > 0 {
		table.Weight = overrides.Weight
	}
	if len(overrides.MakingCharge) > 0 {
		table.MakingCharge = overrides.MakingCharge
	}
	if len(overrides.StyleAdjustment) > 0 {
		table.StyleAdjustment = overrides.StyleAdjustment
	}
	if len(overrides.ManualMetalRate) > 0 {
		table.ManualMetalRate = overrides.ManualMetalRate
	}
	if len(overrides.ManualGoldRate) > 0 {
		table.ManualGoldRate = overrides.ManualGoldRate
	}
	if len(overrides.ManualPlatinumRate) > 0 {
		table.ManualPlatinumRate = overrides.ManualPlatinumRate
	}

	return table, nil
}

// Config is the extracted pricing configuration at product or variant scope.
// Nil pointer fields mean "not configured at this scope".
type Config struct {
	MetalWeightGrams     *float64          `json:"metalWeightGrams"`
	MakingCharge         float64           `json:"makingCharge"`
	StylePriceAdjustment float64           `json:"stylePriceAdjustment"`
	ManualMetalRate      *float64          `json:"manualMetalRate"`
	ManualGoldRate       *float64          `json:"manualGoldRate"`
	ManualPlatinumRate   *float64          `json:"manualPlatinumRate"`
	SourceKeys           map[string]string `json:"sourceKeys"`
}

type pickRule struct {
	allowZero     bool
	allowNegative bool
}

type picked struct {
	value  *float64
	source string
}

// Extractor reads pricing configuration from raw metafields using a
// FieldTable.
type Extractor struct {
	table FieldTable
}

func NewExtractor(table FieldTable) *Extractor {
	return &Extractor{table: table}
}

// ProductConfig extracts product-scope pricing configuration.
func (e *Extractor) ProductConfig(fields Metafields) Config {
	return e.extract(fields, "product", nil)
}

// VariantConfig extracts variant-scope configuration; fields absent at
// variant scope inherit the already-extracted product value.
func (e *Extractor) VariantConfig(fields Metafields, product Config) Config {
	return e.extract(fields, "variant", &product)
}

func (e *Extractor) extract(fields Metafields, scope string, parent *Config) Config {
	weight := pickNumeric(fields, e.table.Weight, scope, pickRule{})
	making := pickNumeric(fields, e.table.MakingCharge, scope, pickRule{allowZero: true})
	style := pickNumeric(fields, e.table.StyleAdjustment, scope, pickRule{allowZero: true, allowNegative: true})
	manualMetal := pickNumeric(fields, e.table.ManualMetalRate, scope, pickRule{})
	manualGold := pickNumeric(fields, e.table.ManualGoldRate, scope, pickRule{})
	manualPlatinum := pickNumeric(fields, e.table.ManualPlatinumRate, scope, pickRule{})

	cfg := Config{
		MakingCharge: 0,
		SourceKeys:   make(map[string]string, 6),
	}

	assign := func(name string, p picked, inherited *float64, inheritedSource string) *float64 {
		if p.value != nil {
			cfg.SourceKeys[name] = p.source
			return p.value
		}
		if inherited != nil {
			if inheritedSource != "" {
				cfg.SourceKeys[name] = inheritedSource
			}
			return inherited
		}
		return nil
	}

	var parentWeight, parentManualMetal, parentManualGold, parentManualPlatinum *float64
	var parentMaking, parentStyle *float64
	parentSources := map[string]string{}
	if parent != nil {
		parentWeight = parent.MetalWeightGrams
		parentMaking = &parent.MakingCharge
		parentStyle = &parent.StylePriceAdjustment
		parentManualMetal = parent.ManualMetalRate
		parentManualGold = parent.ManualGoldRate
		parentManualPlatinum = parent.ManualPlatinumRate
		parentSources = parent.SourceKeys
	}

	cfg.MetalWeightGrams = assign("metalWeight", weight, parentWeight, parentSources["metalWeight"])
	cfg.ManualMetalRate = assign("manualMetalRate", manualMetal, parentManualMetal, parentSources["manualMetalRate"])
	cfg.ManualGoldRate = assign("manualGoldRate", manualGold, parentManualGold, parentSources["manualGoldRate"])
	cfg.ManualPlatinumRate = assign("manualPlatinumRate", manualPlatinum, parentManualPlatinum, parentSources["manualPlatinumRate"])

	if v := assign("makingCharge", making, parentMaking, parentSources["makingCharge"]); v != nil {
		cfg.MakingCharge = *v
	}
	if v := assign("stylePriceAdjustment", style, parentStyle, parentSources["stylePriceAdjustment"]); v != nil {
		cfg.StylePriceAdjustment = *v
	}

	return cfg
}

// pickNumeric returns the first candidate metafield parsing to a number that
// passes the rule, with the winning scope.namespace.key recorded as source.
func pickNumeric(fields Metafields, keys []string, scope string, rule pickRule) picked {
	for _, key := range keys {
		field := fields[key]
		if field == nil {
			continue
		}
		value := numeric.ToNumber(field.Value)
		if value == nil {
			continue
		}
		switch {
		case rule.allowNegative:
		case rule.allowZero:
			if *value < 0 {
				continue
			}
		default:
			if *value <= 0 {
				continue
			}
		}
		return picked{value: value, source: fmt.Sprintf("%s.custom.%s", scope, key)}
	}
	return picked{}
}
