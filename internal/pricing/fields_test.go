package pricing

import (
	"os"
	"path/filepath"
	"testing"
)

func mf(value string) *Metafield {
	return &Metafield{Value: value, Type: "number_decimal"}
}

func TestProductConfigPicksFirstValidCandidate(t *testing.T) {
	t.Parallel()

	extractor := NewExtractor(DefaultFieldTable())

	cfg := extractor.ProductConfig(Metafields{
		"gold_weight_grams": mf("2.5"),
		"gold_weight":       mf("9.9"),
		"making_charge":     mf("50"),
		"style_price":       mf("-10"),
	})

	if cfg.MetalWeightGrams == nil || *cfg.MetalWeightGrams != 2.5 {
		t.Fatalf("weight = %v, want 2.5", cfg.MetalWeightGrams)
	}
	if cfg.MakingCharge != 50 {
		t.Fatalf("making charge = %v, want 50", cfg.MakingCharge)
	}
	if cfg.StylePriceAdjustment != -10 {
		t.Fatalf("style adjustment = %v, want -10", cfg.StylePriceAdjustment)
	}
	if got := cfg.SourceKeys["metalWeight"]; got != "product.custom.gold_weight_grams" {
		t.Fatalf("weight source = %q", got)
	}
	if got := cfg.SourceKeys["stylePriceAdjustment"]; got != "product.custom.style_price" {
		t.Fatalf("style source = %q", got)
	}
}

func TestFieldValidationRules(t *testing.T) {
	t.Parallel()

	extractor := NewExtractor(DefaultFieldTable())

	tests := []struct {
		name   string
		fields Metafields
		check  func(t *testing.T, cfg Config)
	}{
		{
			name: "zero weight rejected, later candidate wins",
			fields: Metafields{
				"metal_weight": mf("0"),
				"gold_weight":  mf("3.1"),
			},
			check: func(t *testing.T, cfg Config) {
				if cfg.MetalWeightGrams == nil || *cfg.MetalWeightGrams != 3.1 {
					t.Fatalf("weight = %v, want 3.1", cfg.MetalWeightGrams)
				}
			},
		},
		{
			name: "negative weight rejected entirely",
			fields: Metafields{
				"metal_weight": mf("-2"),
			},
			check: func(t *testing.T, cfg Config) {
				if cfg.MetalWeightGrams != nil {
					t.Fatalf("weight = %v, want nil", *cfg.MetalWeightGrams)
				}
			},
		},
		{
			name: "zero making charge accepted",
			fields: Metafields{
				"making_charge": mf("0"),
				"labour_cost":   mf("75"),
			},
			check: func(t *testing.T, cfg Config) {
				if cfg.MakingCharge != 0 {
					t.Fatalf("making charge = %v, want 0", cfg.MakingCharge)
				}
			},
		},
		{
			name: "negative making charge rejected",
			fields: Metafields{
				"making_charge": mf("-5"),
				"labour_cost":   mf("75"),
			},
			check: func(t *testing.T, cfg Config) {
				if cfg.MakingCharge != 75 {
					t.Fatalf("making charge = %v, want 75", cfg.MakingCharge)
				}
			},
		},
		{
			name: "unparseable value skipped",
			fields: Metafields{
				"metal_weight": mf("two grams"),
				"gold_weight":  mf("2"),
			},
			check: func(t *testing.T, cfg Config) {
				if cfg.MetalWeightGrams == nil || *cfg.MetalWeightGrams != 2 {
					t.Fatalf("weight = %v, want 2", cfg.MetalWeightGrams)
				}
			},
		},
		{
			name: "manual rates must be positive",
			fields: Metafields{
				"manual_gold_rate":  mf("0"),
				"manual_metal_rate": mf("85.5"),
			},
			check: func(t *testing.T, cfg Config) {
				if cfg.ManualGoldRate != nil {
					t.Fatalf("manual gold rate = %v, want nil", *cfg.ManualGoldRate)
				}
				if cfg.ManualMetalRate == nil || *cfg.ManualMetalRate != 85.5 {
					t.Fatalf("manual metal rate = %v, want 85.5", cfg.ManualMetalRate)
				}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.check(t, extractor.ProductConfig(tt.fields))
		})
	}
}

func TestVariantConfigInheritsFromProduct(t *testing.T) {
	t.Parallel()

	extractor := NewExtractor(DefaultFieldTable())

	product := extractor.ProductConfig(Metafields{
		"metal_weight":     mf("2.5"),
		"making_charge":    mf("50"),
		"manual_gold_rate": mf("82"),
	})

	variant := extractor.VariantConfig(Metafields{
		"metal_weight": mf("3.2"),
	}, product)

	if variant.MetalWeightGrams == nil || *variant.MetalWeightGrams != 3.2 {
		t.Fatalf("variant weight = %v, want override 3.2", variant.MetalWeightGrams)
	}
	if variant.MakingCharge != 50 {
		t.Fatalf("variant making charge = %v, want inherited 50", variant.MakingCharge)
	}
	if variant.ManualGoldRate == nil || *variant.ManualGoldRate != 82 {
		t.Fatalf("variant manual gold rate = %v, want inherited 82", variant.ManualGoldRate)
	}
	if got := variant.SourceKeys["metalWeight"]; got != "variant.custom.metal_weight" {
		t.Fatalf("weight source = %q", got)
	}
	if got := variant.SourceKeys["makingCharge"]; got != "product.custom.making_charge" {
		t.Fatalf("making charge source = %q", got)
	}
}

func TestVariantConfigWithoutProductValues(t *testing.T) {
	t.Parallel()

	extractor := NewExtractor(DefaultFieldTable())
	product := extractor.ProductConfig(Metafields{})
	variant := extractor.VariantConfig(Metafields{}, product)

	if variant.MetalWeightGrams != nil {
		t.Fatalf("weight = %v, want nil", *variant.MetalWeightGrams)
	}
	if variant.MakingCharge != 0 || variant.StylePriceAdjustment != 0 {
		t.Fatalf("expected zero charges, got %+v", variant)
	}
	if len(variant.SourceKeys) != 0 {
		t.Fatalf("expected no source keys, got %v", variant.SourceKeys)
	}
}

func TestLoadFieldTable(t *testing.T) {
	t.Parallel()

	t.Run("empty path keeps defaults", func(t *testing.T) {
		t.Parallel()

		table, err := LoadFieldTable("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if table.Weight[0] != "metal_weight" {
			t.Fatalf("unexpected default table: %+v", table)
		}
	})

	t.Run("partial override", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "aliases.yaml")
		content := "weight:\n  - custom_weight\n  - metal_weight\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		table, err := LoadFieldTable(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(table.Weight) != 2 || table.Weight[0] != "custom_weight" {
			t.Fatalf("weight candidates = %v", table.Weight)
		}
		if table.MakingCharge[0] != "making_charge" {
			t.Fatalf("making charge defaults lost: %v", table.MakingCharge)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		if _, err := LoadFieldTable(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("weight: [unclosed"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFieldTable(path); err == nil {
			t.Fatal("expected error for malformed yaml")
		}
	})
}
