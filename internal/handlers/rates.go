package handlers

import (
	"net/http"

	"github.com/ringforgeapp/ringforge/internal/metalrate"
	"github.com/ringforgeapp/ringforge/internal/numeric"
)

// manualRateOverrides reads per-request manual rate query parameters
// (?goldRate=, ?platinumRate=). Non-positive values are ignored.
func manualRateOverrides(r *http.Request) metalrate.ResolveOptions {
	overrides := make(map[metalrate.Metal]float64)
	params := r.URL.Query()
	for metal, key := range map[metalrate.Metal]string{
		metalrate.Gold:     "goldRate",
		metalrate.Platinum: "platinumRate",
	} {
		if raw := params.Get(key); raw != "" {
			if value := numeric.ToPositiveNumber(raw); value != nil {
				overrides[metal] = *value
			}
		}
	}
	if len(overrides) == 0 {
		return metalrate.ResolveOptions{}
	}
	return metalrate.ResolveOptions{ManualRates: overrides}
}

// MetalRates resolves the current per-gram rate for every supported metal.
// Individual metals may carry an error while others succeed.
func (h *Handlers) MetalRates(w http.ResponseWriter, r *http.Request) {
	set := h.rates.ResolveAll(r.Context(), manualRateOverrides(r))
	h.respondJSON(w, r, http.StatusOK, set)
}

// GoldRate resolves the gold rate only. Kept as its own route for storefront
// themes that predate multi-metal support; those themes send ?manualRate=
// instead of ?goldRate=.
func (h *Handlers) GoldRate(w http.ResponseWriter, r *http.Request) {
	opts := manualRateOverrides(r)
	if raw := r.URL.Query().Get("manualRate"); raw != "" {
		if _, explicit := opts.ManualRates[metalrate.Gold]; !explicit {
			if value := numeric.ToPositiveNumber(raw); value != nil {
				if opts.ManualRates == nil {
					opts.ManualRates = make(map[metalrate.Metal]float64)
				}
				opts.ManualRates[metalrate.Gold] = *value
			}
		}
	}

	rate, err := h.rates.Resolve(r.Context(), metalrate.Gold, opts)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, rate)
}
