package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ringforgeapp/ringforge/internal/nivoda"
)

// Diamonds searches the diamond inventory with the filters present in the
// query string.
func (h *Handlers) Diamonds(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	input := nivoda.SearchInput{
		Shape:    params.Get("shape"),
		MinCarat: params.Get("minCarat"),
		MaxCarat: params.Get("maxCarat"),
		Color:    params.Get("color"),
		Clarity:  params.Get("clarity"),
		Cut:      params.Get("cut"),
		PriceMin: params.Get("priceMin"),
		PriceMax: params.Get("priceMax"),
		Labgrown: params.Get("labgrown"),
		Limit:    params.Get("limit"),
		Offset:   params.Get("offset"),
	}

	result, err := h.diamonds.Search(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, result)
}

// DiamondByID fetches one diamond with its full certificate and media.
func (h *Handlers) DiamondByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		h.respondBadRequest(w, r, "diamond id is required")
		return
	}

	diamond, err := h.diamonds.DiamondByID(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]*nivoda.Diamond{"diamond": diamond})
}
