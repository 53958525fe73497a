package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ringforgeapp/ringforge/internal/shopify"
)

// CreateCart creates a Storefront checkout cart from the posted lines.
func (h *Handlers) CreateCart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Lines []shopify.CartLine `json:"lines"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.respondBadRequest(w, r, err.Error())
		return
	}

	cart, err := h.shop.CreateCart(r.Context(), body.Lines)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, map[string]*shopify.Cart{"cart": cart})
}

// CreateOrder creates an Admin draft order for a completed ring
// configuration.
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var input shopify.DraftOrderInput
	if err := decodeBody(r, &input); err != nil {
		h.respondBadRequest(w, r, err.Error())
		return
	}

	order, err := h.shop.CreateDraftOrder(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, map[string]*shopify.DraftOrder{"draftOrder": order})
}

// StorefrontProxy forwards a Storefront API GraphQL request on the
// frontend's behalf so the access token stays server side.
func (h *Handlers) StorefrontProxy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.respondBadRequest(w, r, err.Error())
		return
	}

	data, err := h.shop.StorefrontProxy(r.Context(), body.Query, body.Variables)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]json.RawMessage{"data": data})
}
