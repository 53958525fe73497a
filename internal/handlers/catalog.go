package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ringforgeapp/ringforge/internal/shopify"
)

func queryInt(r *http.Request, key string) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

// Products lists priced catalog products, scoped by ?collection= and ?limit=.
// ?strict=true disables the full-catalog fallback for unknown collections.
func (h *Handlers) Products(w http.ResponseWriter, r *http.Request) {
	collection := r.URL.Query().Get("collection")
	limit := queryInt(r, "limit")
	strict := strings.EqualFold(r.URL.Query().Get("strict"), "true")

	list, err := h.shop.GetProducts(r.Context(), collection, limit, strict)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, list)
}

// ProductByHandle fetches one priced product by its handle.
func (h *Handlers) ProductByHandle(w http.ResponseWriter, r *http.Request) {
	handle := mux.Vars(r)["handle"]

	product, err := h.shop.GetProductByHandle(r.Context(), handle)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]*shopify.Product{"product": product})
}

// Collections lists catalog collections.
func (h *Handlers) Collections(w http.ResponseWriter, r *http.Request) {
	collections, err := h.shop.GetCollections(r.Context(), queryInt(r, "limit"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string][]shopify.Collection{"collections": collections})
}

// TopSellers lists best-selling priced products.
func (h *Handlers) TopSellers(w http.ResponseWriter, r *http.Request) {
	list, err := h.shop.GetTopSellers(r.Context(), queryInt(r, "limit"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, list)
}
