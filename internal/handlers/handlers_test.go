package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ringforgeapp/ringforge/internal/cache"
	"github.com/ringforgeapp/ringforge/internal/config"
	"github.com/ringforgeapp/ringforge/internal/metalrate"
	"github.com/ringforgeapp/ringforge/internal/nivoda"
	"github.com/ringforgeapp/ringforge/internal/pricing"
	"github.com/ringforgeapp/ringforge/internal/shopify"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMemoryCache(t *testing.T) cache.Provider {
	t.Helper()

	memory, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("NewMemoryProvider: %v", err)
	}
	return memory
}

// newTestHandlers assembles a working handler set; mutate adjusts individual
// dependencies before construction.
func newTestHandlers(t *testing.T, mutate func(*Dependencies)) *Handlers {
	t.Helper()

	memory := newMemoryCache(t)
	deps := Dependencies{
		Config:        &config.Config{FrontendURL: "http://localhost:5173"},
		CacheProvider: memory,
		Rates:         metalrate.NewResolver(metalrate.NewProvider(map[metalrate.Metal]metalrate.Config{}, nil), nil),
		Diamonds:      nivoda.NewClient(nivoda.Config{}, memory, nil),
		Shop: shopify.NewClient(
			shopify.Config{StoreDomain: "rings.example.com", StorefrontToken: "sf-token", APIVersion: "2024-10"},
			shopify.NewProductMapper(pricing.DefaultFieldTable()),
			nil,
			nil,
		),
		Logger: discardLogger(),
	}
	if mutate != nil {
		mutate(&deps)
	}

	h, err := New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()

	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, nil)
	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	decodeResponse(t, w, &body)
	if body["status"] != "healthy" {
		t.Fatalf("body = %#v", body)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Dependencies)
	}{
		{name: "config", mutate: func(d *Dependencies) { d.Config = nil }},
		{name: "cache", mutate: func(d *Dependencies) { d.CacheProvider = nil }},
		{name: "rates", mutate: func(d *Dependencies) { d.Rates = nil }},
		{name: "diamonds", mutate: func(d *Dependencies) { d.Diamonds = nil }},
		{name: "shop", mutate: func(d *Dependencies) { d.Shop = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			memory := newMemoryCache(t)
			deps := Dependencies{
				Config:        &config.Config{},
				CacheProvider: memory,
				Rates:         metalrate.NewResolver(metalrate.NewProvider(nil, nil), nil),
				Diamonds:      nivoda.NewClient(nivoda.Config{}, memory, nil),
				Shop:          shopify.NewClient(shopify.Config{}, shopify.NewProductMapper(pricing.DefaultFieldTable()), nil, nil),
				Logger:        discardLogger(),
			}
			tt.mutate(&deps)
			if _, err := New(deps); err == nil {
				t.Fatal("expected constructor error")
			}
		})
	}
}

func TestQueryInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  int
	}{
		{query: "", want: 0},
		{query: "limit=12", want: 12},
		{query: "limit=0", want: 0},
		{query: "limit=-4", want: 0},
		{query: "limit=abc", want: 0},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		if got := queryInt(r, "limit"); got != tt.want {
			t.Errorf("queryInt(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestCreateCartRejectsInvalidBody(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, nil)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/cart", strings.NewReader("{not json"))
	h.CreateCart(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCreateCartRejectsEmptyLines(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, nil)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/cart", strings.NewReader(`{"lines": []}`))
	h.CreateCart(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var body errorResponse
	decodeResponse(t, w, &body)
	if body.Error == "" {
		t.Fatal("expected error message")
	}
}

func TestCreateOrderRejectsEmptyLines(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, nil)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"lines": []}`))
	h.CreateOrder(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestStorefrontProxyRejectsEmptyQuery(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, nil)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/shopify/storefront", strings.NewReader(`{"query": ""}`))
	h.StorefrontProxy(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestProductByHandleRequiresHandle(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, nil)
	w := httptest.NewRecorder()
	h.ProductByHandle(w, httptest.NewRequest(http.MethodGet, "/api/shopify/products/", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}
