package shopify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/ringforgeapp/ringforge/internal/metalrate"
	"github.com/ringforgeapp/ringforge/internal/pricing"
)

// rewriteTransport redirects every request to the test server so the client's
// fixed https endpoints can be exercised against httptest.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

type stubRateResolver struct {
	set *metalrate.RateSet
}

func (s *stubRateResolver) ResolveAll(context.Context, metalrate.ResolveOptions) *metalrate.RateSet {
	return s.set
}

func newTestShopClient(t *testing.T, srv *httptest.Server, storefrontToken string) *Client {
	t.Helper()

	target, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	return &Client{
		cfg: Config{
			StoreDomain:     "rings.example.com",
			StorefrontToken: storefrontToken,
			APIVersion:      "2024-10",
		},
		httpClient: &http.Client{Transport: rewriteTransport{target: target}},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		mapper:     NewProductMapper(pricing.DefaultFieldTable()),
		rates:      &stubRateResolver{set: goldRates(84.0)},
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func decodeGraphQLRequest(t *testing.T, r *http.Request) graphqlRequest {
	t.Helper()

	var req graphqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Fatalf("decode graphql request: %v", err)
	}
	return req
}

func writeGraphQLData(t *testing.T, w http.ResponseWriter, data string) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(`{"data": ` + data + `}`)); err != nil {
		t.Fatalf("write response: %v", err)
	}
}

func TestClampLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		requested int
		want      int
	}{
		{requested: 0, want: DefaultProductLimit},
		{requested: -3, want: DefaultProductLimit},
		{requested: 1, want: 1},
		{requested: 24, want: 24},
		{requested: 80, want: 80},
		{requested: 500, want: MaxProductLimit},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.requested); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.requested, got, tt.want)
		}
	}
}

func TestPublicAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		want  float64
	}{
		{name: "decimal string", value: "1250.50", want: 1250.50},
		{name: "small integer stays dollars", value: "995", want: 995},
		{name: "integer below threshold", value: "99999", want: 99999},
		{name: "integer at threshold is cents", value: "100000", want: 1000},
		{name: "large integer is cents", value: "12500099", want: 125000.99},
		{name: "decimal above threshold stays dollars", value: "100000.0", want: 100000},
		{name: "unparseable", value: "abc", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := publicAmount(json.Number(tt.value)); got != tt.want {
				t.Fatalf("publicAmount(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestDecodePublicTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "array", raw: `["rings","solitaire"]`, want: []string{"rings", "solitaire"}},
		{name: "comma string", raw: `"rings, solitaire , "`, want: []string{"rings", "solitaire"}},
		{name: "empty string", raw: `""`, want: nil},
		{name: "empty input", raw: "", want: nil},
		{name: "unexpected shape", raw: `42`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := decodePublicTags(json.RawMessage(tt.raw))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("decodePublicTags(%s) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestStripTags(t *testing.T) {
	t.Parallel()

	if got := stripTags("<p>A <b>classic</b> band.</p>"); got != "A  classic  band." {
		t.Fatalf("stripTags = %q", got)
	}
	if got := stripTags("plain"); got != "plain" {
		t.Fatalf("stripTags = %q", got)
	}
}

func TestGetProductsStorefront(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/2024-10/graphql.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("X-Shopify-Storefront-Access-Token"); got != "sf-token" {
			t.Errorf("storefront token header = %q", got)
		}
		req := decodeGraphQLRequest(t, r)
		if req.Variables["handle"] != "rings" {
			t.Errorf("handle variable = %v", req.Variables["handle"])
		}
		writeGraphQLData(t, w, `{"collection": {"products": {"edges": [{"node": `+sampleProductNode+`}]}}}`)
	}))
	defer srv.Close()

	client := newTestShopClient(t, srv, "sf-token")
	list, err := client.GetProducts(context.Background(), "", 10, false)
	if err != nil {
		t.Fatalf("GetProducts: %v", err)
	}
	if list.Source != "storefront" {
		t.Fatalf("source = %q", list.Source)
	}
	if len(list.Products) != 1 || list.Products[0].Handle != "classic-solitaire" {
		t.Fatalf("products = %#v", list.Products)
	}
	// Resolved rates flow into variant pricing.
	first := list.Products[0].Variants[0]
	if first.Pricing.FinalPrice == nil || *first.Pricing.FinalPrice != 250.00 {
		t.Fatalf("variant final price = %v", first.Pricing.FinalPrice)
	}
	if rate := list.MetalRates[metalrate.Gold]; rate == nil || rate.RatePerGram != 84 {
		t.Fatalf("metal rates = %#v", list.MetalRates)
	}
}

func TestGetProductsUnknownCollectionServesCatalog(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		req := decodeGraphQLRequest(t, r)
		if calls == 1 {
			if req.Variables["handle"] != "bracelets" {
				t.Errorf("handle variable = %v", req.Variables["handle"])
			}
			writeGraphQLData(t, w, `{"collection": null}`)
			return
		}
		writeGraphQLData(t, w, `{"products": {"edges": [{"node": `+sampleProductNode+`}]}}`)
	}))
	defer srv.Close()

	client := newTestShopClient(t, srv, "sf-token")
	list, err := client.GetProducts(context.Background(), "bracelets", 10, false)
	if err != nil {
		t.Fatalf("GetProducts: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want collection query then full catalog", calls)
	}
	if len(list.Products) != 1 {
		t.Fatalf("products = %d", len(list.Products))
	}
}

func TestGetProductsStrictUnknownCollectionIsEmpty(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeGraphQLData(t, w, `{"collection": null}`)
	}))
	defer srv.Close()

	client := newTestShopClient(t, srv, "sf-token")
	list, err := client.GetProducts(context.Background(), "bracelets", 10, true)
	if err != nil {
		t.Fatalf("GetProducts: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want no catalog fallback", calls)
	}
	if len(list.Products) != 0 || list.Source != "storefront" {
		t.Fatalf("list = %+v", list)
	}
}

const samplePublicProducts = `{"products": [{
  "id": 7001,
  "title": "Classic Solitaire",
  "handle": "classic-solitaire",
  "body_html": "<p>A classic solitaire setting.</p>",
  "product_type": "Ring",
  "tags": "rings, solitaire",
  "images": [{"src": "https://cdn.example.com/a.jpg"}],
  "options": [
    {"name": "Metal", "position": 1, "values": ["14K Yellow Gold"]},
    {"name": "Size", "position": 2, "values": ["6", "7"]}
  ],
  "variants": [
    {"id": 8001, "title": "14K Yellow Gold / 6", "option1": "14K Yellow Gold", "option2": "6", "price": "199.00", "available": true}
  ]
}]}`

func TestGetProductsPublicWithoutToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/rings/products.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("limit") != "10" {
			t.Errorf("limit = %q", r.URL.Query().Get("limit"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(samplePublicProducts))
	}))
	defer srv.Close()

	client := newTestShopClient(t, srv, "")
	list, err := client.GetProducts(context.Background(), "", 10, false)
	if err != nil {
		t.Fatalf("GetProducts: %v", err)
	}
	if list.Source != "public" {
		t.Fatalf("source = %q", list.Source)
	}

	product := list.Products[0]
	if !reflect.DeepEqual(product.Tags, []string{"rings", "solitaire"}) {
		t.Fatalf("tags = %#v", product.Tags)
	}
	if product.Description != "A classic solitaire setting." {
		t.Fatalf("description = %q", product.Description)
	}

	variant := product.Variants[0]
	wantOptions := []pricing.SelectedOption{
		{Name: "Metal", Value: "14K Yellow Gold"},
		{Name: "Size", Value: "6"},
	}
	if !reflect.DeepEqual(variant.SelectedOptions, wantOptions) {
		t.Fatalf("selected options = %#v", variant.SelectedOptions)
	}
	if variant.MetalType != metalrate.Gold {
		t.Fatalf("metal type = %q", variant.MetalType)
	}
	// Public endpoints carry no metafields, so the catalog price stands.
	if variant.PriceAmount != 199.00 {
		t.Fatalf("price = %v", variant.PriceAmount)
	}
}

func TestGetProductsFallsBackWhenStorefrontFails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(samplePublicProducts))
	}))
	defer srv.Close()

	client := newTestShopClient(t, srv, "sf-token")
	list, err := client.GetProducts(context.Background(), "", 10, false)
	if err != nil {
		t.Fatalf("GetProducts: %v", err)
	}
	if list.Source != "public" {
		t.Fatalf("source = %q, want public fallback", list.Source)
	}
}

func TestPublicProductsUnknownCollectionFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections/missing/products.json" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Path != "/products.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(samplePublicProducts))
	}))
	defer srv.Close()

	client := newTestShopClient(t, srv, "")
	list, err := client.GetProducts(context.Background(), "missing", 10, false)
	if err != nil {
		t.Fatalf("GetProducts: %v", err)
	}
	if len(list.Products) != 1 {
		t.Fatalf("products = %d", len(list.Products))
	}
}

func TestGetProductByHandleStorefront(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeGraphQLRequest(t, r)
		if req.Variables["handle"] != "classic-solitaire" {
			t.Errorf("handle variable = %v", req.Variables["handle"])
		}
		writeGraphQLData(t, w, `{"product": `+sampleProductNode+`}`)
	}))
	defer srv.Close()

	client := newTestShopClient(t, srv, "sf-token")
	product, err := client.GetProductByHandle(context.Background(), "classic-solitaire")
	if err != nil {
		t.Fatalf("GetProductByHandle: %v", err)
	}
	if product.Title != "Classic Solitaire" {
		t.Fatalf("title = %q", product.Title)
	}
}

func TestGetProductByHandleNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected public fallback request to %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		writeGraphQLData(t, w, `{"product": null}`)
	}))
	defer srv.Close()

	client := newTestShopClient(t, srv, "sf-token")
	_, err := client.GetProductByHandle(context.Background(), "missing")
	apiErr, matched := err.(*APIError)
	if !matched || apiErr.Status != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 APIError", err)
	}
}

func TestGetProductByHandleRequiresHandle(t *testing.T) {
	t.Parallel()

	client := newTestShopClient(t, httptest.NewUnstartedServer(nil), "")
	_, err := client.GetProductByHandle(context.Background(), "")
	apiErr, matched := err.(*APIError)
	if !matched || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400 APIError", err)
	}
}

func TestGetCollectionsStorefrontDedupes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeGraphQLData(t, w, `{"collections": {"edges": [
			{"node": {"id": "gid://shopify/Collection/1", "title": "Rings", "handle": "rings", "image": {"url": "https://cdn.example.com/rings.jpg"}}},
			{"node": {"id": "gid://shopify/Collection/2", "title": "Rings Again", "handle": "rings"}},
			{"node": {"id": "gid://shopify/Collection/3", "title": "Bands", "handle": "bands"}},
			{"node": {"id": "gid://shopify/Collection/4", "title": "No Handle", "handle": ""}}
		]}}`)
	}))
	defer srv.Close()

	client := newTestShopClient(t, srv, "sf-token")
	collections, err := client.GetCollections(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetCollections: %v", err)
	}
	if len(collections) != 2 {
		t.Fatalf("collections = %#v", collections)
	}
	if collections[0].Handle != "rings" || collections[0].Image != "https://cdn.example.com/rings.jpg" {
		t.Fatalf("first collection = %#v", collections[0])
	}
	if collections[1].Handle != "bands" {
		t.Fatalf("second collection = %#v", collections[1])
	}
}

func TestGetTopSellersUsesBestSellingSort(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeGraphQLRequest(t, r)
		if !strings.Contains(req.Query, "sortKey: BEST_SELLING") {
			t.Errorf("query missing best selling sort:\n%s", req.Query)
		}
		if req.Variables["first"] != float64(4) {
			t.Errorf("first variable = %v", req.Variables["first"])
		}
		writeGraphQLData(t, w, `{"products": {"edges": [{"node": `+sampleProductNode+`}]}}`)
	}))
	defer srv.Close()

	client := newTestShopClient(t, srv, "sf-token")
	list, err := client.GetTopSellers(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetTopSellers: %v", err)
	}
	if len(list.Products) != 1 || list.Source != "storefront" {
		t.Fatalf("list = %#v", list)
	}
}

func TestGraphQLErrorsSurfaceAsBadGateway(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": null, "errors": [{"message": "field does not exist"}]}`))
	}))
	defer srv.Close()

	client := newTestShopClient(t, srv, "sf-token")
	_, err := client.Storefront(context.Background(), "query { shop { name } }", nil)
	apiErr, matched := err.(*APIError)
	if !matched || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("err = %v, want 502 APIError", err)
	}
}

func TestStorefrontProxyRequiresQuery(t *testing.T) {
	t.Parallel()

	client := newTestShopClient(t, httptest.NewUnstartedServer(nil), "sf-token")
	_, err := client.StorefrontProxy(context.Background(), "", nil)
	apiErr, matched := err.(*APIError)
	if !matched || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400 APIError", err)
	}
}

func TestStorefrontRequiresCredentials(t *testing.T) {
	t.Parallel()

	client := newTestShopClient(t, httptest.NewUnstartedServer(nil), "")
	_, err := client.Storefront(context.Background(), "query { shop { name } }", nil)
	apiErr, matched := err.(*APIError)
	if !matched || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("err = %v, want 502 APIError", err)
	}
}
