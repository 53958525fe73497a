package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ringforgeapp/ringforge/internal/metalrate"
	"github.com/ringforgeapp/ringforge/internal/numeric"
	"github.com/ringforgeapp/ringforge/internal/pricing"
)

const (
	// DefaultCollection scopes catalog listings to the ring builder's
	// product range when the caller does not name one.
	DefaultCollection = "rings"

	DefaultProductLimit = 24
	MaxProductLimit     = 80

	defaultTopSellerLimit = 4
)

// ClampLimit normalizes a requested page size into [1, MaxProductLimit].
func ClampLimit(requested int) int {
	if requested <= 0 {
		return DefaultProductLimit
	}
	if requested > MaxProductLimit {
		return MaxProductLimit
	}
	return requested
}

// Collection is one catalog collection summary.
type Collection struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Handle      string `json:"handle"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// ProductList is a priced product page plus the rate context it was priced
// against.
type ProductList struct {
	Products   []Product                           `json:"products"`
	MetalRates map[metalrate.Metal]*metalrate.Rate `json:"metalRates"`
	Source     string                              `json:"source"`
}

func (c *Client) collectionProductsQuery() string {
	return fmt.Sprintf(`
query CollectionProducts($handle: String!, $first: Int!) {
  collection(handle: $handle) {
    id
    title
    products(first: $first) {
      edges {
        node {
%s        }
      }
    }
  }
}
`, c.mapper.NodeSelection())
}

func (c *Client) allProductsQuery(sortKey string) string {
	sort := ""
	if sortKey != "" {
		sort = ", sortKey: " + sortKey
	}
	return fmt.Sprintf(`
query Products($first: Int!) {
  products(first: $first%s) {
    edges {
      node {
%s      }
    }
  }
}
`, sort, c.mapper.NodeSelection())
}

func (c *Client) productByHandleQuery() string {
	return fmt.Sprintf(`
query ProductByHandle($handle: String!) {
  product(handle: $handle) {
%s  }
}
`, c.mapper.NodeSelection())
}

const collectionsQuery = `
query Collections($first: Int!) {
  collections(first: $first) {
    edges {
      node {
        id
        title
        handle
        description
        image { url }
      }
    }
  }
}
`

// resolveRates fetches live metal rates for pricing; failures surface inside
// the RateSet so listings degrade per metal instead of failing outright.
func (c *Client) resolveRates(ctx context.Context) *metalrate.RateSet {
	if c.rates == nil {
		return &metalrate.RateSet{}
	}
	return c.rates.ResolveAll(ctx, metalrate.ResolveOptions{})
}

type productEdges struct {
	Edges []struct {
		Node json.RawMessage `json:"node"`
	} `json:"edges"`
}

// GetProducts lists priced products, scoped to a collection handle. With
// Storefront API credentials it queries the collection and falls back to the
// full product list when the collection is missing, unless strict is set, in
// which case an unknown collection yields an empty page. Without credentials,
// or when the API call fails, it serves the store's public products.json.
func (c *Client) GetProducts(ctx context.Context, collection string, limit int, strict bool) (*ProductList, error) {
	limit = ClampLimit(limit)
	if collection == "" {
		collection = DefaultCollection
	}
	rates := c.resolveRates(ctx)

	if c.cfg.StorefrontToken != "" {
		list, err := c.storefrontProducts(ctx, collection, limit, strict, rates)
		if err == nil {
			return list, nil
		}
		c.logger.Warn("storefront products query failed, using public endpoint",
			"collection", collection, "error", err)
	}

	return c.publicProducts(ctx, collection, limit, strict, rates)
}

func (c *Client) storefrontProducts(ctx context.Context, collection string, limit int, strict bool, rates *metalrate.RateSet) (*ProductList, error) {
	data, err := c.Storefront(ctx, c.collectionProductsQuery(), map[string]any{
		"handle": collection,
		"first":  limit,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Collection *struct {
			Products productEdges `json:"products"`
		} `json:"collection"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, NewAPIError(http.StatusBadGateway, "failed to decode shopify products", err.Error())
	}

	var edges productEdges
	if payload.Collection != nil {
		edges = payload.Collection.Products
	} else if strict {
		return &ProductList{
			Products:   []Product{},
			MetalRates: ratesMap(rates),
			Source:     "storefront",
		}, nil
	} else {
		// Unknown collection handle: serve the whole catalog instead of
		// an empty page.
		data, err = c.Storefront(ctx, c.allProductsQuery(""), map[string]any{"first": limit})
		if err != nil {
			return nil, err
		}
		var all struct {
			Products productEdges `json:"products"`
		}
		if err := json.Unmarshal(data, &all); err != nil {
			return nil, NewAPIError(http.StatusBadGateway, "failed to decode shopify products", err.Error())
		}
		edges = all.Products
	}

	return &ProductList{
		Products:   c.mapEdges(edges, rates),
		MetalRates: ratesMap(rates),
		Source:     "storefront",
	}, nil
}

func (c *Client) mapEdges(edges productEdges, rates *metalrate.RateSet) []Product {
	products := make([]Product, 0, len(edges.Edges))
	for _, edge := range edges.Edges {
		products = append(products, c.mapper.MapStorefrontProduct(edge.Node, rates))
	}
	return products
}

func ratesMap(rates *metalrate.RateSet) map[metalrate.Metal]*metalrate.Rate {
	return map[metalrate.Metal]*metalrate.Rate{
		metalrate.Gold:     rates.RateFor(metalrate.Gold),
		metalrate.Platinum: rates.RateFor(metalrate.Platinum),
	}
}

// GetProductByHandle fetches one priced product. Missing products surface as
// a 404 APIError.
func (c *Client) GetProductByHandle(ctx context.Context, handle string) (*Product, error) {
	if handle == "" {
		return nil, NewAPIError(http.StatusBadRequest, "product handle is required", nil)
	}
	rates := c.resolveRates(ctx)

	if c.cfg.StorefrontToken != "" {
		product, err := c.storefrontProductByHandle(ctx, handle, rates)
		if err == nil || isNotFound(err) {
			return product, err
		}
		c.logger.Warn("storefront product query failed, using public endpoint",
			"handle", handle, "error", err)
	}

	return c.publicProductByHandle(ctx, handle, rates)
}

func (c *Client) storefrontProductByHandle(ctx context.Context, handle string, rates *metalrate.RateSet) (*Product, error) {
	data, err := c.Storefront(ctx, c.productByHandleQuery(), map[string]any{"handle": handle})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Product json.RawMessage `json:"product"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, NewAPIError(http.StatusBadGateway, "failed to decode shopify product", err.Error())
	}
	if len(payload.Product) == 0 || string(payload.Product) == "null" {
		return nil, NewAPIError(http.StatusNotFound, fmt.Sprintf("product %q not found", handle), nil)
	}

	product := c.mapper.MapStorefrontProduct(payload.Product, rates)
	return &product, nil
}

func isNotFound(err error) bool {
	apiErr, matched := err.(*APIError)
	return matched && apiErr.Status == http.StatusNotFound
}

// GetCollections lists catalog collections, falling back to the public
// /collections.json endpoint when the Storefront API is unavailable.
func (c *Client) GetCollections(ctx context.Context, limit int) ([]Collection, error) {
	limit = ClampLimit(limit)

	if c.cfg.StorefrontToken != "" {
		collections, err := c.storefrontCollections(ctx, limit)
		if err == nil {
			return collections, nil
		}
		c.logger.Warn("storefront collections query failed, using public endpoint", "error", err)
	}

	return c.publicCollections(ctx, limit)
}

func (c *Client) storefrontCollections(ctx context.Context, limit int) ([]Collection, error) {
	data, err := c.Storefront(ctx, collectionsQuery, map[string]any{"first": limit})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Collections struct {
			Edges []struct {
				Node struct {
					ID          string     `json:"id"`
					Title       string     `json:"title"`
					Handle      string     `json:"handle"`
					Description string     `json:"description"`
					Image       *imageNode `json:"image"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"collections"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, NewAPIError(http.StatusBadGateway, "failed to decode shopify collections", err.Error())
	}

	collections := make([]Collection, 0, len(payload.Collections.Edges))
	seen := make(map[string]bool)
	for _, edge := range payload.Collections.Edges {
		node := edge.Node
		if node.Handle == "" || seen[node.Handle] {
			continue
		}
		seen[node.Handle] = true
		image := ""
		if node.Image != nil {
			image = node.Image.URL
		}
		collections = append(collections, Collection{
			ID:          node.ID,
			Title:       node.Title,
			Handle:      node.Handle,
			Description: node.Description,
			Image:       image,
		})
	}
	return collections, nil
}

// GetTopSellers lists best-selling priced products.
func (c *Client) GetTopSellers(ctx context.Context, limit int) (*ProductList, error) {
	if limit <= 0 {
		limit = defaultTopSellerLimit
	}
	limit = ClampLimit(limit)
	rates := c.resolveRates(ctx)

	if c.cfg.StorefrontToken != "" {
		list, err := c.storefrontTopSellers(ctx, limit, rates)
		if err == nil {
			return list, nil
		}
		c.logger.Warn("storefront top sellers query failed, using public endpoint", "error", err)
	}

	return c.publicProducts(ctx, "", limit, false, rates)
}

func (c *Client) storefrontTopSellers(ctx context.Context, limit int, rates *metalrate.RateSet) (*ProductList, error) {
	data, err := c.Storefront(ctx, c.allProductsQuery("BEST_SELLING"), map[string]any{"first": limit})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Products productEdges `json:"products"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, NewAPIError(http.StatusBadGateway, "failed to decode shopify products", err.Error())
	}
	return &ProductList{
		Products:   c.mapEdges(payload.Products, rates),
		MetalRates: ratesMap(rates),
		Source:     "storefront",
	}, nil
}

// Public JSON endpoint shapes (/products.json, /collections.json). These are
// the theme endpoints, so option values live on option1..option3 and prices
// come back in minor units on some stores.

type publicImage struct {
	Src string `json:"src"`
}

type publicOption struct {
	Name     string   `json:"name"`
	Position int      `json:"position"`
	Values   []string `json:"values"`
}

type publicVariant struct {
	ID        json.Number `json:"id"`
	Title     string      `json:"title"`
	Option1   string      `json:"option1"`
	Option2   string      `json:"option2"`
	Option3   string      `json:"option3"`
	SKU       string      `json:"sku"`
	Price     json.Number `json:"price"`
	Available bool        `json:"available"`
}

type publicProduct struct {
	ID          json.Number     `json:"id"`
	Title       string          `json:"title"`
	Handle      string          `json:"handle"`
	BodyHTML    string          `json:"body_html"`
	ProductType string          `json:"product_type"`
	Tags        json.RawMessage `json:"tags"`
	Images      []publicImage   `json:"images"`
	Options     []publicOption  `json:"options"`
	Variants    []publicVariant `json:"variants"`
}

func (c *Client) publicProducts(ctx context.Context, collection string, limit int, strict bool, rates *metalrate.RateSet) (*ProductList, error) {
	path := "/products.json"
	if collection != "" {
		path = fmt.Sprintf("/collections/%s/products.json", url.PathEscape(collection))
	}

	var payload struct {
		Products []publicProduct `json:"products"`
	}
	err := c.publicGET(ctx, path, url.Values{"limit": []string{strconv.Itoa(limit)}}, &payload)
	if err != nil && collection != "" && isNotFound(err) && strict {
		// Collection pages 404 when the handle does not exist.
		return &ProductList{
			Products:   []Product{},
			MetalRates: ratesMap(rates),
			Source:     "public",
		}, nil
	}
	if err != nil && collection != "" && !strict {
		err = c.publicGET(ctx, "/products.json", url.Values{"limit": []string{strconv.Itoa(limit)}}, &payload)
	}
	if err != nil {
		return nil, err
	}

	products := make([]Product, 0, len(payload.Products))
	for _, raw := range payload.Products {
		products = append(products, c.mapPublicProduct(raw, rates))
	}
	return &ProductList{
		Products:   products,
		MetalRates: ratesMap(rates),
		Source:     "public",
	}, nil
}

func (c *Client) publicProductByHandle(ctx context.Context, handle string, rates *metalrate.RateSet) (*Product, error) {
	var payload struct {
		Product *publicProduct `json:"product"`
	}
	err := c.publicGET(ctx, fmt.Sprintf("/products/%s.json", url.PathEscape(handle)), nil, &payload)
	if err != nil {
		if isNotFound(err) {
			return nil, NewAPIError(http.StatusNotFound, fmt.Sprintf("product %q not found", handle), nil)
		}
		return nil, err
	}
	if payload.Product == nil {
		return nil, NewAPIError(http.StatusNotFound, fmt.Sprintf("product %q not found", handle), nil)
	}
	product := c.mapPublicProduct(*payload.Product, rates)
	return &product, nil
}

func (c *Client) publicCollections(ctx context.Context, limit int) ([]Collection, error) {
	var payload struct {
		Collections []struct {
			ID          json.Number  `json:"id"`
			Title       string       `json:"title"`
			Handle      string       `json:"handle"`
			Description string       `json:"description"`
			Image       *publicImage `json:"image"`
		} `json:"collections"`
	}
	if err := c.publicGET(ctx, "/collections.json", url.Values{"limit": []string{strconv.Itoa(limit)}}, &payload); err != nil {
		return nil, err
	}

	collections := make([]Collection, 0, len(payload.Collections))
	seen := make(map[string]bool)
	for _, node := range payload.Collections {
		if node.Handle == "" || seen[node.Handle] {
			continue
		}
		seen[node.Handle] = true
		image := ""
		if node.Image != nil {
			image = node.Image.Src
		}
		collections = append(collections, Collection{
			ID:          node.ID.String(),
			Title:       node.Title,
			Handle:      node.Handle,
			Description: node.Description,
			Image:       image,
		})
	}
	return collections, nil
}

// mapPublicProduct converts a public products.json entry. No metafields are
// exposed there, so variants keep their catalog price; metal detection still
// runs so the UI can group options.
func (c *Client) mapPublicProduct(raw publicProduct, rates *metalrate.RateSet) Product {
	options := make([]ProductOption, 0, len(raw.Options))
	optionNames := make([]string, 0, len(raw.Options))
	for _, option := range raw.Options {
		options = append(options, ProductOption{Name: option.Name, Values: option.Values})
		optionNames = append(optionNames, option.Name)
	}

	var images []string
	var media []MediaItem
	for i, image := range raw.Images {
		if item := makeMediaItem(fmt.Sprintf("img-%d", i), "image", image.Src, image.Src, raw.Title, ""); item != nil {
			media = append(media, *item)
			images = append(images, item.Src)
		}
	}

	variants := make([]Variant, 0, len(raw.Variants))
	for _, rawVariant := range raw.Variants {
		variants = append(variants, c.mapPublicVariant(rawVariant, optionNames, rates))
	}

	primary := primaryVariant(variants)
	amount := 0.0
	currency := "USD"
	merchandiseID := ""
	var productPricing *pricing.VariantPricing
	if primary != nil {
		amount = primary.PriceAmount
		currency = primary.CurrencyCode
		merchandiseID = primary.ID
		pricingCopy := primary.Pricing
		productPricing = &pricingCopy
	}

	image := ""
	if len(images) > 0 {
		image = images[0]
	}

	return Product{
		ID:              raw.ID.String(),
		Title:           raw.Title,
		Description:     stripTags(raw.BodyHTML),
		DescriptionHTML: raw.BodyHTML,
		Handle:          raw.Handle,
		ProductType:     raw.ProductType,
		Tags:            decodePublicTags(raw.Tags),
		Image:           image,
		Images:          images,
		Media:           media,
		MerchandiseID:   merchandiseID,
		PriceAmount:     amount,
		CurrencyCode:    currency,
		Price:           formatAmountLabel(amount, currency),
		Pricing:         productPricing,
		MetalRates:      ratesMap(rates),
		Options:         options,
		Variants:        variants,
	}
}

func (c *Client) mapPublicVariant(raw publicVariant, optionNames []string, rates *metalrate.RateSet) Variant {
	var selected []pricing.SelectedOption
	for i, value := range []string{raw.Option1, raw.Option2, raw.Option3} {
		if value == "" || i >= len(optionNames) {
			continue
		}
		selected = append(selected, pricing.SelectedOption{Name: optionNames[i], Value: value})
	}

	amount := publicAmount(raw.Price)
	variantPricing := pricing.BuildVariantPricing(pricing.Config{}, selected, rates, amount, "USD")
	display := variantPricing.DisplayAmount()

	return Variant{
		ID:               raw.ID.String(),
		Title:            raw.Title,
		AvailableForSale: raw.Available,
		SKU:              raw.SKU,
		MetalType:        variantPricing.MetalType,
		MetalLabel:       variantPricing.MetalLabel,
		PriceAmount:      display,
		CurrencyCode:     "USD",
		Price:            formatAmountLabel(display, "USD"),
		SelectedOptions:  selected,
		Pricing:          variantPricing,
	}
}

// publicAmount parses a public-endpoint price. The theme ajax endpoints
// return integer cents while products.json returns decimal strings; integers
// above a sanity threshold are treated as minor units.
func publicAmount(value json.Number) float64 {
	parsed := numeric.ToNumber(value)
	if parsed == nil {
		return 0
	}
	amount := *parsed
	if amount == float64(int64(amount)) && !strings.Contains(value.String(), ".") && amount >= 100000 {
		amount = amount / 100
	}
	return numeric.RoundMoney(amount)
}

func decodePublicTags(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil && joined != "" {
		parts := strings.Split(joined, ",")
		tags := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				tags = append(tags, trimmed)
			}
		}
		return tags
	}
	return nil
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(html string) string {
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(html, " "))
}
