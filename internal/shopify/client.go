package shopify

// Package shopify talks to the Shopify Storefront and Admin GraphQL APIs and
// the public no-token JSON endpoints, and maps raw catalog data into priced
// storefront products.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ringforgeapp/ringforge/internal/metalrate"
	"github.com/ringforgeapp/ringforge/internal/observability"
)

// APIError is a failure talking to Shopify, carrying the HTTP status the
// surrounding handler should surface.
type APIError struct {
	Status  int
	Message string
	Details any
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError builds an APIError; details may be nil.
func NewAPIError(status int, message string, details any) *APIError {
	return &APIError{Status: status, Message: message, Details: details}
}

// Config holds the store connection settings. Either token may be empty, in
// which case the affected calls fall back to the public endpoints or fail.
type Config struct {
	StoreDomain     string
	StorefrontToken string
	AdminToken      string
	APIVersion      string
}

// RateResolver supplies resolved metal rates for product pricing, satisfied
// by *metalrate.Resolver.
type RateResolver interface {
	ResolveAll(ctx context.Context, opts metalrate.ResolveOptions) *metalrate.RateSet
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	mapper     *ProductMapper
	rates      RateResolver
}

func NewClient(cfg Config, mapper *ProductMapper, rates RateResolver, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		cfg:        cfg,
		httpClient: observability.NewHTTPClient(observability.DefaultUpstreamTimeout),
		logger:     logger,
		mapper:     mapper,
		rates:      rates,
	}
}

func (c *Client) storefrontURL() string {
	return fmt.Sprintf("https://%s/api/%s/graphql.json", c.cfg.StoreDomain, c.cfg.APIVersion)
}

func (c *Client) adminURL() string {
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", c.cfg.StoreDomain, c.cfg.APIVersion)
}

// Storefront executes a Storefront API GraphQL request.
func (c *Client) Storefront(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	if c.cfg.StoreDomain == "" || c.cfg.StorefrontToken == "" {
		return nil, NewAPIError(http.StatusBadGateway, "missing shopify storefront credentials", nil)
	}
	return c.graphql(ctx, c.storefrontURL(), query, variables, map[string]string{
		"X-Shopify-Storefront-Access-Token": c.cfg.StorefrontToken,
	})
}

// Admin executes an Admin API GraphQL request.
func (c *Client) Admin(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	if c.cfg.StoreDomain == "" || c.cfg.AdminToken == "" {
		return nil, NewAPIError(http.StatusBadGateway, "missing shopify admin credentials", nil)
	}
	return c.graphql(ctx, c.adminURL(), query, variables, map[string]string{
		"X-Shopify-Access-Token": c.cfg.AdminToken,
	})
}

func (c *Client) graphql(ctx context.Context, endpoint, query string, variables map[string]any, headers map[string]string) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode shopify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build shopify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewAPIError(http.StatusBadGateway, "failed to call shopify api", err.Error())
	}
	defer resp.Body.Close()

	var envelope struct {
		Data   json.RawMessage  `json:"data"`
		Errors []map[string]any `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, NewAPIError(http.StatusBadGateway, "failed to decode shopify response", err.Error())
	}
	if len(envelope.Errors) > 0 {
		return nil, NewAPIError(http.StatusBadGateway, "shopify api error", envelope.Errors)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewAPIError(http.StatusBadGateway, fmt.Sprintf("shopify returned status %d", resp.StatusCode), nil)
	}

	return envelope.Data, nil
}

// publicGET fetches one of the store's public JSON endpoints (products.json
// and friends), which need no access token.
func (c *Client) publicGET(ctx context.Context, path string, params url.Values, out any) error {
	if c.cfg.StoreDomain == "" {
		return NewAPIError(http.StatusInternalServerError, "shopify store domain is missing", nil)
	}

	endpoint := fmt.Sprintf("https://%s%s", c.cfg.StoreDomain, path)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build shopify request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewAPIError(http.StatusBadGateway, "failed to call shopify public endpoint", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return NewAPIError(http.StatusNotFound, "shopify resource not found", nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return NewAPIError(http.StatusBadGateway, fmt.Sprintf("shopify returned status %d", resp.StatusCode), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewAPIError(http.StatusBadGateway, "failed to decode shopify response", err.Error())
	}
	return nil
}

// StorefrontProxy forwards an arbitrary Storefront API query. The inbound
// query must be non-empty; validation happens before any network call.
func (c *Client) StorefrontProxy(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	if query == "" {
		return nil, NewAPIError(http.StatusBadRequest, "graphql query is required", nil)
	}
	return c.Storefront(ctx, query, variables)
}
