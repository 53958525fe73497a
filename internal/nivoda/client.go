package nivoda

// Package nivoda is a client for the Nivoda diamond inventory GraphQL API
// with cached token auth and query-shape fallback for schema drift.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ringforgeapp/ringforge/internal/cache"
	"github.com/ringforgeapp/ringforge/internal/logging"
	"github.com/ringforgeapp/ringforge/internal/numeric"
	"github.com/ringforgeapp/ringforge/internal/observability"
)

const (
	tokenCacheKey = "nivoda"
	tokenTTL      = 6 * time.Hour
)

var (
	// ErrMissingCredentials means neither an API key nor username/password
	// auth is configured. Fatal for the calling request.
	ErrMissingCredentials = errors.New("missing nivoda credentials")
	// ErrAuthFailed means the authenticate call returned no token.
	ErrAuthFailed = errors.New("unable to authenticate with nivoda")
	// ErrNotFound means a lookup by id matched no diamond.
	ErrNotFound = errors.New("diamond not found")
	// ErrUnexpectedResponse means the API responded without the expected
	// diamonds_by_query payload.
	ErrUnexpectedResponse = errors.New("unexpected nivoda response structure")
)

// GraphQLError is a schema-level rejection from the API. It triggers a retry
// with the next query-shape candidate; transport errors never do.
type GraphQLError struct {
	Errors []map[string]any
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("nivoda api returned %d graphql errors", len(e.Errors))
}

// Certificate is the grading summary attached to a diamond.
type Certificate struct {
	ID              string   `json:"id"`
	Lab             string   `json:"lab"`
	Shape           string   `json:"shape"`
	CertNumber      string   `json:"certNumber"`
	Carats          *float64 `json:"carats"`
	Color           string   `json:"color"`
	Clarity         string   `json:"clarity"`
	Cut             string   `json:"cut"`
	Polish          string   `json:"polish"`
	Symmetry        string   `json:"symmetry"`
	Table           *float64 `json:"table"`
	DepthPercentage *float64 `json:"depthPercentage"`
	FloInt          string   `json:"floInt"`
	Labgrown        bool     `json:"labgrown"`
}

// Diamond is one normalized inventory item. Price is in major currency units
// for display; PriceRaw preserves the upstream minor-unit value.
type Diamond struct {
	ID          string      `json:"id"`
	Price       *float64    `json:"price"`
	PriceRaw    *float64    `json:"priceRaw"`
	Discount    *float64    `json:"discount"`
	Certificate Certificate `json:"certificate"`
	Media       []MediaItem `json:"media"`
}

// SearchResult is one page of a filtered diamond search.
type SearchResult struct {
	Items      []Diamond `json:"items"`
	TotalCount int       `json:"totalCount"`
}

// Config holds the client's connection settings. APIKey takes precedence over
// username/password auth when both are set.
type Config struct {
	APIURL   string
	APIKey   string
	Username string
	Password string
}

type Client struct {
	cfg        Config
	tokenCache cache.Provider
	httpClient *http.Client
	logger     *slog.Logger
	authGroup  singleflight.Group
}

// NewClient builds a diamond inventory client. The token cache is injected so
// tests and deployments control where tokens live (memory or redis).
func NewClient(cfg Config, tokenCache cache.Provider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		cfg:        cfg,
		tokenCache: tokenCache,
		httpClient: observability.NewHTTPClient(observability.DefaultUpstreamTimeout),
		logger:     logger,
	}
}

// Search executes a filtered diamond search.
func (c *Client) Search(ctx context.Context, input SearchInput) (*SearchResult, error) {
	limit := ParseLimit(input.Limit)
	offset := ParseOffset(input.Offset)
	query := BuildFilters(input)

	token, err := c.resolveToken(ctx)
	if err != nil {
		return nil, err
	}

	data, err := c.requestWithFallback(ctx, diamondsQueryCandidates, map[string]any{
		"token":  token,
		"query":  query,
		"limit":  limit,
		"offset": offset,
	})
	if err != nil {
		return nil, err
	}

	payload, ok := readMap(data, "as", "diamonds_by_query")
	if !ok {
		return nil, ErrUnexpectedResponse
	}

	result := &SearchResult{Items: []Diamond{}}
	if total := numeric.ToNumber(payload["total_count"]); total != nil {
		result.TotalCount = int(*total)
	}
	if items, ok := payload["items"].([]any); ok {
		for _, raw := range items {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			result.Items = append(result.Items, buildDiamond(item))
		}
	}
	return result, nil
}

// DiamondByID looks up a single diamond by its stone id.
func (c *Client) DiamondByID(ctx context.Context, id string) (*Diamond, error) {
	if id == "" {
		return nil, fmt.Errorf("diamond id is required")
	}

	token, err := c.resolveToken(ctx)
	if err != nil {
		return nil, err
	}

	data, err := c.requestWithFallback(ctx, diamondByIDQueryCandidates, map[string]any{
		"token": token,
		"query": map[string]any{"stone_ids": []string{id}},
		"limit": 1,
	})
	if err != nil {
		return nil, err
	}

	payload, ok := readMap(data, "as", "diamonds_by_query")
	if !ok {
		return nil, ErrUnexpectedResponse
	}

	items, _ := payload["items"].([]any)
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	item, ok := items[0].(map[string]any)
	if !ok {
		return nil, ErrUnexpectedResponse
	}

	diamond := buildDiamond(item)
	return &diamond, nil
}

// resolveToken returns the static API key when configured, else a cached
// token, else authenticates. Refreshes for the same cache key are collapsed
// into a single in-flight authenticate call.
func (c *Client) resolveToken(ctx context.Context) (string, error) {
	if c.cfg.APIKey != "" {
		return c.cfg.APIKey, nil
	}

	key := cache.TokenKey(tokenCacheKey)
	if cached, err := c.tokenCache.Get(ctx, key); err == nil && cached != "" {
		return cached, nil
	}

	if c.cfg.Username == "" || c.cfg.Password == "" {
		return "", ErrMissingCredentials
	}

	token, err, _ := c.authGroup.Do(key, func() (any, error) {
		return c.authenticate(ctx, key)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (c *Client) authenticate(ctx context.Context, cacheKey string) (string, error) {
	data, err := c.requestWithFallback(ctx, authQueryCandidates, map[string]any{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
	})
	if err != nil {
		return "", err
	}

	token := extractToken(data)
	if token == "" {
		return "", ErrAuthFailed
	}

	if err := c.tokenCache.Set(ctx, cacheKey, token, tokenTTL); err != nil {
		logging.FromContext(ctx, c.logger).Warn("failed to cache nivoda token", "error", err)
	}
	return token, nil
}

func extractToken(data map[string]any) string {
	for _, path := range []string{
		"authenticate.username_and_password.token",
		"authenticate.token",
		"auth.token",
	} {
		if value, ok := numeric.ReadPath(data, path); ok {
			if token, ok := value.(string); ok && token != "" {
				return token
			}
		}
	}
	return ""
}

// requestWithFallback tries each query-shape candidate in order, moving to
// the next only on a GraphQL schema error. Transport failures abort
// immediately.
func (c *Client) requestWithFallback(ctx context.Context, queries []string, variables map[string]any) (map[string]any, error) {
	var lastErr error
	for i, query := range queries {
		data, err := c.request(ctx, query, variables)
		if err == nil {
			return data, nil
		}

		var gqlErr *GraphQLError
		if !errors.As(err, &gqlErr) {
			return nil, err
		}
		lastErr = err
		if i < len(queries)-1 {
			logging.FromContext(ctx, c.logger).Debug("nivoda query shape rejected, trying next candidate",
				"candidate", i,
				"error", err,
			)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no nivoda query candidates configured")
	}
	return nil, lastErr
}

func (c *Client) request(ctx context.Context, query string, variables map[string]any) (map[string]any, error) {
	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode nivoda request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build nivoda request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach nivoda: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data   map[string]any   `json:"data"`
		Errors []map[string]any `json:"errors"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&envelope)

	// GraphQL errors can arrive with any HTTP status; they take precedence
	// over the status code so schema drift is distinguishable from outages.
	if len(envelope.Errors) > 0 {
		return nil, &GraphQLError{Errors: envelope.Errors}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("nivoda returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode nivoda response: %w", decodeErr)
	}

	return envelope.Data, nil
}

func buildDiamond(item map[string]any) Diamond {
	diamondPayload, _ := item["diamond"].(map[string]any)

	record := Diamond{
		ID:       stringValue(item["id"]),
		PriceRaw: numeric.ToNumber(item["price"]),
		Discount: numeric.ToNumber(item["discount"]),
		Media:    buildMediaList(diamondPayload),
	}
	if record.PriceRaw != nil {
		price := numeric.RoundMoney(*record.PriceRaw / 100)
		record.Price = &price
	}
	if record.ID == "" {
		record.ID = stringValue(diamondPayload["id"])
	}

	if cert, ok := diamondPayload["certificate"].(map[string]any); ok {
		record.Certificate = Certificate{
			ID:              stringValue(cert["id"]),
			Lab:             stringValue(cert["lab"]),
			Shape:           stringValue(cert["shape"]),
			CertNumber:      stringValue(cert["certNumber"]),
			Carats:          numeric.ToNumber(cert["carats"]),
			Color:           stringValue(cert["color"]),
			Clarity:         stringValue(cert["clarity"]),
			Cut:             stringValue(cert["cut"]),
			Polish:          stringValue(cert["polish"]),
			Symmetry:        stringValue(cert["symmetry"]),
			Table:           numeric.ToNumber(cert["table"]),
			DepthPercentage: numeric.ToNumber(cert["depthPercentage"]),
			FloInt:          stringValue(cert["floInt"]),
			Labgrown:        boolValue(cert["labgrown"]),
		}
	}

	return record
}

func readMap(data map[string]any, path ...string) (map[string]any, bool) {
	current := data
	for _, segment := range path {
		next, ok := current[segment].(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func stringValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}

func boolValue(value any) bool {
	parsed, _ := value.(bool)
	return parsed
}
