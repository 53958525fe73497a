package observability

import (
	"net/http"
	"time"

	sentryhttpclient "github.com/getsentry/sentry-go/httpclient"
)

// DefaultUpstreamTimeout applies to every outbound call (Shopify, Nivoda,
// metal rate providers). A timeout surfaces like any other transport failure.
const DefaultUpstreamTimeout = 20 * time.Second

var tracePropagationTargets = []string{
	"integrations.nivoda.net",
	"myshopify.com",
}

func WrapRoundTripper(base http.RoundTripper) http.RoundTripper {
	return sentryhttpclient.NewSentryRoundTripper(
		base,
		sentryhttpclient.WithTracePropagationTargets(tracePropagationTargets),
	)
}

func NewHTTPClient(timeout time.Duration) *http.Client {
	client := &http.Client{
		Transport: WrapRoundTripper(http.DefaultTransport),
	}
	if timeout > 0 {
		client.Timeout = timeout
	}
	return client
}
