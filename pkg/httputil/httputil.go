// Package httputil provides shared HTTP client construction utilities for
// the engine. It centralizes timeout defaults so every outbound caller —
// generation providers, webhook deliveries — uses consistent configuration.
package httputil

import (
	"net/http"
	"time"
)

// Standard timeout defaults used across the engine.
const (
	// DefaultProviderTimeout is the HTTP timeout for a single request/poll
	// to an image/video generation backend. Individual workers additionally
	// wrap the whole exchange in their own wall-clock budget, since a
	// generation job is usually many polls, not one request.
	DefaultProviderTimeout = 60 * time.Second

	// DefaultWebhookTimeout bounds a single webhook delivery POST so a slow
	// subscriber endpoint cannot tie up a delivery worker indefinitely.
	DefaultWebhookTimeout = 10 * time.Second
)

// NewHTTPClient returns an *http.Client configured with the given timeout.
// Pass one of the Default*Timeout constants, or a custom duration.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
