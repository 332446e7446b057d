package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Default endpoint paths, relative to the base URL.
const (
	DefaultLoginPath   = "accounts/login/"
	DefaultRefreshPath = "accounts/login/refresh/"
	DefaultTimeout     = 15 * time.Second
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithBaseTransport sets the transport under the auth decorator.
// If not set, http.DefaultTransport is used.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.base = rt
	}
}

// WithTimeout sets the per-request timeout, including a refresh and replay.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger. If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records request metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracerProvider enables request spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracerProvider = tp
	}
}

// WithNavigator sets what happens after a failed refresh cleared the session.
func WithNavigator(n LoginNavigator) Option {
	return func(c *Client) {
		c.navigator = n
	}
}

// WithRefreshPath overrides the refresh endpoint path.
func WithRefreshPath(p string) Option {
	return func(c *Client) {
		c.refreshPath = p
	}
}

// WithLoginPath overrides the login endpoint path.
func WithLoginPath(p string) Option {
	return func(c *Client) {
		c.loginPath = p
	}
}

// WithRefresher replaces the HTTP refresher, mainly for tests.
func WithRefresher(r Refresher) Option {
	return func(c *Client) {
		c.refresher = r
	}
}
