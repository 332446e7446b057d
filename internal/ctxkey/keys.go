// Package ctxkey defines shared context key types used across multiple packages.
// This package should have no dependencies on other internal packages to avoid import cycles.
package ctxkey

// LoggerKey is the context key type for the enriched logger.
// The CLI stores a logger carrying the command name; the HTTP client adds
// request_id to it.
type LoggerKey struct{}

// RequestIDKey is the context key type for the outgoing X-Request-ID.
type RequestIDKey struct{}

// RetriedKey marks a request context whose 401 must not trigger another
// token refresh. The value is a bool.
type RetriedKey struct{}
