package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sentinel-Gate/storefront/internal/ctxkey"
	"github.com/Sentinel-Gate/storefront/internal/domain/session"
)

// TokenStore is the part of the session the transport reads and writes.
// *session.Session implements it.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	UpdateAccess(ctx context.Context, usedRefresh, access string) error
	Clear(ctx context.Context) error
}

// LoginNavigator sends the user to the login entry point after the session
// was cleared.
type LoginNavigator interface {
	NavigateToLogin(ctx context.Context, cause error)
}

// NavigatorFunc adapts a function to LoginNavigator.
type NavigatorFunc func(ctx context.Context, cause error)

// NavigateToLogin calls f.
func (f NavigatorFunc) NavigateToLogin(ctx context.Context, cause error) { f(ctx, cause) }

// WithoutRefresh marks ctx so that a 401 on requests made with it is returned
// as is instead of triggering a token refresh. Login uses it: a rejected
// password must not cost a refresh.
func WithoutRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxkey.RetriedKey{}, true)
}

func isRetried(ctx context.Context) bool {
	v, _ := ctx.Value(ctxkey.RetriedKey{}).(bool)
	return v
}

// WithRequestID fixes the X-Request-ID sent with requests made under ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkey.RequestIDKey{}, id)
}

// ContextWithLogger stores an enriched logger in ctx for the transport to use.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxkey.LoggerKey{}, logger)
}

// LoggerFromContext retrieves the enriched logger from context.
// Returns fallback if no logger is in context.
func LoggerFromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return fallback
}

// TokenFingerprint returns a short non-reversible id for a token, for logs.
func TokenFingerprint(token string) string {
	if token == "" {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64String(token), 16)
}

// AuthTransport is an http.RoundTripper that attaches the bearer token and
// recovers from an expired access token.
//
// On a 401 for a request that has not been retried yet it refreshes the
// access token once and replays the request once. If the refresh fails the
// session is cleared, the navigator is invoked, and the refresh error is
// returned. Concurrent 401s each refresh on their own; there is no
// single-flight.
type AuthTransport struct {
	Base      http.RoundTripper
	Tokens    TokenStore
	Refresher Refresher
	Navigator LoginNavigator
	Metrics   *Metrics
	Tracer    trace.Tracer
	Logger    *slog.Logger
}

func (t *AuthTransport) tracer() trace.Tracer {
	if t.Tracer != nil {
		return t.Tracer
	}
	return noop.NewTracerProvider().Tracer("")
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	requestID, _ := ctx.Value(ctxkey.RequestIDKey{}).(string)
	if requestID == "" {
		requestID = req.Header.Get("X-Request-ID")
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}
	logger := LoggerFromContext(ctx, t.Logger)
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("request_id", requestID)

	r := req.Clone(ctx)
	r.Header.Set("X-Request-ID", requestID)
	if err := ensureReplayable(req, r); err != nil {
		return nil, err
	}

	if tok := t.Tokens.AccessToken(); session.IsPlausible(tok) {
		r.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := t.send(r, logger)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || isRetried(ctx) {
		return resp, nil
	}

	refreshToken := t.Tokens.RefreshToken()
	if !session.IsPresent(refreshToken) {
		logger.Debug("401 without refresh token, returning to caller", "path", r.URL.Path)
		return resp, nil
	}

	logger.Debug("access token rejected, refreshing",
		"path", r.URL.Path, "refresh_fp", TokenFingerprint(refreshToken))
	newAccess, refreshErr := t.Refresher.Refresh(ctx, refreshToken)
	t.Metrics.observeRefresh(refreshErr == nil)
	if refreshErr != nil {
		drainAndClose(resp)
		// A caller that gave up is not a rejected refresh token.
		if ctx.Err() != nil {
			return nil, refreshErr
		}
		t.forceLogout(ctx, logger, refreshErr)
		return nil, refreshErr
	}

	drainAndClose(resp)
	if err := t.Tokens.UpdateAccess(ctx, refreshToken, newAccess); err != nil {
		// The session ended or was replaced while the refresh was in flight.
		if errors.Is(err, session.ErrSessionChanged) {
			logger.Debug("session changed during refresh, not replaying", "path", r.URL.Path)
			return nil, &RefreshError{Cause: err}
		}
		logger.Warn("failed to persist refreshed access token", "error", err)
	}

	replay := r.Clone(WithoutRefresh(ctx))
	if r.GetBody != nil {
		body, err := r.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replay body: %w", err)
		}
		replay.Body = body
	}
	replay.Header.Set("Authorization", "Bearer "+newAccess)

	t.Metrics.observeReplay()
	logger.Debug("replaying request with refreshed token",
		"path", r.URL.Path, "access_fp", TokenFingerprint(newAccess))
	return t.send(replay, logger)
}

// send performs one round trip with tracing, metrics and logging.
func (t *AuthTransport) send(r *http.Request, logger *slog.Logger) (*http.Response, error) {
	ctx, span := t.tracer().Start(r.Context(), "storefront.http "+r.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
			attribute.Bool("storefront.replay", isRetried(r.Context())),
		))
	defer span.End()

	start := time.Now()
	resp, err := t.base().RoundTrip(r.WithContext(ctx))
	elapsed := time.Since(start)

	if err != nil {
		t.Metrics.observeRequest(r.Method, 0, err, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Debug("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		return nil, err
	}

	t.Metrics.observeRequest(r.Method, resp.StatusCode, nil, elapsed)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 500 {
		span.SetStatus(codes.Error, resp.Status)
	}
	logger.Debug("request done",
		"method", r.Method, "path", r.URL.Path, "status", resp.StatusCode, "duration", elapsed)
	return resp, nil
}

// forceLogout clears both tokens and sends the user to login.
func (t *AuthTransport) forceLogout(ctx context.Context, logger *slog.Logger, cause error) {
	t.Metrics.observeForcedLogout()
	logger.Warn("token refresh failed, clearing session", "error", cause)

	clearCtx := context.WithoutCancel(ctx)
	if err := t.Tokens.Clear(clearCtx); err != nil {
		logger.Error("failed to clear session after refresh failure", "error", err)
	}
	if t.Navigator != nil {
		t.Navigator.NavigateToLogin(clearCtx, cause)
	}
}

// ensureReplayable makes sure clone can produce its body a second time.
// Requests built from bytes, strings or readers of those already carry
// GetBody; other bodies are buffered once.
func ensureReplayable(orig, clone *http.Request) error {
	if orig.Body == nil || orig.Body == http.NoBody || orig.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(orig.Body)
	_ = orig.Body.Close()
	if err != nil {
		return fmt.Errorf("buffer request body: %w", err)
	}
	clone.Body = io.NopCloser(bytes.NewReader(data))
	clone.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// IsSessionExpired reports whether err means the session ended and the user
// must log in again.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrRefreshFailed)
}
