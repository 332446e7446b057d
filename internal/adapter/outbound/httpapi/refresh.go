package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// HTTPRefresher posts the refresh token to the backend's refresh endpoint.
// It must use a transport without the auth decorator: the refresh call is
// sent without a bearer token and its own 401 must not recurse.
type HTTPRefresher struct {
	url    string
	client *http.Client
	tracer trace.Tracer
}

// NewHTTPRefresher creates a refresher for the absolute endpoint url.
func NewHTTPRefresher(endpoint string, client *http.Client, tracer trace.Tracer) *HTTPRefresher {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &HTTPRefresher{url: endpoint, client: client, tracer: tracer}
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

// Refresh returns the new access token. Only a 200 response with a non-empty
// access token counts as success; every other outcome is a *RefreshError.
func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (string, error) {
	ctx, span := r.tracer.Start(ctx, "storefront.token_refresh", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	access, err := r.refresh(ctx, refreshToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		return "", err
	}
	return access, nil
}

func (r *HTTPRefresher) refresh(ctx context.Context, refreshToken string) (string, error) {
	body, err := json.Marshal(refreshRequest{Refresh: refreshToken})
	if err != nil {
		return "", &RefreshError{Cause: fmt.Errorf("marshal refresh request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", &RefreshError{Cause: fmt.Errorf("create refresh request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &RefreshError{Cause: err}
	}
	defer resp.Body.Close()

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", &RefreshError{StatusCode: resp.StatusCode}
	}

	var out refreshResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", &RefreshError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("decode refresh response: %w", err)}
	}
	if out.Access == "" {
		return "", &RefreshError{StatusCode: resp.StatusCode, Cause: errors.New("refresh response without access token")}
	}
	return out.Access, nil
}
