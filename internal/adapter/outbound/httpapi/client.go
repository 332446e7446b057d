// Package httpapi is the authenticated HTTP client of the storefront backend.
//
// Every request goes through AuthTransport, which attaches the bearer token
// and transparently recovers from one expired access token per request.
// Client adds JSON encoding, error mapping and the typed endpoint methods.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
	"github.com/Sentinel-Gate/storefront/internal/port/outbound"
)

const tracerName = "github.com/Sentinel-Gate/storefront/internal/adapter/outbound/httpapi"

// maxResponseBytes caps decoded response bodies.
const maxResponseBytes = 8 << 20

// Client talks to the storefront REST backend.
type Client struct {
	baseURL     *url.URL
	loginPath   string
	refreshPath string
	timeout     time.Duration

	base           http.RoundTripper
	tracerProvider trace.TracerProvider
	metrics        *Metrics
	navigator      LoginNavigator
	refresher      Refresher
	logger         *slog.Logger

	httpClient *http.Client
	validate   *validator.Validate
}

var (
	_ outbound.CartAPI     = (*Client)(nil)
	_ outbound.WishlistAPI = (*Client)(nil)
)

// NewClient creates a client for the backend at baseURL. tokens supplies and
// receives the credential pair; *session.Session implements it.
func NewClient(baseURL string, tokens TokenStore, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		baseURL:     u,
		loginPath:   DefaultLoginPath,
		refreshPath: DefaultRefreshPath,
		timeout:     DefaultTimeout,
		logger:      slog.Default(),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.base == nil {
		c.base = http.DefaultTransport
	}
	if c.tracerProvider == nil {
		c.tracerProvider = noop.NewTracerProvider()
	}
	tracer := c.tracerProvider.Tracer(tracerName)

	if c.refresher == nil {
		c.refresher = NewHTTPRefresher(
			c.resolve(c.refreshPath, nil),
			&http.Client{Transport: c.base, Timeout: c.timeout},
			tracer,
		)
	}

	c.httpClient = &http.Client{
		Timeout: c.timeout,
		Transport: &AuthTransport{
			Base:      c.base,
			Tokens:    tokens,
			Refresher: c.refresher,
			Navigator: c.navigator,
			Metrics:   c.metrics,
			Tracer:    tracer,
			Logger:    c.logger,
		},
	}
	return c, nil
}

// HTTPClient returns the authenticated *http.Client for requests the typed
// methods do not cover.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// BaseURL returns the normalized backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// resolve joins a relative API path to the base URL.
func (c *Client) resolve(path string, query url.Values) string {
	ref := &url.URL{Path: strings.TrimPrefix(path, "/")}
	if len(query) > 0 {
		ref.RawQuery = query.Encode()
	}
	return c.baseURL.ResolveReference(ref).String()
}

// do performs a JSON request. body and result may be nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, result any) error {
	var bodyReader io.Reader
	contentType := ""
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
		contentType = "application/json"
	}

	respBody, err := c.send(ctx, method, path, query, contentType, bodyReader, "application/json")
	if err != nil {
		return err
	}

	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

// send performs a request with a prepared body and returns the response body
// of a 2xx answer. Other statuses become *APIError.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader, accept string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.resolve(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", accept)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: httpResp.StatusCode,
			Method:     method,
			Path:       path,
			Message:    errorMessage(respBody),
		}
	}
	return respBody, nil
}

// errorMessage extracts the backend's error text from a JSON body.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	switch {
	case payload.Error != "":
		return payload.Error
	case payload.Detail != "":
		return payload.Detail
	default:
		return payload.Message
	}
}

func productPath(format string, id catalog.ProductID) string {
	return fmt.Sprintf(format, id.String())
}
