package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"github.com/Sentinel-Gate/storefront/internal/domain/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

const (
	oldAccess   = "old-access-token-0001"
	newAccess   = "new-access-token-0002"
	goodRefresh = "refresh-token-0003"
)

// fakeTokens is an in-memory TokenStore that counts writes.
type fakeTokens struct {
	mu      sync.Mutex
	access  string
	refresh string
	updates int
	clears  int
}

func (f *fakeTokens) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access
}

func (f *fakeTokens) RefreshToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refresh
}

func (f *fakeTokens) UpdateAccess(_ context.Context, usedRefresh, access string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refresh == "" || f.refresh != usedRefresh {
		return session.ErrSessionChanged
	}
	f.access = access
	f.updates++
	return nil
}

func (f *fakeTokens) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access, f.refresh = "", ""
	f.clears++
	return nil
}

func (f *fakeTokens) snapshot() (access, refresh string, updates, clears int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access, f.refresh, f.updates, f.clears
}

// backend is a test server with a refresh endpoint and a protected resource.
type backend struct {
	srv          *httptest.Server
	refreshCalls atomic.Int32
	apiCalls     atomic.Int32

	// refreshStatus is the refresh endpoint status; 200 issues newAccess.
	refreshStatus atomic.Int32
	// api handles cart/api/.
	api http.HandlerFunc
}

func newBackend(t *testing.T, api http.HandlerFunc) *backend {
	t.Helper()
	b := &backend{api: api}
	b.refreshStatus.Store(http.StatusOK)
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/login/refresh/", func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		if r.Header.Get("Authorization") != "" {
			t.Errorf("refresh request carried Authorization header")
		}
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh != goodRefresh {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if status := int(b.refreshStatus.Load()); status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"detail":"Token is invalid or expired"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(refreshResponse{Access: newAccess})
	})
	mux.HandleFunc("/cart/api/", func(w http.ResponseWriter, r *http.Request) {
		b.apiCalls.Add(1)
		b.api(w, r)
	})
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

// requireToken answers 401 unless the request carries want.
func requireToken(want string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+want {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Given token not valid for any token type"}`)
			return
		}
		_, _ = io.WriteString(w, `{"items":[],"item_count":0}`)
	}
}

type navigatorRecorder struct {
	calls atomic.Int32
	cause atomic.Value
}

func (n *navigatorRecorder) NavigateToLogin(_ context.Context, cause error) {
	n.calls.Add(1)
	n.cause.Store(cause)
}

func newTestClient(t *testing.T, b *backend, tokens *fakeTokens, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseTransport(b.srv.Client().Transport)}, opts...)
	c, err := NewClient(b.srv.URL, tokens, opts...)
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return c
}

func TestAuthTransport_BearerAttachRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		token  string
		attach bool
	}{
		{"empty", "", false},
		{"literal null", "null", false},
		{"literal undefined", "undefined", false},
		{"exactly ten chars", "0123456789", false},
		{"eleven chars", "0123456789a", true},
		{"real token", oldAccess, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got atomic.Value
			b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				got.Store(r.Header.Get("Authorization"))
				_, _ = io.WriteString(w, `{}`)
			})
			c := newTestClient(t, b, &fakeTokens{access: tt.token})

			if _, err := c.GetCart(context.Background()); err != nil {
				t.Fatalf("GetCart() error: %v", err)
			}
			header, _ := got.Load().(string)
			if tt.attach && header != "Bearer "+tt.token {
				t.Errorf("Authorization = %q, want bearer %q", header, tt.token)
			}
			if !tt.attach && header != "" {
				t.Errorf("Authorization = %q, want none", header)
			}
		})
	}
}

func TestAuthTransport_RefreshesAndReplaysOnce(t *testing.T) {
	t.Parallel()

	var bodies []string
	var mu sync.Mutex
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(data))
		mu.Unlock()
		requireToken(newAccess)(w, r)
	})
	tokens := &fakeTokens{access: oldAccess, refresh: goodRefresh}
	c := newTestClient(t, b, tokens)

	body := strings.NewReader(`{"code":"SAVE10"}`)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, c.resolve("cart/api/apply-coupon/", nil), body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.HTTPClient().Do(req)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	drainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if n := b.refreshCalls.Load(); n != 1 {
		t.Errorf("refresh calls = %d, want 1", n)
	}
	if n := b.apiCalls.Load(); n != 2 {
		t.Errorf("api calls = %d, want 2", n)
	}
	access, refresh, updates, clears := tokens.snapshot()
	if access != newAccess || refresh != goodRefresh {
		t.Errorf("tokens = (%q, %q), want (%q, %q)", access, refresh, newAccess, goodRefresh)
	}
	if updates != 1 || clears != 0 {
		t.Errorf("updates = %d, clears = %d, want 1, 0", updates, clears)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, got := range bodies {
		if got != `{"code":"SAVE10"}` {
			t.Errorf("body of attempt %d = %q, want original payload", i+1, got)
		}
	}
}

func TestAuthTransport_SecondUnauthorizedIsReturned(t *testing.T) {
	t.Parallel()

	b := newBackend(t, requireToken("never-accepted-token"))
	tokens := &fakeTokens{access: oldAccess, refresh: goodRefresh}
	c := newTestClient(t, b, tokens)

	_, err := c.GetCart(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("GetCart() error = %v, want ErrUnauthorized", err)
	}
	if n := b.refreshCalls.Load(); n != 1 {
		t.Errorf("refresh calls = %d, want 1", n)
	}
	if n := b.apiCalls.Load(); n != 2 {
		t.Errorf("api calls = %d, want 2", n)
	}
	if _, _, _, clears := tokens.snapshot(); clears != 0 {
		t.Errorf("clears = %d, want 0", clears)
	}
}

func TestAuthTransport_RefreshFailureClearsSession(t *testing.T) {
	t.Parallel()

	b := newBackend(t, requireToken(newAccess))
	b.refreshStatus.Store(http.StatusUnauthorized)
	tokens := &fakeTokens{access: oldAccess, refresh: goodRefresh}
	nav := &navigatorRecorder{}
	c := newTestClient(t, b, tokens, WithNavigator(nav))

	_, err := c.GetCart(context.Background())
	if !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("GetCart() error = %v, want ErrRefreshFailed", err)
	}
	if !IsSessionExpired(err) {
		t.Errorf("IsSessionExpired(%v) = false, want true", err)
	}
	var refreshErr *RefreshError
	if !errors.As(err, &refreshErr) || refreshErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("error = %v, want *RefreshError with status 401", err)
	}

	access, refresh, _, clears := tokens.snapshot()
	if access != "" || refresh != "" || clears != 1 {
		t.Errorf("tokens = (%q, %q) after %d clears, want both cleared once", access, refresh, clears)
	}
	if n := nav.calls.Load(); n != 1 {
		t.Errorf("navigator calls = %d, want 1", n)
	}
	if n := b.apiCalls.Load(); n != 1 {
		t.Errorf("api calls = %d, want 1", n)
	}
}

func TestAuthTransport_NoRefreshTokenReturnsOriginal401(t *testing.T) {
	t.Parallel()

	for _, refresh := range []string{"", "null", "undefined"} {
		t.Run("refresh="+refresh, func(t *testing.T) {
			t.Parallel()

			b := newBackend(t, requireToken(newAccess))
			tokens := &fakeTokens{access: oldAccess, refresh: refresh}
			nav := &navigatorRecorder{}
			c := newTestClient(t, b, tokens, WithNavigator(nav))

			_, err := c.GetCart(context.Background())
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
				t.Fatalf("GetCart() error = %v, want 401 APIError", err)
			}
			if apiErr.Message != "Given token not valid for any token type" {
				t.Errorf("Message = %q, want server detail", apiErr.Message)
			}
			if n := b.refreshCalls.Load(); n != 0 {
				t.Errorf("refresh calls = %d, want 0", n)
			}
			if _, _, _, clears := tokens.snapshot(); clears != 0 {
				t.Errorf("clears = %d, want 0", clears)
			}
			if n := nav.calls.Load(); n != 0 {
				t.Errorf("navigator calls = %d, want 0", n)
			}
		})
	}
}

func TestAuthTransport_ConcurrentUnauthorizedRefreshIndependently(t *testing.T) {
	t.Parallel()

	var arrived sync.WaitGroup
	arrived.Add(2)
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer "+oldAccess {
			arrived.Done()
			arrived.Wait()
		}
		requireToken(newAccess)(w, r)
	})
	tokens := &fakeTokens{access: oldAccess, refresh: goodRefresh}
	c := newTestClient(t, b, tokens)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetCart(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("GetCart() error: %v", err)
		}
	}
	if n := b.refreshCalls.Load(); n != 2 {
		t.Errorf("refresh calls = %d, want 2", n)
	}
}

type refresherFunc func(ctx context.Context, refreshToken string) (string, error)

func (f refresherFunc) Refresh(ctx context.Context, refreshToken string) (string, error) {
	return f(ctx, refreshToken)
}

func TestAuthTransport_RefreshAfterForcedLogoutDoesNotRevive(t *testing.T) {
	t.Parallel()

	b := newBackend(t, requireToken(newAccess))
	tokens := &fakeTokens{access: oldAccess, refresh: goodRefresh}
	nav := &navigatorRecorder{}

	// The first refresh to start is held until the second one has failed
	// and forced a logout.
	var started atomic.Int32
	failed := make(chan struct{})
	c := newTestClient(t, b, tokens, WithNavigator(nav), WithRefresher(refresherFunc(
		func(ctx context.Context, _ string) (string, error) {
			if started.Add(1) == 1 {
				<-failed
				return newAccess, nil
			}
			return "", &RefreshError{StatusCode: http.StatusUnauthorized}
		})))

	slowErr := make(chan error, 1)
	go func() {
		_, err := c.GetCart(context.Background())
		slowErr <- err
	}()
	for started.Load() == 0 {
		runtime.Gosched()
	}

	if _, err := c.GetCart(context.Background()); !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("failing GetCart() error = %v, want ErrRefreshFailed", err)
	}
	close(failed)

	if err := <-slowErr; !errors.Is(err, ErrRefreshFailed) || !errors.Is(err, session.ErrSessionChanged) {
		t.Fatalf("late GetCart() error = %v, want ErrRefreshFailed wrapping ErrSessionChanged", err)
	}
	access, refresh, updates, clears := tokens.snapshot()
	if access != "" || refresh != "" {
		t.Errorf("tokens = %q/%q, want both empty", access, refresh)
	}
	if updates != 0 || clears != 1 {
		t.Errorf("updates = %d, clears = %d, want 0 and 1", updates, clears)
	}
	if n := b.apiCalls.Load(); n != 2 {
		t.Errorf("api calls = %d, want 2 (no replay)", n)
	}
	if n := nav.calls.Load(); n != 1 {
		t.Errorf("navigator calls = %d, want 1", n)
	}
}

func TestAuthTransport_CanceledRefreshKeepsSession(t *testing.T) {
	t.Parallel()

	b := newBackend(t, requireToken(newAccess))
	tokens := &fakeTokens{access: oldAccess, refresh: goodRefresh}
	nav := &navigatorRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := newTestClient(t, b, tokens, WithNavigator(nav), WithRefresher(refresherFunc(
		func(ctx context.Context, _ string) (string, error) {
			cancel()
			return "", &RefreshError{Cause: context.Canceled}
		})))

	if _, err := c.GetCart(ctx); err == nil {
		t.Fatal("GetCart() error = nil, want error")
	}
	if _, _, _, clears := tokens.snapshot(); clears != 0 {
		t.Errorf("clears = %d, want 0", clears)
	}
	if n := nav.calls.Load(); n != 0 {
		t.Errorf("navigator calls = %d, want 0", n)
	}
}

func TestAuthTransport_BuffersBodyWithoutGetBody(t *testing.T) {
	t.Parallel()

	var got []string
	var mu sync.Mutex
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, string(data))
		mu.Unlock()
		requireToken(newAccess)(w, r)
	})
	tokens := &fakeTokens{access: oldAccess, refresh: goodRefresh}
	transport := &AuthTransport{
		Base:      b.srv.Client().Transport,
		Tokens:    tokens,
		Refresher: NewHTTPRefresher(b.srv.URL+"/accounts/login/refresh/", b.srv.Client(), nil),
	}

	req, err := http.NewRequest(http.MethodPost, b.srv.URL+"/cart/api/", io.NopCloser(strings.NewReader("payload")))
	if err != nil {
		t.Fatal(err)
	}
	if req.GetBody != nil {
		t.Fatal("test request unexpectedly replayable")
	}
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip() error: %v", err)
	}
	drainAndClose(resp)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "payload" || got[1] != "payload" {
		t.Errorf("bodies = %q, want payload twice", got)
	}
}

func TestAuthTransport_SetsRequestID(t *testing.T) {
	t.Parallel()

	var got atomic.Value
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("X-Request-ID"))
		_, _ = io.WriteString(w, `{}`)
	})
	c := newTestClient(t, b, &fakeTokens{})

	ctx := WithRequestID(context.Background(), "req-123")
	if _, err := c.GetCart(ctx); err != nil {
		t.Fatalf("GetCart() error: %v", err)
	}
	if id, _ := got.Load().(string); id != "req-123" {
		t.Errorf("X-Request-ID = %q, want req-123", id)
	}
}

func TestAuthTransport_UsesContextLogger(t *testing.T) {
	t.Parallel()

	b := newBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	c := newTestClient(t, b, &fakeTokens{})

	var buf syncBuffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ContextWithLogger(WithRequestID(context.Background(), "req-ctx"), logger.With("command", "storefront cart"))
	if _, err := c.GetCart(ctx); err != nil {
		t.Fatalf("GetCart() error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`command="storefront cart"`, "request_id=req-ctx", "status=200"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAuthTransport_MetricsAndSpans(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	b := newBackend(t, requireToken(newAccess))
	tokens := &fakeTokens{access: oldAccess, refresh: goodRefresh}
	c := newTestClient(t, b, tokens, WithMetrics(m), WithTracerProvider(tp))

	if _, err := c.GetCart(context.Background()); err != nil {
		t.Fatalf("GetCart() error: %v", err)
	}

	if got := testutil.ToFloat64(m.TokenRefreshes.WithLabelValues("success")); got != 1 {
		t.Errorf("token_refresh_total{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ReplaysTotal); got != 1 {
		t.Errorf("request_replays_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "401")); got != 1 {
		t.Errorf("requests_total{GET,401} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "200")); got != 1 {
		t.Errorf("requests_total{GET,200} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ForcedLogouts); got != 0 {
		t.Errorf("forced_logouts_total = %v, want 0", got)
	}

	counts := map[string]int{}
	for _, s := range sr.Ended() {
		counts[s.Name()]++
	}
	if counts["storefront.http GET"] != 2 {
		t.Errorf("http spans = %d, want 2", counts["storefront.http GET"])
	}
	if counts["storefront.token_refresh"] != 1 {
		t.Errorf("refresh spans = %d, want 1", counts["storefront.token_refresh"])
	}
}

func TestTokenFingerprint(t *testing.T) {
	t.Parallel()

	if got := TokenFingerprint(""); got != "" {
		t.Errorf("TokenFingerprint(\"\") = %q, want empty", got)
	}
	a, b := TokenFingerprint(oldAccess), TokenFingerprint(newAccess)
	if a == "" || a == b {
		t.Errorf("fingerprints %q and %q should be distinct and non-empty", a, b)
	}
	if strings.Contains(a, oldAccess) {
		t.Errorf("fingerprint leaks token")
	}
}
