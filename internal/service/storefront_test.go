package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"

	"github.com/Sentinel-Gate/storefront/internal/adapter/outbound/httpapi"
	"github.com/Sentinel-Gate/storefront/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
	"github.com/Sentinel-Gate/storefront/internal/domain/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

const (
	testAccess  = "access-token-abcdef"
	testRefresh = "refresh-token-abcdef"
)

// shopBackend fakes the storefront REST API.
type shopBackend struct {
	srv      *httptest.Server
	requests atomic.Int32
	// expired makes every authenticated endpoint and the refresh endpoint
	// answer 401.
	expired atomic.Bool
}

func newShopBackend(t *testing.T) *shopBackend {
	t.Helper()
	b := &shopBackend{}
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if b.expired.Load() || r.Header.Get("Authorization") != "Bearer "+testAccess {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/login/refresh/", func(w http.ResponseWriter, _ *http.Request) {
		if b.expired.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"access":"`+testAccess+`"}`)
	})
	mux.HandleFunc("/accounts/login/", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"No active account found with the given credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access":"`+testAccess+`","refresh":"`+testRefresh+`"}`)
	})
	mux.HandleFunc("/cart/api/", authed(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"items":[{"product":{"id":42},"quantity":2},{"product":{"id":7},"quantity":1}],"item_count":3}`)
	}))
	mux.HandleFunc("/shop/api/wishlist/product-ids/", authed(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"product_ids":[5,9]}`)
	}))

	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func newTestStorefront(t *testing.T, b *shopBackend, store session.CredentialStore, opts ...httpapi.Option) *Storefront {
	t.Helper()
	opts = append([]httpapi.Option{httpapi.WithBaseTransport(b.srv.Client().Transport)}, opts...)
	sf, err := New(context.Background(), Options{
		BaseURL:       b.srv.URL,
		Store:         store,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		ClientOptions: opts,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = sf.Close() })
	return sf
}

func TestNew_RequiresStore(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Options{BaseURL: "http://localhost"}); err == nil {
		t.Error("New() without store error = nil, want error")
	}
}

func TestStorefront_StartWithoutSessionMakesNoRequests(t *testing.T) {
	t.Parallel()

	b := newShopBackend(t)
	sf := newTestStorefront(t, b, memory.NewCredentialStore())

	if err := sf.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if n := b.requests.Load(); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
	if st := sf.Status(); st != (Status{}) {
		t.Errorf("Status() = %+v, want zero", st)
	}
}

func TestStorefront_StartHydratesStoredSession(t *testing.T) {
	t.Parallel()

	b := newShopBackend(t)
	store := memory.NewCredentialStoreWith(session.Credentials{Access: testAccess, Refresh: testRefresh})
	sf := newTestStorefront(t, b, store)

	if err := sf.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	want := Status{Authenticated: true, CartCount: 3, WishlistCount: 2}
	if st := sf.Status(); st != want {
		t.Errorf("Status() = %+v, want %+v", st, want)
	}
	if q := sf.Cart.Quantity(42); q != 2 {
		t.Errorf("Quantity(42) = %d, want 2", q)
	}
	if !sf.Wishlist.Contains(9) {
		t.Error("Wishlist.Contains(9) = false, want true")
	}
}

func TestStorefront_LoginAndLogout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := newShopBackend(t)
	store := memory.NewCredentialStore()
	sf := newTestStorefront(t, b, store)

	err := sf.Login(ctx, "ana", "wrong")
	if !errors.Is(err, httpapi.ErrUnauthorized) {
		t.Fatalf("Login(wrong) error = %v, want ErrUnauthorized", err)
	}
	if sf.Session.IsAuthenticated() {
		t.Fatal("session authenticated after rejected login")
	}

	if err := sf.Login(ctx, "ana", "secret"); err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if got, _ := store.Load(ctx); got.Access != testAccess || got.Refresh != testRefresh {
		t.Errorf("stored pair = %v, want issued pair", got)
	}
	if st := sf.Status(); st.CartCount != 3 || st.WishlistCount != 2 {
		t.Errorf("Status() after login = %+v, want hydrated stores", st)
	}

	if err := sf.Logout(ctx); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	if st := sf.Status(); st != (Status{}) {
		t.Errorf("Status() after logout = %+v, want zero", st)
	}
	if _, err := store.Load(ctx); !errors.Is(err, session.ErrNoCredentials) {
		t.Errorf("store.Load() after logout error = %v, want ErrNoCredentials", err)
	}
}

func TestStorefront_ForcedLogoutResetsStores(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := newShopBackend(t)
	store := memory.NewCredentialStoreWith(session.Credentials{Access: testAccess, Refresh: testRefresh})

	var navigated atomic.Int32
	nav := httpapi.NavigatorFunc(func(context.Context, error) { navigated.Add(1) })
	sf := newTestStorefront(t, b, store, httpapi.WithNavigator(nav))

	if err := sf.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	b.expired.Store(true)
	err := sf.Cart.Refresh(ctx)
	if !httpapi.IsSessionExpired(err) {
		t.Fatalf("Cart.Refresh() error = %v, want expired session", err)
	}
	if navigated.Load() != 1 {
		t.Errorf("navigator calls = %d, want 1", navigated.Load())
	}
	if st := sf.Status(); st != (Status{}) {
		t.Errorf("Status() after forced logout = %+v, want zero", st)
	}
	if _, err := store.Load(ctx); !errors.Is(err, session.ErrNoCredentials) {
		t.Errorf("store.Load() error = %v, want ErrNoCredentials", err)
	}
}

func TestStorefront_CartLoginPromptWithoutSession(t *testing.T) {
	t.Parallel()

	b := newShopBackend(t)
	sf := newTestStorefront(t, b, memory.NewCredentialStore())

	res := sf.Cart.Add(context.Background(), catalog.ProductID(42))
	if !res.RequiresLogin {
		t.Error("Add() without session RequiresLogin = false, want true")
	}
	if !sf.Cart.Snapshot().ShowLoginPrompt {
		t.Error("ShowLoginPrompt = false, want true")
	}
	if n := b.requests.Load(); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

type closingStore struct {
	*memory.CredentialStore
	mu     sync.Mutex
	closed int
}

func (c *closingStore) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func TestStorefront_CloseClosesStoreOnce(t *testing.T) {
	t.Parallel()

	b := newShopBackend(t)
	store := &closingStore{CredentialStore: memory.NewCredentialStore()}
	sf := newTestStorefront(t, b, store)

	if err := sf.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	_ = sf.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.closed != 1 {
		t.Errorf("store closed %d times, want 1", store.closed)
	}
}
