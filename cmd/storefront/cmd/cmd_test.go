package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/Sentinel-Gate/storefront/internal/adapter/outbound/httpapi"
	"github.com/Sentinel-Gate/storefront/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/storefront/internal/domain/cart"
	"github.com/Sentinel-Gate/storefront/internal/domain/catalog"
	"github.com/Sentinel-Gate/storefront/internal/service"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCartResultError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	if err := cartResultError(cart.Result{RequiresLogin: true}); !errors.Is(err, errNotSignedIn) {
		t.Errorf("login result error = %v, want errNotSignedIn", err)
	}
	if err := cartResultError(cart.Result{Err: boom}); !errors.Is(err, boom) {
		t.Errorf("failed result error = %v, want boom", err)
	}
	if err := cartResultError(cart.Result{}); err != nil {
		t.Errorf("ok result error = %v, want nil", err)
	}
}

func TestWriteMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := httpapi.NewMetrics(reg)
	m.ReplaysTotal.Inc()
	m.TokenRefreshes.WithLabelValues("success").Inc()

	var buf bytes.Buffer
	if err := writeMetrics(&buf, reg); err != nil {
		t.Fatalf("writeMetrics() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# TYPE storefront_request_replays_total counter",
		"storefront_request_replays_total 1",
		`storefront_token_refresh_total{result="success"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintCart(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printCart(&buf, &catalog.Cart{})
	if !strings.Contains(buf.String(), "empty") {
		t.Errorf("empty cart output = %q", buf.String())
	}

	buf.Reset()
	printCart(&buf, &catalog.Cart{
		Items: []catalog.CartItem{{
			Product:  catalog.Product{ID: 42, Name: "Mug", Price: "9.50"},
			Quantity: 2,
			SubTotal: "19.00",
		}},
		Total:  "19.00",
		Coupon: "SAVE10",
	})
	out := buf.String()
	for _, want := range []string{"42", "Mug", "19.00", "SAVE10"} {
		if !strings.Contains(out, want) {
			t.Errorf("cart output missing %q:\n%s", want, out)
		}
	}
}

// newSignedOutShell returns a shell over a Storefront with no session; none
// of the exercised commands reach the network.
func newSignedOutShell(t *testing.T, input string) (*shell, *bytes.Buffer) {
	t.Helper()
	sf, err := service.New(context.Background(), service.Options{
		BaseURL: "http://127.0.0.1:9/",
		Store:   memory.NewCredentialStore(),
		Logger:  slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	})
	if err != nil {
		t.Fatalf("service.New() error: %v", err)
	}
	t.Cleanup(func() { _ = sf.Close() })
	var out bytes.Buffer
	return newShell(sf, strings.NewReader(input), &out), &out
}

func TestShell_SignedOutPolicies(t *testing.T) {
	t.Parallel()

	sh, out := newSignedOutShell(t, "")
	ctx := context.Background()

	if _, err := sh.exec(ctx, "add 42"); err != nil {
		t.Errorf("add error = %v, want nil (login prompt)", err)
	}
	if !strings.Contains(out.String(), "Sign in to use the cart") {
		t.Errorf("output = %q, want login prompt", out.String())
	}
	if sh.sf.Cart.Snapshot().ShowLoginPrompt {
		t.Error("login prompt left open after being shown")
	}

	if _, err := sh.exec(ctx, "wish 5"); !errors.Is(err, errNotSignedIn) {
		t.Errorf("wish error = %v, want errNotSignedIn", err)
	}
	if _, err := sh.exec(ctx, "add x"); err == nil {
		t.Error("add x error = nil, want invalid id")
	}
	if _, err := sh.exec(ctx, "frobnicate"); err == nil {
		t.Error("unknown command error = nil, want error")
	}
}

func TestShell_RunUntilQuit(t *testing.T) {
	t.Parallel()

	sh, out := newSignedOutShell(t, "help\nstatus\ncart\nwishlist\n\nquit\nstatus\n")
	if err := sh.run(context.Background()); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Commands:", "signed in: false", "cart is empty", "wishlist is empty"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if n := strings.Count(got, "signed in: false"); n != 1 {
		t.Errorf("status printed %d times, want 1 (stops at quit)", n)
	}
}

func TestShell_EOFEndsSession(t *testing.T) {
	t.Parallel()

	sh, _ := newSignedOutShell(t, "status")
	if err := sh.run(context.Background()); err != nil {
		t.Errorf("run() error = %v, want nil at EOF", err)
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	if !strings.HasPrefix(buf.String(), "storefront "+Version) {
		t.Errorf("version output = %q", buf.String())
	}
}

const (
	shellAccess  = "shell-access-token-0001"
	shellRefresh = "shell-refresh-token-0002"
)

// shellBackend serves login, cart, wishlist ids and the product listing.
type shellBackend struct {
	srv          *httptest.Server
	productCalls atomic.Int32
}

func newShellBackend(t *testing.T) *shellBackend {
	t.Helper()
	b := &shellBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/login/", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"access":"`+shellAccess+`","refresh":"`+shellRefresh+`"}`)
	})
	mux.HandleFunc("/cart/api/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"items":[{"product":{"id":42},"quantity":2}],"item_count":2}`)
	})
	mux.HandleFunc("/shop/api/wishlist/product-ids/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"product_ids":[5]}`)
	})
	mux.HandleFunc("/shop/api/products/", func(w http.ResponseWriter, _ *http.Request) {
		b.productCalls.Add(1)
		_, _ = io.WriteString(w, `[{"id":42,"name":"Mug","price":"9.50"}]`)
	})
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func newBackedShell(t *testing.T, b *shellBackend, input string) (*shell, *bytes.Buffer) {
	t.Helper()
	sf, err := service.New(context.Background(), service.Options{
		BaseURL:       b.srv.URL,
		Store:         memory.NewCredentialStore(),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		CacheTTL:      time.Minute,
		ClientOptions: []httpapi.Option{httpapi.WithBaseTransport(b.srv.Client().Transport)},
	})
	if err != nil {
		t.Fatalf("service.New() error: %v", err)
	}
	t.Cleanup(func() { _ = sf.Close() })
	var out bytes.Buffer
	return newShell(sf, strings.NewReader(input), &out), &out
}

func TestShell_LoginReadsPasswordFromInput(t *testing.T) {
	t.Parallel()

	b := newShellBackend(t)
	sh, out := newBackedShell(t, b, "login alice\nsecret\nstatus\nquit\n")
	if err := sh.run(context.Background()); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	got := out.String()
	for _, want := range []string{"password: ", "signed in, cart: 2 item(s), wishlist: 1 product(s)", "signed in: true"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if !sh.sf.Session.IsAuthenticated() {
		t.Error("session not authenticated after login")
	}
}

func TestTerminalFd(t *testing.T) {
	t.Parallel()

	if _, ok := terminalFd(strings.NewReader("secret\n")); ok {
		t.Error("terminalFd(strings.Reader) = true, want false")
	}
	f, err := os.Create(filepath.Join(t.TempDir(), "input"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, ok := terminalFd(f); ok {
		t.Error("terminalFd(regular file) = true, want false")
	}
}

func TestShell_RefreshDropsCatalogCache(t *testing.T) {
	t.Parallel()

	b := newShellBackend(t)
	sh, out := newBackedShell(t, b, "search mug\nsearch mug\nrefresh\nsearch mug\nquit\n")
	if err := sh.run(context.Background()); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if n := b.productCalls.Load(); n != 2 {
		t.Errorf("product listing calls = %d, want 2 (cached once, refetched after refresh)", n)
	}
	if c := strings.Count(out.String(), "Mug"); c != 3 {
		t.Errorf("search printed Mug %d times, want 3:\n%s", c, out.String())
	}
}

func TestOverlayAddress_OnlyChangedFlags(t *testing.T) {
	t.Parallel()

	var edits catalog.Address
	fs := pflag.NewFlagSet("edit", pflag.ContinueOnError)
	bindAddressFlags(fs, &edits, "")
	if err := fs.Parse([]string{"--city", "Shelbyville", "--line2=", "--default"}); err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	cur := catalog.Address{
		ID: 7, Name: "Ana", Phone: "5551234", AddressLine1: "1 Main St", AddressLine2: "Apt 2",
		City: "Springfield", State: "IL", PostalCode: "62701", Country: "US", AddressType: "work",
	}
	got := overlayAddress(fs, cur, edits)

	want := cur
	want.City = "Shelbyville"
	want.AddressLine2 = ""
	want.IsDefault = true
	if got != want {
		t.Errorf("overlayAddress() = %+v, want %+v", got, want)
	}
}
