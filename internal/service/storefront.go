package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/Sentinel-Gate/storefront/internal/adapter/outbound/httpapi"
	"github.com/Sentinel-Gate/storefront/internal/domain/cart"
	"github.com/Sentinel-Gate/storefront/internal/domain/session"
	"github.com/Sentinel-Gate/storefront/internal/domain/wishlist"
)

// Options configures a Storefront.
type Options struct {
	// BaseURL is the backend root.
	BaseURL string
	// Store persists the credential pair. Closed by Storefront.Close when it
	// implements io.Closer.
	Store session.CredentialStore
	// CacheTTL is the catalog cache lifetime; zero disables caching.
	CacheTTL time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// ClientOptions are passed through to httpapi.NewClient.
	ClientOptions []httpapi.Option
	// MeterProvider receives the store gauges and session counter. Defaults
	// to the global provider.
	MeterProvider metric.MeterProvider
}

// Storefront owns the session, the HTTP client and the stores for one
// running application. Construct it with New, call Start to hydrate, and
// Close when done.
type Storefront struct {
	Session  *session.Session
	Client   *httpapi.Client
	Cart     *cart.Store
	Wishlist *wishlist.Store
	Catalog  *Catalog

	store       session.CredentialStore
	logger      *slog.Logger
	instruments *instruments
	unsubscribe func()
	closeOnce   sync.Once
	closeErr    error
}

// Status summarizes the application state.
type Status struct {
	Authenticated bool
	CartCount     int
	WishlistCount int
}

// New loads the stored session and wires the client and stores around it.
// It makes no network calls.
func New(ctx context.Context, opts Options) (*Storefront, error) {
	if opts.Store == nil {
		return nil, errors.New("credential store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sess, err := session.New(ctx, opts.Store, logger.With("component", "session"))
	if err != nil {
		return nil, err
	}

	clientOpts := append([]httpapi.Option{httpapi.WithLogger(logger.With("component", "httpapi"))}, opts.ClientOptions...)
	client, err := httpapi.NewClient(opts.BaseURL, sess, clientOpts...)
	if err != nil {
		return nil, err
	}

	sf := &Storefront{
		Session:  sess,
		Client:   client,
		Cart:     cart.NewStore(client, sess, logger.With("component", "cart")),
		Wishlist: wishlist.NewStore(client, sess, logger.With("component", "wishlist")),
		Catalog:  NewCatalog(client, opts.CacheTTL),
		store:    opts.Store,
		logger:   logger,
	}
	sf.instruments, err = newInstruments(opts.MeterProvider, sf)
	if err != nil {
		return nil, err
	}
	sf.unsubscribe = sess.Subscribe(sf.onSessionEvent)
	return sf, nil
}

// onSessionEvent empties both stores when the session ends, including a
// logout forced by a failed token refresh.
func (sf *Storefront) onSessionEvent(ev session.Event) {
	sf.instruments.recordSessionEvent(ev)
	if ev != session.EventLogout {
		return
	}
	sf.Cart.Reset()
	sf.Wishlist.Reset()
	sf.logger.Debug("stores reset after logout")
}

// Start hydrates the cart and wishlist concurrently. Without a session both
// stores reset locally. The first hydration error is returned; a store that
// failed keeps its previous state.
func (sf *Storefront) Start(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return sf.Cart.Refresh(ctx) })
	g.Go(func() error { return sf.Wishlist.Refresh(ctx) })
	return g.Wait()
}

// Login exchanges username and password for a session and hydrates the
// stores. A hydration failure after a successful login is logged only.
func (sf *Storefront) Login(ctx context.Context, username, password string) error {
	creds, err := sf.Client.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := sf.Session.Login(ctx, creds); err != nil {
		return err
	}
	if err := sf.Start(ctx); err != nil {
		sf.logger.Warn("signed in but failed to load cart or wishlist", "error", err)
	}
	return nil
}

// Logout clears the session. The stores reset through the session event.
func (sf *Storefront) Logout(ctx context.Context) error {
	return sf.Session.Clear(ctx)
}

// Status returns the current summary.
func (sf *Storefront) Status() Status {
	return Status{
		Authenticated: sf.Session.IsAuthenticated(),
		CartCount:     sf.Cart.Count(),
		WishlistCount: sf.Wishlist.Count(),
	}
}

// Close detaches the stores from the session, closes them, and closes the
// credential store if it holds resources. Safe to call more than once.
func (sf *Storefront) Close() error {
	sf.closeOnce.Do(func() {
		if sf.unsubscribe != nil {
			sf.unsubscribe()
		}
		if err := sf.instruments.close(); err != nil {
			sf.logger.Debug("failed to unregister store gauges", "error", err)
		}
		sf.Cart.Close()
		sf.Wishlist.Close()
		if c, ok := sf.store.(io.Closer); ok {
			sf.closeErr = c.Close()
		}
	})
	return sf.closeErr
}
