package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Sentinel-Gate/storefront/internal/adapter/outbound/httpapi"
	"github.com/Sentinel-Gate/storefront/internal/config"
	"github.com/Sentinel-Gate/storefront/internal/service"
)

// errNotSignedIn is returned by commands that need a session.
var errNotSignedIn = errors.New("not signed in: run `storefront login` first")

// app is the per-invocation wiring: config, logger and the Storefront.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	sf       *service.Storefront
	registry *prometheus.Registry
	tp       *sdktrace.TracerProvider
	mp       *sdkmetric.MeterProvider
	stderr   io.Writer
}

// loadConfig reads and validates the config, applying CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if ephemeral {
		cfg.Session.Backend = config.BackendMemory
		cfg.Session.Path = ""
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, stderr io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.LogLevel)
	if f := config.ConfigFileUsed(); f != "" {
		logger.Debug("loaded config", "file", f)
	}

	store, err := service.OpenCredentialStore(ctx, cfg.Session, logger.With("component", "credentials"))
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, stderr: stderr}
	opts := []httpapi.Option{
		httpapi.WithTimeout(cfg.APITimeout()),
		httpapi.WithLoginPath(cfg.API.LoginPath),
		httpapi.WithRefreshPath(cfg.API.RefreshPath),
		httpapi.WithNavigator(httpapi.NavigatorFunc(func(_ context.Context, cause error) {
			fmt.Fprintf(stderr, "Your session has expired (%v).\nRun `storefront login` to sign in again.\n", cause)
		})),
	}
	if dumpMetrics {
		a.registry = prometheus.NewRegistry()
		opts = append(opts, httpapi.WithMetrics(httpapi.NewMetrics(a.registry)))

		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(stderr))
		if err != nil {
			closeStore(store)
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		a.mp = sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}
	if traceOutput {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			closeStore(store)
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		a.tp = sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(exp),
			sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", "storefront"))),
		)
		otel.SetTracerProvider(a.tp)
		opts = append(opts, httpapi.WithTracerProvider(a.tp))
	}

	a.sf, err = service.New(ctx, service.Options{
		BaseURL:       cfg.API.BaseURL,
		Store:         store,
		CacheTTL:      cfg.CacheTTL(),
		Logger:        logger,
		ClientOptions: opts,
		MeterProvider: a.meterProvider(),
	})
	if err != nil {
		closeStore(store)
		if a.mp != nil {
			_ = a.mp.Shutdown(context.WithoutCancel(ctx))
		}
		return nil, err
	}
	return a, nil
}

func closeStore(store any) {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}

// meterProvider returns the SDK provider when metrics are enabled, nil
// otherwise so the Storefront falls back to the global no-op provider.
func (a *app) meterProvider() metric.MeterProvider {
	if a.mp == nil {
		return nil
	}
	return a.mp
}

// close releases the Storefront and flushes diagnostics. The meter provider
// shuts down first so the final export still sees the store gauges.
func (a *app) close(ctx context.Context) {
	if a.mp != nil {
		if err := a.mp.Shutdown(ctx); err != nil {
			a.logger.Warn("failed to flush metrics", "error", err)
		}
	}
	if err := a.sf.Close(); err != nil {
		a.logger.Warn("failed to close session store", "error", err)
	}
	if a.tp != nil {
		if err := a.tp.Shutdown(ctx); err != nil {
			a.logger.Warn("failed to flush traces", "error", err)
		}
	}
	if a.registry != nil {
		if err := writeMetrics(a.stderr, a.registry); err != nil {
			a.logger.Warn("failed to gather metrics", "error", err)
		}
	}
}

// requireSession fails fast for commands that only make sense signed in.
func (a *app) requireSession() error {
	if !a.sf.Session.IsAuthenticated() {
		return errNotSignedIn
	}
	return nil
}

// runWithApp builds the app, runs fn with an interrupt-aware context, and
// tears the app down.
func runWithApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	ctx = httpapi.ContextWithLogger(ctx, a.logger.With("command", cmd.CommandPath()))
	return fn(ctx, a)
}

// writeMetrics prints the gathered families in the Prometheus text format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	if c, ok := enc.(expfmt.Closer); ok {
		return c.Close()
	}
	return nil
}
