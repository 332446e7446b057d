package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sentinel-Gate/storefront/internal/domain/session"
)

const meterName = "github.com/Sentinel-Gate/storefront/internal/service"

// instruments reports the application state as OTel metrics: cart and
// wishlist sizes as observable gauges and session transitions as a counter.
type instruments struct {
	sessionEvents metric.Int64Counter
	registration  metric.Registration
}

func newInstruments(mp metric.MeterProvider, sf *Storefront) (*instruments, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName, metric.WithInstrumentationVersion(otel.Version()))

	events, err := meter.Int64Counter(
		"storefront.session.events",
		metric.WithDescription("Session transitions by kind"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating session events counter: %w", err)
	}

	cartItems, err := meter.Int64ObservableGauge(
		"storefront.cart.items",
		metric.WithDescription("Total quantity of items in the cart"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cart items gauge: %w", err)
	}

	wishlistItems, err := meter.Int64ObservableGauge(
		"storefront.wishlist.items",
		metric.WithDescription("Number of wishlisted products"),
		metric.WithUnit("{product}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating wishlist items gauge: %w", err)
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(cartItems, int64(sf.Cart.Count()))
		o.ObserveInt64(wishlistItems, int64(sf.Wishlist.Count()))
		return nil
	}, cartItems, wishlistItems)
	if err != nil {
		return nil, fmt.Errorf("registering store gauges: %w", err)
	}

	return &instruments{sessionEvents: events, registration: reg}, nil
}

func (in *instruments) recordSessionEvent(ev session.Event) {
	if in == nil {
		return
	}
	in.sessionEvents.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("event", ev.String())))
}

func (in *instruments) close() error {
	if in == nil || in.registration == nil {
		return nil
	}
	return in.registration.Unregister()
}
