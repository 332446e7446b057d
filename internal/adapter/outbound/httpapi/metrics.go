package httpapi

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the storefront client.
// A nil *Metrics records nothing.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	TokenRefreshes  *prometheus.CounterVec
	ReplaysTotal    prometheus.Counter
	ForcedLogouts   prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Name:      "requests_total",
				Help:      "Total number of backend requests sent",
			},
			[]string{"method", "status"}, // status=HTTP code or "error"
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "storefront",
				Name:      "request_duration_seconds",
				Help:      "Backend request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		TokenRefreshes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Name:      "token_refresh_total",
				Help:      "Access token refresh attempts",
			},
			[]string{"result"}, // result=success/failure
		),
		ReplaysTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Name:      "request_replays_total",
				Help:      "Requests replayed after a successful token refresh",
			},
		),
		ForcedLogouts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Name:      "forced_logouts_total",
				Help:      "Sessions cleared because the refresh token was rejected",
			},
		),
	}
}

func (m *Metrics) observeRequest(method string, status int, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if err == nil {
		label = strconv.Itoa(status)
	}
	m.RequestsTotal.WithLabelValues(method, label).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) observeRefresh(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.TokenRefreshes.WithLabelValues("success").Inc()
		return
	}
	m.TokenRefreshes.WithLabelValues("failure").Inc()
}

func (m *Metrics) observeReplay() {
	if m == nil {
		return
	}
	m.ReplaysTotal.Inc()
}

func (m *Metrics) observeForcedLogout() {
	if m == nil {
		return
	}
	m.ForcedLogouts.Inc()
}
