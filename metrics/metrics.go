package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	requests      *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	checkouts     *prometheus.CounterVec
	fulfilled     prometheus.Counter
	expiredOrders prometheus.Counter
	resolutions   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "raiseup_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raiseup_query_cache_lookups_total",
			Help: "Query cache lookups by query key and result.",
		}, []string{"query", "result"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raiseup_checkout_sessions_total",
			Help: "Checkout sessions by payment provider and outcome.",
		}, []string{"provider", "outcome"}),
		fulfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raiseup_orders_fulfilled_total",
			Help: "Orders paid and turned into enrollments.",
		}),
		expiredOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raiseup_orders_expired_total",
			Help: "Pending orders expired by the scheduler.",
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raiseup_role_resolutions_total",
			Help: "Role resolutions by outcome (ok, degraded, stale).",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.requests,
		m.cacheLookups,
		m.checkouts,
		m.fulfilled,
		m.expiredOrders,
		m.resolutions,
	)

	return m
}

// NewNop returns metrics registered on a private registry, for tests and
// tools that do not expose /metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	m.requests.WithLabelValues(method, route, status).Observe(d.Seconds())
}

func (m *Metrics) CacheHit(query string) { m.cacheLookups.WithLabelValues(query, "hit").Inc() }
func (m *Metrics) CacheMiss(query string) { m.cacheLookups.WithLabelValues(query, "miss").Inc() }

func (m *Metrics) Checkout(provider, outcome string) {
	m.checkouts.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) OrderFulfilled() { m.fulfilled.Inc() }
func (m *Metrics) OrdersExpired(n int64) { m.expiredOrders.Add(float64(n)) }
func (m *Metrics) Resolution(outcome string) { m.resolutions.WithLabelValues(outcome).Inc() }

func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
