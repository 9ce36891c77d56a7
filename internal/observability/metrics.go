package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offer_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "offer_http_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "offer_http_in_flight",
		Help: "In-flight HTTP requests",
	})
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offer_decisions_total",
			Help: "Config decisions by outcome",
		}, []string{"outcome"},
	)
	QualityScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "offer_quality_score",
		Help:    "Quality score of classified installs",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})
	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offer_store_errors_total",
			Help: "Best-effort persistence failures by operation",
		}, []string{"op"},
	)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offer_cache_lookups_total",
			Help: "Edge cache lookups by result",
		}, []string{"result"},
	)
	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Push notifications by relay result",
		}, []string{"result"},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal, Latency, InFlight, Decisions, QualityScore,
		StoreErrors, CacheLookups, NotificationsSent)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}
