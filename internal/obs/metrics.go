package obs

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Domain metrics.
var (
	anomalyChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomaly_checks_total",
			Help: "Anomaly detection runs by domain.",
		},
		[]string{"domain"},
	)

	anomaliesFlaggedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomalies_flagged_total",
			Help: "Entries flagged as anomalous by domain.",
		},
		[]string{"domain"},
	)

	treasuryRecomputesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "treasury_recomputes_total",
		Help: "Treasury period recomputations.",
	})
)

// Init registers metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		anomalyChecksTotal, anomaliesFlaggedTotal, treasuryRecomputesTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAnomalyCheck records one detector run and how many entries it flagged.
func ObserveAnomalyCheck(domain string, flagged int) {
	anomalyChecksTotal.WithLabelValues(domain).Inc()
	if flagged > 0 {
		anomaliesFlaggedTotal.WithLabelValues(domain).Add(float64(flagged))
	}
}

// ObserveTreasuryRecompute records one period recomputation.
func ObserveTreasuryRecompute() {
	treasuryRecomputesTotal.Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers so metric label cardinality
// stays bounded.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) < 2 || parts[0] != "v1" {
		return p
	}
	for _, route := range []struct {
		resource []string
		suffixes []string
	}{
		{[]string{"journal-entries"}, []string{"", "status"}},
		{[]string{"revenues"}, []string{"", "status", "anomaly"}},
		{[]string{"treasury", "periods"}, []string{""}},
	} {
		// segments before the id: v1 plus the resource prefix
		n := 1 + len(route.resource)
		if len(parts) <= n || !slices.Equal(parts[1:n], route.resource) {
			continue
		}
		rest := ""
		if len(parts) > n+1 {
			rest = parts[n+1]
		}
		for _, s := range route.suffixes {
			if rest == s && len(parts) <= n+2 {
				out := "/v1/" + strings.Join(route.resource, "/") + "/:id"
				if s != "" {
					out += "/" + s
				}
				return out
			}
		}
	}
	return p
}

// statusWriter captures the response code for labeling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
