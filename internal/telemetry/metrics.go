package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var httpLabels = []string{"path", "method", "status"}

// Collectors live on the default registry next to the controller's, so one
// promhttp handler exposes both.
var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storybox", Subsystem: "http", Name: "requests_total",
		Help: "Diagnostics HTTP requests by route, method and status.",
	}, httpLabels)
	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storybox", Subsystem: "http", Name: "request_duration_seconds",
		Help:    "Diagnostics HTTP request latency.",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
	}, httpLabels)
	httpInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "storybox", Subsystem: "http", Name: "inflight_requests",
		Help: "Diagnostics HTTP requests being served.",
	})
)

// MetricsMiddleware instruments requests for Prometheus. The route pattern is
// read after the handler runs, once chi has resolved it.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInflight.Inc()
		defer httpInflight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		l := prometheus.Labels{"path": routePattern(r), "method": r.Method, "status": strconv.Itoa(status)}
		httpRequests.With(l).Inc()
		httpLatency.With(l).Observe(time.Since(start).Seconds())
	})
}

// routePattern labels a request by its chi route, e.g. "/item/{id}".
// Unmatched requests share one label so stray paths cannot grow the series.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		return rc.RoutePattern()
	}
	return "unmatched"
}

// requestLogger logs one line per request when a logger is installed.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if zlog == nil {
			next.ServeHTTP(w, r)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		z := zlog.Debug().Str("event", "http_request").Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", ww.Status()).Dur("dur", time.Since(start))
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		z.Msg("diagnostics request")
	})
}
