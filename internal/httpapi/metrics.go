package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "path", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "inferd",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	httpInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "inferd",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "HTTP requests currently being served.",
	})

	backpressure = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "http",
		Name:      "backpressure_total",
		Help:      "Requests rejected with 429 because the service was saturated.",
	})

	generateTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "generate",
		Name:      "tokens_total",
		Help:      "Completion tokens produced, by model.",
	}, []string{"model"})

	generateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "inferd",
		Subsystem: "generate",
		Name:      "duration_seconds",
		Help:      "Wall time of one generation, by finish reason.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"reason"})
)

// IncrementBackpressure records one saturation rejection.
func IncrementBackpressure() { backpressure.Inc() }

// ObserveGeneration records token and latency metrics for one finished
// generation. Wired to the manager's generate_done events.
func ObserveGeneration(model, reason string, completionTokens int, dur time.Duration) {
	if completionTokens > 0 {
		generateTokens.WithLabelValues(model).Add(float64(completionTokens))
	}
	generateDuration.WithLabelValues(reason).Observe(dur.Seconds())
}

// MetricsMiddleware instruments every request with the inferd_http_*
// series. Route patterns keep label cardinality bounded; raw paths are
// used only when chi has no pattern for the request.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := routePatternOrPath(r)
		httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
