package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ctxKey string

const routeLabelKey ctxKey = "metrics_route"

var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagecal_api_requests_total",
		Help: "Total number of API requests issued by the client.",
	}, []string{"method", "route", "code"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagecal_api_request_duration_seconds",
		Help:    "Histogram of API round-trip latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	gestureRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagecal_gesture_rollbacks_total",
		Help: "Calendar drag/resize gestures reverted after the server refused them.",
	})
)

// WithRoute labels outgoing requests made with ctx. Without it the route label
// is derived from the URL path.
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeLabelKey, route)
}

func routeFor(r *http.Request) string {
	if v, ok := r.Context().Value(routeLabelKey).(string); ok && v != "" {
		return v
	}
	return normalizePath(r.URL.Path)
}

// normalizePath collapses numeric path segments so ids don't explode label cardinality.
func normalizePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		if s == "" {
			continue
		}
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			segs[i] = "{id}"
		}
	}
	return strings.Join(segs, "/")
}

type roundTripper struct {
	next http.RoundTripper
}

// Transport wraps next with request counters and latency histograms.
func Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripper{next: next}
}

func (rt roundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	route := routeFor(r)
	start := time.Now()
	resp, err := rt.next.RoundTrip(r)
	apiRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	code := "error"
	if err == nil && resp != nil {
		code = strconv.Itoa(resp.StatusCode)
	}
	apiRequestsTotal.WithLabelValues(r.Method, route, code).Inc()
	return resp, err
}

// ObserveRollback counts a reverted optimistic calendar change.
func ObserveRollback() {
	gestureRollbacks.Inc()
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewRouter returns the router used by the optional metrics listener.
func NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", Handler())
	return r
}

// Serve runs the metrics listener until ctx is done.
func Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
