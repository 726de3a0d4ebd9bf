package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"/api/pages":       "/api/pages",
		"/api/pages/42":    "/api/pages/{id}",
		"/api/pages/42/x":  "/api/pages/{id}/x",
		"/api/users/alice": "/api/users/alice",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTransport_CountsRequestsByRouteAndCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/404") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{Transport: Transport(nil)}
	before := testutil.ToFloat64(apiRequestsTotal.WithLabelValues(http.MethodGet, "/api/pages/{id}", "200"))

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/pages/7", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()

	after := testutil.ToFloat64(apiRequestsTotal.WithLabelValues(http.MethodGet, "/api/pages/{id}", "200"))
	if after-before != 1 {
		t.Fatalf("expected counter to increase by 1; before=%v after=%v", before, after)
	}

	ctx := WithRoute(context.Background(), "custom")
	req, _ = http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/404", nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if got := testutil.ToFloat64(apiRequestsTotal.WithLabelValues(http.MethodGet, "custom", "404")); got < 1 {
		t.Fatalf("expected custom route label to be recorded")
	}
}

func TestRouter_ServesMetrics(t *testing.T) {
	ObserveRollback()

	rec := httptest.NewRecorder()
	NewRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pagecal_gesture_rollbacks_total") {
		t.Fatalf("expected rollback counter in exposition output")
	}
}
