package internal

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, router http.Handler) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 from /metrics, got %d", w.Code)
	}
	return w.Body.String()
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := NewMetrics()
	router := chi.NewRouter()
	router.Use(metrics.Middleware())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	router.Get("/metrics", metrics.Handler().ServeHTTP)

	testW := httptest.NewRecorder()
	router.ServeHTTP(testW, httptest.NewRequest("GET", "/health", nil))
	if testW.Body.String() != "ok" {
		t.Errorf("Expected body 'ok', got '%s'", testW.Body.String())
	}

	body := scrape(t, router)
	for _, metric := range []string{"http_requests_total", "http_request_duration_seconds"} {
		if !strings.Contains(body, metric) {
			t.Errorf("Expected metric '%s' not found in response", metric)
		}
	}
	if !strings.Contains(body, `path="/health",status="200"`) {
		t.Error("Expected metrics to contain path and numeric status labels for /health")
	}
}

func TestMetricsWithChiRoutePatterns(t *testing.T) {
	metrics := NewMetrics()
	router := chi.NewRouter()
	router.Use(metrics.Middleware())
	router.Route("/api/user/hardware", func(r chi.Router) {
		r.Delete("/{parentId}/{itemId}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	})
	router.Get("/metrics", metrics.Handler().ServeHTTP)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/api/user/hardware/12/abc", nil))

	body := scrape(t, router)
	if !strings.Contains(body, `path="/api/user/hardware/{parentId}/{itemId}"`) {
		t.Error("Expected metrics to contain Chi route pattern, not actual path")
	}
	if !strings.Contains(body, `status="404"`) {
		t.Error("Expected 404 status label")
	}
}

func TestObserveImport(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveImport("hardware", "committed", 3, 1)
	metrics.ObserveImport("hardware", "failed", 0, 0)

	router := chi.NewRouter()
	router.Get("/metrics", metrics.Handler().ServeHTTP)
	body := scrape(t, router)

	for _, want := range []string{
		`registry_import_batches_total{kind="hardware",result="committed"} 1`,
		`registry_import_batches_total{kind="hardware",result="failed"} 1`,
		`registry_import_records_total{kind="hardware",outcome="submitted"} 3`,
		`registry_import_records_total{kind="hardware",outcome="skipped"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %q in metrics output", want)
		}
	}
}
