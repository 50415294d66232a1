package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	if m == nil {
		t.Fatal("Expected non-nil metrics")
	}

	m.ResolutionsTotal.WithLabelValues("direct-name-match").Inc()
	m.ClampsTotal.Inc()
	m.CacheHitsTotal.WithLabelValues("redis").Inc()
	m.StoreOperationsTotal.WithLabelValues("find", "role_mappings", "ok").Inc()
	m.OrganizationsTotal.Set(3)

	if got := testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("direct-name-match")); got != 1 {
		t.Errorf("Expected 1 resolution, got %v", got)
	}
	if got := testutil.ToFloat64(m.ClampsTotal); got != 1 {
		t.Errorf("Expected 1 clamp, got %v", got)
	}
	if got := testutil.ToFloat64(m.OrganizationsTotal); got != 3 {
		t.Errorf("Expected 3 organizations, got %v", got)
	}
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic on duplicate registration")
		}
	}()
	NewMetrics(registry)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/organizations/{orgID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}).Methods("POST")

	req := httptest.NewRequest("POST", "/organizations/org-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rr.Code)
	}

	// The path label is the route template, not the concrete URL.
	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/organizations/{orgID}", "201"))
	if got != 1 {
		t.Errorf("Expected 1 request counted for route template, got %v", got)
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.TokensIssuedTotal.Inc()

	router := mux.NewRouter()
	RegisterMetricsEndpoint(router, registry)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /metrics, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "crewsync_tokens_issued_total") {
		t.Error("Expected metrics output to contain crewsync_tokens_issued_total")
	}
}
