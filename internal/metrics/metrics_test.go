package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters_increment(t *testing.T) {
	before := testutil.ToFloat64(Picons.WithLabelValues("loaded"))
	Picons.WithLabelValues("loaded").Inc()
	if got := testutil.ToFloat64(Picons.WithLabelValues("loaded")); got != before+1 {
		t.Errorf("picons loaded = %v, want %v", got, before+1)
	}
}

func TestHandler_exposesNamespace(t *testing.T) {
	UpstreamRequests.WithLabelValues("bouquets", "ok").Inc()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "e2catalog_upstream_requests_total") {
		t.Errorf("metrics output missing e2catalog_upstream_requests_total")
	}
}
