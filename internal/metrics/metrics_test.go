package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutboxCounters(t *testing.T) {
	m := New()
	m.EventDelivered("LISTING_PUBLISH")
	m.EventDelivered("LISTING_PUBLISH")
	m.EventFailed("NOTIFICATION")
	m.PendingEvents(3)

	if got := testutil.ToFloat64(m.delivered.WithLabelValues("LISTING_PUBLISH")); got != 2 {
		t.Fatalf("delivered: want 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.failed.WithLabelValues("NOTIFICATION")); got != 1 {
		t.Fatalf("failed: want 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.pending); got != 3 {
		t.Fatalf("pending: want 3, got %v", got)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/v1/batches/:batchId", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/batches/B1", nil))

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/batches/:batchId", "204")); got != 1 {
		t.Fatalf("requests counter: want 1, got %v", got)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "farmchain_http_requests_total") {
		t.Fatalf("exposition is missing the request counter")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.EventDelivered("x")
	m.EventFailed("x")
	m.PendingEvents(1)
	if m.Registry() != nil {
		t.Fatalf("nil metrics has no registry")
	}
}
