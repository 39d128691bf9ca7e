package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/metrics"
)

func TestMetrics_Counters(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.Match("create", true)
	m.Match("create", false)
	m.Match("create", false)
	m.Transition("assigned", "accepted", "ok")
	m.Compensation("refund", errors.New("provider down"))
	m.Drift("restore")

	assert.InDelta(t, 2, testutil.ToFloat64(m.MatchesTotal.WithLabelValues("create", "none")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("assigned", "accepted", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CompensationsTotal.WithLabelValues("refund", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CalendarDrift.WithLabelValues("restore")), 0)
}

func TestMetrics_NilIsNoOp(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.Match("create", true)
		m.Transition("a", "b", "ok")
		m.Compensation("refund", nil)
		m.Drift("subtract")
		m.HorizonRoll(nil)
	})
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New(nil)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `dispatch_http_request_duration_seconds_count{method="GET",route="/ping",status="204"} 1`)
}
