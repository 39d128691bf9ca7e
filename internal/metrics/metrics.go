// Package metrics holds the Prometheus collectors for matching, job
// transitions and calendar bookkeeping. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	Namespace = "dispatch"

	subsystemJobs     = "jobs"
	subsystemCalendar = "calendar"
	subsystemHTTP     = "http"
)

type Metrics struct {
	MatchesTotal       *prometheus.CounterVec
	TransitionsTotal   *prometheus.CounterVec
	CompensationsTotal *prometheus.CounterVec
	CalendarDrift      *prometheus.CounterVec
	HorizonRolls       *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg. A nil reg means a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		MatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: subsystemJobs,
			Name: "matches_total",
			Help: "Worker matching attempts by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: subsystemJobs,
			Name: "transitions_total",
			Help: "Requested status transitions by source, target and outcome.",
		}, []string{"from", "to", "outcome"}),
		CompensationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: subsystemJobs,
			Name: "compensations_total",
			Help: "Refunds and calendar restores issued to undo a partial transition.",
		}, []string{"action", "outcome"}),
		CalendarDrift: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: subsystemCalendar,
			Name: "drift_total",
			Help: "Calendar mutations that found no matching day in the horizon.",
		}, []string{"operation"}),
		HorizonRolls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: subsystemCalendar,
			Name: "horizon_rolls_total",
			Help: "Per-worker calendar regenerations by outcome.",
		}, []string{"outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace, Subsystem: subsystemHTTP,
			Name:    "request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		gatherer: reg,
	}
}

func (m *Metrics) Match(purpose string, found bool) {
	if m == nil {
		return
	}
	outcome := "found"
	if !found {
		outcome = "none"
	}
	m.MatchesTotal.WithLabelValues(purpose, outcome).Inc()
}

func (m *Metrics) Transition(from, to, outcome string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(from, to, outcome).Inc()
}

func (m *Metrics) Compensation(action string, err error) {
	if m == nil {
		return
	}
	m.CompensationsTotal.WithLabelValues(action, outcomeOf(err)).Inc()
}

func (m *Metrics) Drift(operation string) {
	if m == nil {
		return
	}
	m.CalendarDrift.WithLabelValues(operation).Inc()
}

func (m *Metrics) HorizonRoll(err error) {
	if m == nil {
		return
	}
	m.HorizonRolls.WithLabelValues(outcomeOf(err)).Inc()
}

// Middleware times every request by its route pattern.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
