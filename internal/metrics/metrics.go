// Package metrics exposes prometheus collectors for HTTP traffic and the
// contact form.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedRoute labels requests that hit no route, so 404 scans do not
// create a series per path.
const unmatchedRoute = "unmatched"

// Metrics owns a registry and the site's collectors.
type Metrics struct {
	registry    *prometheus.Registry
	reqDuration *prometheus.HistogramVec
	submissions *prometheus.CounterVec
	relayTime   prometheus.Histogram
}

// New returns collectors registered on a fresh registry together with
// the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reqDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: []float64{0.01, 0.1, 0.3, 1.2, 5},
			},
			[]string{"route", "method", "status"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contact_submissions_total",
				Help: "Contact form submits by outcome.",
			},
			[]string{"outcome"},
		),
		relayTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "contact_relay_duration_seconds",
			Help:    "Time spent waiting on the email relay.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 15},
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.reqDuration,
		m.submissions,
		m.relayTime,
	)
	return m
}

// Submission counts one contact submit outcome.
func (m *Metrics) Submission(outcome string) {
	m.submissions.WithLabelValues(outcome).Inc()
}

// RelayDuration records how long a relay call took.
func (m *Metrics) RelayDuration(d time.Duration) {
	m.relayTime.Observe(d.Seconds())
}

// Middleware records request duration labelled by gin route pattern.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		status := c.Writer.Status()
		if status < 100 || status > 599 {
			status = http.StatusInternalServerError
		}
		m.reqDuration.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
