package echoweb

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	sessions prometheus.GaugeFunc
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "masomo",
			Subsystem: "web",
			Name:      "requests_total",
			Help:      "Portal requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "masomo",
			Subsystem: "web",
			Name:      "request_duration_seconds",
			Help:      "Portal request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

// watchWorkspaces exports the number of live workspaces.
func (m *httpMetrics) watchWorkspaces(reg prometheus.Registerer, spaces *registry) {
	if m == nil {
		return
	}
	m.sessions = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "masomo",
		Subsystem: "web",
		Name:      "workspaces",
		Help:      "Visitors holding view state.",
	}, func() float64 { return float64(spaces.len()) })
	reg.MustRegister(m.sessions)
}

func (m *httpMetrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	if m == nil {
		return next
	}
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)
		if err != nil {
			// let the error handler set the final status
			ctx.Error(err)
		}
		route := ctx.Path()
		if route == "" {
			route = "unmatched"
		}
		code := strconv.Itoa(ctx.Response().Status)
		m.requests.WithLabelValues(route, ctx.Request().Method, code).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		return nil
	}
}

func metricsHandler(gatherer prometheus.Gatherer) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
