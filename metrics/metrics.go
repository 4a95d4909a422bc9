// server/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ViniZap4/lumi-notes/autosave"
)

// Collector holds the server's Prometheus metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	Writes        *prometheus.CounterVec
	WriteDuration *prometheus.HistogramVec
	Sessions      prometheus.Gauge
}

func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "autosave_writes_total",
				Help:      "Debounced note writes by field and result",
			},
			[]string{"field", "result"},
		),
		WriteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "autosave_write_duration_seconds",
				Help:      "Duration of debounced note writes",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"field"},
		),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "editing_sessions",
			Help:      "Open note editing sessions",
		}),
	}
	c.registry.MustRegister(c.HTTPRequests, c.HTTPDuration, c.Writes, c.WriteDuration, c.Sessions)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// WriteCompleted implements autosave.Observer.
func (c *Collector) WriteCompleted(field autosave.Field, err error, took time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Writes.WithLabelValues(string(field), result).Inc()
	c.WriteDuration.WithLabelValues(string(field)).Observe(took.Seconds())
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware counts requests by matched route. Handler errors are rendered
// here through the app's error handler so the recorded status is final.
func (c *Collector) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		if err := ctx.Next(); err != nil {
			if herr := ctx.App().ErrorHandler(ctx, err); herr != nil {
				_ = ctx.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := ctx.Response().StatusCode()
		route := ctx.Route().Path
		c.HTTPRequests.WithLabelValues(ctx.Method(), route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(ctx.Method(), route).Observe(time.Since(start).Seconds())
		return nil
	}
}

var _ autosave.Observer = (*Collector)(nil)
