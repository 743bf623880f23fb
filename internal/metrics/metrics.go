// Package metrics exposes Prometheus metrics for the HTTP surface, the
// loaded dataset and backup exports.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "canvas_users"

// Collector holds all Prometheus metrics for the application.
// Each Collector owns its registry, so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Dataset metrics
	DatasetRows         prometheus.Gauge
	DatasetCourses      prometheus.Gauge
	DatasetInconsistent prometheus.Gauge

	// Query and export metrics
	QueryRows     *prometheus.HistogramVec
	QueryDuration *prometheus.HistogramVec
	Exports       *prometheus.CounterVec
	ExportRows    prometheus.Counter
	ExportBytes   prometheus.Counter
}

// NewCollector creates and registers every metric, plus the Go runtime and
// process collectors.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		DatasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "dataset_rows",
			Help:      "Number of user records loaded",
		}),
		DatasetCourses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "dataset_courses",
			Help:      "Number of catalog entries, including the no-course marker",
		}),
		DatasetInconsistent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "dataset_inconsistent_rows",
			Help:      "Records with num_courses 0 that still list course codes",
		}),
		QueryRows: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "query_result_rows",
				Help:      "Rows returned per query page",
				Buckets:   []float64{0, 1, 10, 25, 50, 100, 250, 500},
			},
			[]string{"op"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "query_duration_seconds",
				Help:      "Time spent filtering and paginating",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
			},
			[]string{"op"},
		),
		Exports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "exports_total",
				Help:      "Backup exports by outcome",
			},
			[]string{"outcome"},
		),
		ExportRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "export_rows_total",
			Help:      "User rows written to backups",
		}),
		ExportBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "export_bytes_total",
			Help:      "Bytes of CSV written to backups",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests,
		c.HTTPDuration,
		c.DatasetRows,
		c.DatasetCourses,
		c.DatasetInconsistent,
		c.QueryRows,
		c.QueryDuration,
		c.Exports,
		c.ExportRows,
		c.ExportBytes,
	)

	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// SetDataset records the size of the loaded dataset.
func (c *Collector) SetDataset(rows, courses, inconsistent int) {
	c.DatasetRows.Set(float64(rows))
	c.DatasetCourses.Set(float64(courses))
	c.DatasetInconsistent.Set(float64(inconsistent))
}

// ObserveQuery records one listing.
func (c *Collector) ObserveQuery(op string, rows int, elapsed time.Duration) {
	c.QueryRows.WithLabelValues(op).Observe(float64(rows))
	c.QueryDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveExport records one export attempt.
func (c *Collector) ObserveExport(outcome string, rows int, bytes int) {
	c.Exports.WithLabelValues(outcome).Inc()
	c.ExportRows.Add(float64(rows))
	c.ExportBytes.Add(float64(bytes))
}

// Middleware counts requests and times them by chi route pattern, which
// keeps label cardinality bounded.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
