// Package metrics exposes cache and maintenance counters through a
// Prometheus registry with an optional HTTP exposition endpoint.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the metrics collector.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// Collector registers and serves storekit metrics. It satisfies the cache
// package's Recorder interface, so a cache manager can be wired to it
// directly.
type Collector struct {
	config   Config
	registry *prometheus.Registry
	logger   *slog.Logger

	cacheRequests  *prometheus.CounterVec
	cacheEvictions prometheus.Counter
	cacheSizeBytes prometheus.Gauge
	cacheEntries   prometheus.Gauge
	opDuration     *prometheus.HistogramVec
	opErrors       *prometheus.CounterVec

	server *http.Server
}

// NewCollector creates a collector with its metrics registered on a
// dedicated registry.
func NewCollector(config Config, logger *slog.Logger) (*Collector, error) {
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if config.Namespace == "" {
		config.Namespace = "storekit"
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Collector{
		config:   config,
		registry: prometheus.NewRegistry(),
		logger:   logger.With("component", "metrics"),
	}

	c.cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "cache_requests_total",
			Help:      "Total number of cache lookups by result",
		},
		[]string{"result"},
	)
	c.cacheEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of entries removed by cleanup sweeps",
		},
	)
	c.cacheSizeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "cache_size_bytes",
			Help:      "Current total size of cached payloads in bytes",
		},
	)
	c.cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "cache_entries",
			Help:      "Current number of cache entries",
		},
	)
	c.opDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of toolkit operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation"},
	)
	c.opErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "errors_total",
			Help:      "Total number of failed toolkit operations",
		},
		[]string{"operation"},
	)

	collectors := []prometheus.Collector{
		c.cacheRequests,
		c.cacheEvictions,
		c.cacheSizeBytes,
		c.cacheEntries,
		c.opDuration,
		c.opErrors,
	}
	for _, collector := range collectors {
		if err := c.registry.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return c, nil
}

// RecordHit records a cache hit.
func (c *Collector) RecordHit(sizeBytes int64) {
	c.cacheRequests.With(prometheus.Labels{"result": "hit"}).Inc()
}

// RecordMiss records a cache miss.
func (c *Collector) RecordMiss() {
	c.cacheRequests.With(prometheus.Labels{"result": "miss"}).Inc()
}

// RecordEviction records entries removed by a cleanup sweep.
func (c *Collector) RecordEviction(n int) {
	c.cacheEvictions.Add(float64(n))
}

// UpdateUsage updates the size and entry-count gauges.
func (c *Collector) UpdateUsage(totalSize int64, totalFiles int) {
	c.cacheSizeBytes.Set(float64(totalSize))
	c.cacheEntries.Set(float64(totalFiles))
}

// ObserveOperation records one toolkit operation's duration and outcome.
func (c *Collector) ObserveOperation(operation string, duration time.Duration, err error) {
	c.opDuration.With(prometheus.Labels{"operation": operation}).Observe(duration.Seconds())
	if err != nil {
		c.opErrors.With(prometheus.Labels{"operation": operation}).Inc()
	}
}

// Start serves the exposition endpoint until Stop is called. It is a
// no-op when the collector is disabled.
func (c *Collector) Start() error {
	if !c.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"storekit-metrics"}`))
	})

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("metrics server error", "error", err)
		}
	}()

	c.logger.Info("metrics endpoint started", "port", c.config.Port, "path", c.config.Path)
	return nil
}

// Stop shuts down the exposition endpoint.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}
