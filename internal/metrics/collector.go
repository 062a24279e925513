package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keydrill/keydrill/pkg/types"
	"github.com/keydrill/keydrill/pkg/utils"
)

// Config represents metrics configuration
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// Collector exposes content pipeline metrics through a Prometheus
// registry. A disabled collector is a no-op sink, so callers never need to
// branch on whether metrics are configured.
type Collector struct {
	config   *Config
	registry *prometheus.Registry
	logger   *utils.Logger
	server   *http.Server

	cacheRequests      *prometheus.CounterVec
	evictions          prometheus.Counter
	cacheEntries       prometheus.Gauge
	cacheBytes         prometheus.Gauge
	generationDuration prometheus.Histogram
	preloads           prometheus.Counter
	validationFailures *prometheus.CounterVec
}

var _ types.MetricsSink = (*Collector)(nil)

// NewCollector creates a metrics collector
func NewCollector(config *Config, logger *utils.Logger) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:   true,
			Port:      9090,
			Path:      "/metrics",
			Namespace: "keydrill",
		}
	}

	c := &Collector{
		config: config,
		logger: logger.WithComponent("metrics"),
	}
	if !config.Enabled {
		return c, nil
	}

	c.registry = prometheus.NewRegistry()
	c.initMetrics()
	if err := c.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return c, nil
}

func (c *Collector) initMetrics() {
	c.cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Name:      "cache_requests_total",
			Help:      "Total number of content cache requests",
		},
		[]string{"result"},
	)

	c.evictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of cache entries evicted",
		},
	)

	c.cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Name:      "cache_entries",
			Help:      "Current number of cached entries",
		},
	)

	c.cacheBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Name:      "cache_size_bytes",
			Help:      "Current resident cache size in bytes",
		},
	)

	c.generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: c.config.Namespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of content generation in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
		},
	)

	c.preloads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Name:      "preloads_total",
			Help:      "Total number of entries cached by the preloader",
		},
	)

	c.validationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Name:      "validation_failures_total",
			Help:      "Total number of content validation failures",
		},
		[]string{"kind"},
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.cacheRequests,
		c.evictions,
		c.cacheEntries,
		c.cacheBytes,
		c.generationDuration,
		c.preloads,
		c.validationFailures,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}
	return nil
}

// Start serves the metrics endpoint in the background.
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("metrics server: %v", err)
		}
	}()

	return nil
}

// Stop shuts the metrics endpoint down.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// Registry exposes the underlying registry, for tests and embedding.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) ObserveHit() {
	if c.cacheRequests != nil {
		c.cacheRequests.WithLabelValues("hit").Inc()
	}
}

func (c *Collector) ObserveMiss() {
	if c.cacheRequests != nil {
		c.cacheRequests.WithLabelValues("miss").Inc()
	}
}

func (c *Collector) ObserveEviction(n int) {
	if c.evictions != nil {
		c.evictions.Add(float64(n))
	}
}

func (c *Collector) ObserveGeneration(seconds float64) {
	if c.generationDuration != nil {
		c.generationDuration.Observe(seconds)
	}
}

func (c *Collector) ObservePreload() {
	if c.preloads != nil {
		c.preloads.Inc()
	}
}

func (c *Collector) ObserveValidationFailure(kind string) {
	if c.validationFailures != nil {
		c.validationFailures.WithLabelValues(kind).Inc()
	}
}

func (c *Collector) SetCacheSize(entries int, bytes int64) {
	if c.cacheEntries != nil {
		c.cacheEntries.Set(float64(entries))
		c.cacheBytes.Set(float64(bytes))
	}
}
