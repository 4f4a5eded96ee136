// Package metrics exposes upload lifecycle events as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/recognizer"
)

// Config configures the collector.
type Config struct {
	// Namespace is the metrics namespace (default: "simpleupload").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Collector counts upload lifecycle events.
type Collector struct {
	filesStored     *prometheus.CounterVec
	filesRecognized *prometheus.CounterVec
	staleDeleted    *prometheus.CounterVec
	filesDeleted    *prometheus.CounterVec
	sharedKept      *prometheus.CounterVec
	errors          *prometheus.CounterVec
}

// New registers the upload metrics. Registering twice on the same registry panics.
func New(opts ...Option) *Collector {
	config := Config{
		Namespace: "simpleupload",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, labels)
	}

	return &Collector{
		filesStored:     counter("files_stored_total", "Total number of uploads moved into place", "field"),
		filesRecognized: counter("files_recognized_total", "Total number of recognized uploads by MIME type", "field", "mime"),
		staleDeleted:    counter("stale_files_deleted_total", "Total number of superseded files removed on save", "field"),
		filesDeleted:    counter("files_deleted_total", "Total number of files removed with their record", "field"),
		sharedKept:      counter("shared_files_kept_total", "Total number of files kept because other records reference them", "field"),
		errors:          counter("errors_total", "Total number of failed upload operations", "op"),
	}
}

// Hooks returns lifecycle hooks feeding the collector.
func (c *Collector) Hooks() *simpleupload.Hooks {
	return &simpleupload.Hooks{
		AfterFileStored: []simpleupload.AfterFileStoredHook{
			func(hctx *simpleupload.HookContext, entity simpleupload.Entity, field, location string) error {
				c.filesStored.WithLabelValues(field).Inc()
				return nil
			},
		},
		AfterFileRecognized: []simpleupload.AfterFileRecognizedHook{
			func(hctx *simpleupload.HookContext, entity simpleupload.Entity, field string, result recognizer.Result) error {
				c.filesRecognized.WithLabelValues(field, result.MimeType).Inc()
				return nil
			},
		},
		AfterStaleDeleted: []simpleupload.StaleDeletedHook{
			func(hctx *simpleupload.HookContext, field, key string) {
				c.staleDeleted.WithLabelValues(field).Inc()
			},
		},
		AfterFileDeleted: []simpleupload.AfterFileDeletedHook{
			func(hctx *simpleupload.HookContext, entity simpleupload.Entity, field, key string) {
				c.filesDeleted.WithLabelValues(field).Inc()
			},
		},
		OnSharedFileKept: []simpleupload.SharedFileKeptHook{
			func(hctx *simpleupload.HookContext, entity simpleupload.Entity, field, key string, references int) {
				c.sharedKept.WithLabelValues(field).Inc()
			},
		},
		OnError: []simpleupload.ErrorHook{
			func(hctx *simpleupload.HookContext, op string, err error) {
				c.errors.WithLabelValues(op).Inc()
			},
		},
	}
}
