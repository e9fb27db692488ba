// Package metrics exposes engine measurements as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector implements mr.Recorder on top of a Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	chunksTotal   prometheus.Counter
	bytesScanned  prometheus.Counter
	tokensTotal   prometheus.Counter
	wordsTotal    prometheus.Counter
	chunkDuration prometheus.Histogram

	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	distinctWords prometheus.Gauge

	logger *zap.Logger
}

// NewCollector registers the metrics in a fresh registry under namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		chunksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_scanned_total",
			Help:      "Total number of chunks scanned by workers",
		}),
		bytesScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_scanned_total",
			Help:      "Total number of input bytes scanned",
		}),
		tokensTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Total number of whitespace-delimited tokens seen",
		}),
		wordsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "words_total",
			Help:      "Total number of non-empty normalized words inserted",
		}),
		chunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_scan_duration_seconds",
			Help:      "Time a worker spent scanning one chunk",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of counting runs",
		}, []string{"strategy", "status"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a counting run",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"strategy"}),
		distinctWords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "distinct_words",
			Help:      "Distinct word count of the last successful run",
		}),
		logger: logger.With(zap.String("component", "metrics")),
	}
}

func (c *Collector) RecordChunk(bytes int64, tokens, words int, elapsed time.Duration) {
	c.chunksTotal.Inc()
	c.bytesScanned.Add(float64(bytes))
	c.tokensTotal.Add(float64(tokens))
	c.wordsTotal.Add(float64(words))
	c.chunkDuration.Observe(elapsed.Seconds())
}

func (c *Collector) RecordRun(strategy, status string, distinct int, elapsed time.Duration) {
	c.runsTotal.WithLabelValues(strategy, status).Inc()
	c.runDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if status == "success" {
		c.distinctWords.Set(float64(distinct))
	}
}

// Gatherer exposes the registry, e.g. for promhttp or tests.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// WriteTextfile writes every metric to filename in the text exposition
// format. The write is atomic.
func (c *Collector) WriteTextfile(filename string) error {
	if err := prometheus.WriteToTextfile(filename, c.registry); err != nil {
		c.logger.Error("failed to write metrics textfile", zap.String("path", filename), zap.Error(err))
		return err
	}
	c.logger.Debug("metrics textfile written", zap.String("path", filename))
	return nil
}
