package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "nugetexplorer"

// Collector owns a private registry so several instances (e.g. in tests) never collide.
type Collector struct {
	registry         *prometheus.Registry
	cacheRequests    *prometheus.CounterVec
	cacheLoads       *prometheus.CounterVec
	sourceFailures   *prometheus.CounterVec
	packageFailures  prometheus.Counter
	analysisDuration prometheus.Histogram
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Cache lookups by key namespace and result.",
		}, []string{"kind", "result"}),
		cacheLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "loads_total",
			Help:      "Values computed and stored after a miss.",
		}, []string{"kind"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sources",
			Name:      "query_failures_total",
			Help:      "Failed queries against a package source, skipped by the aggregator.",
		}, []string{"source", "operation"}),
		packageFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "package_failures_total",
			Help:      "Packages reported as degraded records after a failed analysis.",
		}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of a full batch analysis.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}

	c.registry.MustRegister(c.cacheRequests, c.cacheLoads, c.sourceFailures, c.packageFailures, c.analysisDuration)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) CacheHit(kind string) {
	c.cacheRequests.WithLabelValues(kind, "hit").Inc()
}

func (c *Collector) CacheMiss(kind string) {
	c.cacheRequests.WithLabelValues(kind, "miss").Inc()
}

func (c *Collector) CacheLoad(kind string) {
	c.cacheLoads.WithLabelValues(kind).Inc()
}

func (c *Collector) SourceFailure(source string, operation string) {
	c.sourceFailures.WithLabelValues(source, operation).Inc()
}

func (c *Collector) PackageFailure() {
	c.packageFailures.Inc()
}

func (c *Collector) ObserveAnalysis(duration time.Duration) {
	c.analysisDuration.Observe(duration.Seconds())
}

type Sample struct {
	Name  string
	Value float64
}

// Snapshot flattens every counter and histogram count into name{labels} samples, sorted by name.
func (c *Collector) Snapshot() ([]Sample, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("error gathering metrics: %w", err)
	}

	var samples []Sample
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			name := family.GetName() + formatLabels(metric.GetLabel())
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				samples = append(samples, Sample{Name: name, Value: metric.GetCounter().GetValue()})
			case dto.MetricType_HISTOGRAM:
				samples = append(samples,
					Sample{Name: name + "_count", Value: float64(metric.GetHistogram().GetSampleCount())},
					Sample{Name: name + "_sum", Value: metric.GetHistogram().GetSampleSum()})
			}
		}
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Name < samples[j].Name
	})

	return samples, nil
}

func formatLabels(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}

	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, fmt.Sprintf("%s=%q", label.GetName(), label.GetValue()))
	}

	return "{" + strings.Join(parts, ",") + "}"
}
