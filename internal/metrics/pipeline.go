package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ciphermaniac"

// Pipeline holds the collectors of aggregation runs and on-demand queries.
// All methods are safe on a nil *Pipeline, which records nothing.
type Pipeline struct {
	registry *prometheus.Registry

	combinations      *prometheus.CounterVec
	uniqueSubsets     prometheus.Counter
	archetypes        *prometheus.CounterVec
	archetypeDuration prometheus.Histogram
	artifacts         prometheus.Counter
	queries           *prometheus.CounterVec
	queryDuration     prometheus.Histogram
	cacheLookups      *prometheus.CounterVec
}

// NewPipeline registers the collectors on reg, or on a fresh registry when
// reg is nil.
func NewPipeline(reg *prometheus.Registry) *Pipeline {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Pipeline{
		registry: reg,
		combinations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_combinations_total",
			Help:      "Generated filter combinations by resolution outcome",
		}, []string{"outcome"}),
		uniqueSubsets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unique_subsets_total",
			Help:      "Unique subset reports written",
		}),
		archetypes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archetypes_total",
			Help:      "Archetypes handled by result",
		}, []string{"result"}),
		archetypeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "archetype_duration_seconds",
			Help:      "Time to build and store one archetype",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		artifacts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_written_total",
			Help:      "Artifacts written to the blob store",
		}),
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subset_queries_total",
			Help:      "On-demand subset queries by status",
		}, []string{"status"}),
		queryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "subset_query_duration_seconds",
			Help:      "On-demand subset query latency",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Report cache lookups by result",
		}, []string{"result"}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Pipeline) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCombinations counts combinations by outcome name.
func (m *Pipeline) ObserveCombinations(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.combinations.WithLabelValues(outcome).Add(float64(n))
}

// AddUniqueSubsets counts written unique subsets.
func (m *Pipeline) AddUniqueSubsets(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.uniqueSubsets.Add(float64(n))
}

// ObserveArchetype counts an archetype by result (processed, skipped,
// failed) and records how long it took.
func (m *Pipeline) ObserveArchetype(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.archetypes.WithLabelValues(result).Inc()
	if d > 0 {
		m.archetypeDuration.Observe(d.Seconds())
	}
}

// AddArtifacts counts written artifacts.
func (m *Pipeline) AddArtifacts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.artifacts.Add(float64(n))
}

// ObserveQuery counts an on-demand query by status and records its latency.
func (m *Pipeline) ObserveQuery(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(status).Inc()
	m.queryDuration.Observe(d.Seconds())
}

// CacheHit counts a cache hit or miss.
func (m *Pipeline) CacheHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
}
