package observability

import (
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MetricsRegistry holds metrics and renders them in the Prometheus text
// exposition format.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	histos   map[string]*Histogram
}

type Counter struct {
	name   string
	help   string
	labels map[string]string
	mu     sync.Mutex
	value  float64
}

type Gauge struct {
	name   string
	help   string
	labels map[string]string
	mu     sync.Mutex
	value  float64
}

// Histogram counts observations into cumulative buckets.
type Histogram struct {
	name    string
	help    string
	labels  map[string]string
	buckets []float64
	mu      sync.Mutex
	counts  []uint64
	sum     float64
	count   uint64
}

func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		histos:   make(map[string]*Histogram),
	}
}

func (r *MetricsRegistry) NewCounter(name, help string, labels map[string]string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &Counter{name: name, help: help, labels: labels}
	r.counters[name] = c
	return c
}

func (r *MetricsRegistry) NewGauge(name, help string, labels map[string]string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := &Gauge{name: name, help: help, labels: labels}
	r.gauges[name] = g
	return g
}

// NewHistogram registers a histogram; nil buckets use DefaultBuckets.
func (r *MetricsRegistry) NewHistogram(name, help string, labels map[string]string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if buckets == nil {
		buckets = DefaultBuckets()
	}
	h := &Histogram{
		name:    name,
		help:    help,
		labels:  labels,
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
	r.histos[name] = h
	return h
}

// DefaultBuckets are latency buckets in seconds.
func DefaultBuckets() []float64 {
	return []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
}

func (c *Counter) Inc() { c.Add(1) }

func (c *Counter) Add(v float64) {
	c.mu.Lock()
	c.value += v
	c.mu.Unlock()
}

func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

func (g *Gauge) Inc() { g.Add(1) }
func (g *Gauge) Dec() { g.Add(-1) }

func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	g.value += v
	g.mu.Unlock()
}

func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
		}
	}
}

func (h *Histogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Handler serves the registry for Prometheus scraping.
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WritePrometheus(w)
	})
}

// WritePrometheus writes every metric, sorted by name within each type.
func (r *MetricsRegistry) WritePrometheus(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		c.mu.Lock()
		writeMetric(w, c.name, "counter", c.help, c.labels, c.value)
		c.mu.Unlock()
	}
	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		g.mu.Lock()
		writeMetric(w, g.name, "gauge", g.help, g.labels, g.value)
		g.mu.Unlock()
	}
	for _, name := range sortedKeys(r.histos) {
		h := r.histos[name]
		h.mu.Lock()
		writeHistogram(w, h)
		h.mu.Unlock()
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeMetric(w io.Writer, name, metricType, help string, labels map[string]string, value float64) {
	io.WriteString(w, "# HELP "+name+" "+help+"\n")
	io.WriteString(w, "# TYPE "+name+" "+metricType+"\n")
	io.WriteString(w, name+formatLabels(labels)+" "+formatFloat(value)+"\n")
}

func writeHistogram(w io.Writer, h *Histogram) {
	io.WriteString(w, "# HELP "+h.name+" "+h.help+"\n")
	io.WriteString(w, "# TYPE "+h.name+" histogram\n")

	// counts are already cumulative: Observe bumps every bucket >= v.
	for i, bound := range h.buckets {
		labels := withLabel(h.labels, "le", formatFloat(bound))
		io.WriteString(w, h.name+"_bucket"+formatLabels(labels)+" "+strconv.FormatUint(h.counts[i], 10)+"\n")
	}
	io.WriteString(w, h.name+"_bucket"+formatLabels(withLabel(h.labels, "le", "+Inf"))+" "+strconv.FormatUint(h.count, 10)+"\n")
	io.WriteString(w, h.name+"_sum"+formatLabels(h.labels)+" "+formatFloat(h.sum)+"\n")
	io.WriteString(w, h.name+"_count"+formatLabels(h.labels)+" "+strconv.FormatUint(h.count, 10)+"\n")
}

// formatLabels renders labels sorted by key, or "" when there are none.
func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range sortedKeys(labels) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k + "=" + strconv.Quote(labels[k]))
	}
	b.WriteByte('}')
	return b.String()
}

func withLabel(labels map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for lk, lv := range labels {
		out[lk] = lv
	}
	out[k] = v
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// KilnMetrics are the pipeline's metrics, created per process and passed to
// the components that record them.
type KilnMetrics struct {
	Registry *MetricsRegistry

	BuildsTotal       *Counter
	BuildFailures     *Counter
	BuildDuration     *Histogram
	UnitsEmitted      *Counter
	UnitsSkipped      *Counter
	UnitEmitDuration  *Histogram
	ArtifactBytes     *Counter
	WriteFailures     *Counter
	ActiveWorkers     *Gauge
	Invalidations     *Counter
	ExternRuns        *Counter
	ExternEntries     *Counter
	ExternExclusions  *Counter
	BodyCacheEntries  *Gauge
	BodyCacheHitRatio *Gauge
}

func NewKilnMetrics() *KilnMetrics {
	r := NewMetricsRegistry()
	return &KilnMetrics{
		Registry: r,

		BuildsTotal:      r.NewCounter("kiln_builds_total", "Total builds", nil),
		BuildFailures:    r.NewCounter("kiln_build_failures_total", "Builds that reported errors", nil),
		BuildDuration:    r.NewHistogram("kiln_build_duration_seconds", "Build duration", nil, nil),
		UnitsEmitted:     r.NewCounter("kiln_units_emitted_total", "Units written as artifacts", nil),
		UnitsSkipped:     r.NewCounter("kiln_units_skipped_total", "Units skipped because of errors", nil),
		UnitEmitDuration: r.NewHistogram("kiln_unit_emit_duration_seconds", "Per-unit walk and write duration", nil, nil),
		ArtifactBytes:    r.NewCounter("kiln_artifact_bytes_total", "Bytes of artifacts written", nil),
		WriteFailures:    r.NewCounter("kiln_write_failures_total", "Failed artifact writes", nil),
		ActiveWorkers:    r.NewGauge("kiln_active_workers", "Emission workers currently busy", nil),
		Invalidations:    r.NewCounter("kiln_invalidations_total", "Units invalidated by content changes", nil),
		ExternRuns:       r.NewCounter("kiln_extern_runs_total", "Extern compilations", nil),
		ExternEntries:    r.NewCounter("kiln_extern_entries_total", "Declarations read from extern corpora", nil),
		ExternExclusions: r.NewCounter("kiln_extern_exclusions_total", "Declarations excluded by policy", nil),

		BodyCacheEntries:  r.NewGauge("kiln_body_cache_entries", "Parsed function bodies held in memory", nil),
		BodyCacheHitRatio: r.NewGauge("kiln_body_cache_hit_ratio", "Body cache hit ratio", nil),
	}
}

func (m *KilnMetrics) Handler() http.Handler { return m.Registry.Handler() }

// RecordBuild records one finished build.
func (m *KilnMetrics) RecordBuild(duration time.Duration, success bool) {
	m.BuildsTotal.Inc()
	m.BuildDuration.Observe(duration.Seconds())
	if !success {
		m.BuildFailures.Inc()
	}
}

// RecordUnit records one unit's emission; bytes is 0 for a skipped unit.
func (m *KilnMetrics) RecordUnit(duration time.Duration, bytes int, writeFailed bool) {
	m.UnitEmitDuration.Observe(duration.Seconds())
	switch {
	case writeFailed:
		m.WriteFailures.Inc()
	case bytes == 0:
		m.UnitsSkipped.Inc()
	default:
		m.UnitsEmitted.Inc()
		m.ArtifactBytes.Add(float64(bytes))
	}
}

// RecordBodyCache publishes body cache occupancy and hit ratio.
func (m *KilnMetrics) RecordBodyCache(entries int, hits, misses int64) {
	m.BodyCacheEntries.Set(float64(entries))
	if total := hits + misses; total > 0 {
		m.BodyCacheHitRatio.Set(float64(hits) / float64(total))
	}
}

func (m *KilnMetrics) RecordExtern(entries, excluded int) {
	m.ExternRuns.Inc()
	m.ExternEntries.Add(float64(entries))
	m.ExternExclusions.Add(float64(excluded))
}
