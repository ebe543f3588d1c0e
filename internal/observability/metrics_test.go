package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	r := NewMetricsRegistry()
	c := r.NewCounter("test_counter", "Test counter", nil)

	c.Inc()
	c.Add(3.5)

	if c.Value() != 4.5 {
		t.Fatalf("expected 4.5, got %f", c.Value())
	}
}

func TestGauge(t *testing.T) {
	r := NewMetricsRegistry()
	g := r.NewGauge("test_gauge", "Test gauge", nil)

	g.Set(10)
	g.Inc()
	g.Inc()
	g.Dec()
	g.Add(-3)

	if g.Value() != 8 {
		t.Fatalf("expected 8, got %f", g.Value())
	}
}

func TestHistogram_Observe(t *testing.T) {
	r := NewMetricsRegistry()
	h := r.NewHistogram("test_histogram", "Test histogram", nil, []float64{1, 5, 10})

	h.Observe(0.5)
	h.Observe(3)
	h.Observe(7)
	h.Observe(15)

	if h.Count() != 4 {
		t.Fatalf("expected count 4, got %d", h.Count())
	}
	if h.sum != 25.5 {
		t.Fatalf("expected sum 25.5, got %f", h.sum)
	}
}

func TestHistogram_ObserveDuration(t *testing.T) {
	r := NewMetricsRegistry()
	h := r.NewHistogram("test_histogram", "Test histogram", nil, nil)

	h.ObserveDuration(time.Now().Add(-100 * time.Millisecond))

	if h.Count() != 1 {
		t.Fatalf("expected count 1, got %d", h.Count())
	}
	if h.sum < 0.1 {
		t.Fatalf("expected sum >= 0.1, got %f", h.sum)
	}
}

func TestDefaultBuckets(t *testing.T) {
	buckets := DefaultBuckets()
	for i := 1; i < len(buckets); i++ {
		if buckets[i] <= buckets[i-1] {
			t.Fatal("buckets should be in ascending order")
		}
	}
}

func TestWritePrometheus(t *testing.T) {
	r := NewMetricsRegistry()
	r.NewCounter("b_total", "B", nil).Inc()
	r.NewCounter("a_total", "A", map[string]string{"backend": "js", "kind": "unit"}).Add(2)
	r.NewGauge("workers", "Workers", nil).Set(4)

	var sb strings.Builder
	r.WritePrometheus(&sb)
	body := sb.String()

	if !strings.Contains(body, `a_total{backend="js",kind="unit"} 2`) {
		t.Errorf("expected labelled counter in output:\n%s", body)
	}
	if strings.Index(body, "a_total") > strings.Index(body, "b_total") {
		t.Error("counters should be sorted by name")
	}
	if !strings.Contains(body, "# TYPE workers gauge\nworkers 4\n") {
		t.Errorf("expected gauge in output:\n%s", body)
	}
}

func TestHistogramOutputIsCumulative(t *testing.T) {
	r := NewMetricsRegistry()
	h := r.NewHistogram("request_duration", "Request duration", nil, []float64{0.25, 0.5, 1})
	h.Observe(0.125)
	h.Observe(0.375)
	h.Observe(0.75)
	h.Observe(2)

	var sb strings.Builder
	r.WritePrometheus(&sb)
	body := sb.String()

	for _, line := range []string{
		`request_duration_bucket{le="0.25"} 1`,
		`request_duration_bucket{le="0.5"} 2`,
		`request_duration_bucket{le="1"} 3`,
		`request_duration_bucket{le="+Inf"} 4`,
		`request_duration_sum 3.25`,
		`request_duration_count 4`,
	} {
		if !strings.Contains(body, line+"\n") {
			t.Errorf("missing %q in:\n%s", line, body)
		}
	}
}

func TestMetricsHandler_ContentType(t *testing.T) {
	r := NewMetricsRegistry()
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Fatalf("expected text/plain content type, got %s", ct)
	}
}

func TestKilnMetrics_RecordBuild(t *testing.T) {
	m := NewKilnMetrics()
	m.RecordBuild(2*time.Second, true)
	m.RecordBuild(3*time.Second, false)

	if m.BuildsTotal.Value() != 2 {
		t.Fatalf("expected 2 builds, got %f", m.BuildsTotal.Value())
	}
	if m.BuildFailures.Value() != 1 {
		t.Fatalf("expected 1 failure, got %f", m.BuildFailures.Value())
	}
}

func TestKilnMetrics_RecordUnit(t *testing.T) {
	m := NewKilnMetrics()
	m.RecordUnit(time.Millisecond, 120, false)
	m.RecordUnit(time.Millisecond, 0, false)
	m.RecordUnit(time.Millisecond, 0, true)

	if m.UnitsEmitted.Value() != 1 || m.UnitsSkipped.Value() != 1 || m.WriteFailures.Value() != 1 {
		t.Fatalf("emitted=%f skipped=%f failed=%f", m.UnitsEmitted.Value(), m.UnitsSkipped.Value(), m.WriteFailures.Value())
	}
	if m.ArtifactBytes.Value() != 120 {
		t.Fatalf("expected 120 bytes, got %f", m.ArtifactBytes.Value())
	}
	if m.UnitEmitDuration.Count() != 3 {
		t.Fatalf("expected 3 observations, got %d", m.UnitEmitDuration.Count())
	}
}

func TestKilnMetrics_RecordBodyCache(t *testing.T) {
	m := NewKilnMetrics()
	m.RecordBodyCache(10, 0, 0)
	if m.BodyCacheHitRatio.Value() != 0 {
		t.Fatal("no lookups should leave the ratio at 0")
	}
	m.RecordBodyCache(10, 3, 1)
	if m.BodyCacheEntries.Value() != 10 || m.BodyCacheHitRatio.Value() != 0.75 {
		t.Fatalf("entries=%f ratio=%f", m.BodyCacheEntries.Value(), m.BodyCacheHitRatio.Value())
	}
}

func TestKilnMetrics_Handler(t *testing.T) {
	m := NewKilnMetrics()
	m.RecordExtern(40, 5)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	body := w.Body.String()
	if !strings.Contains(body, "kiln_extern_entries_total 40") {
		t.Fatalf("expected kiln metrics in output:\n%s", body)
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "0"},
		{42, "42"},
		{1.5, "1.5"},
		{0.0005, "0.0005"},
	}
	for _, tt := range tests {
		if got := formatFloat(tt.input); got != tt.expected {
			t.Errorf("formatFloat(%v) = %s, expected %s", tt.input, got, tt.expected)
		}
	}
}
