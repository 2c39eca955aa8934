package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounter(t *testing.T) {
	r := New()
	c := r.Counter("lexa_requests_total", "Total requests")
	c.Inc()
	c.Add(2)
	if c.Value() != 3 {
		t.Fatalf("value = %d", c.Value())
	}
	// Same name returns the same counter.
	if r.Counter("lexa_requests_total", "") != c {
		t.Fatal("expected identical counter")
	}
}

func TestGauge(t *testing.T) {
	r := New()
	g := r.Gauge("lexa_active", "Active sessions")
	g.Set(5)
	g.Inc()
	g.Dec()
	if g.Value() != 5 {
		t.Fatalf("value = %d", g.Value())
	}
}

func TestHistogramBuckets(t *testing.T) {
	r := New()
	h := r.Histogram("lexa_latency_seconds", "Latency", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(100) // above all buckets, counted only in +Inf

	out := r.Render()
	if !strings.Contains(out, `lexa_latency_seconds_bucket{le="0.1"} 1`) {
		t.Errorf("missing cumulative 0.1 bucket:\n%s", out)
	}
	if !strings.Contains(out, `lexa_latency_seconds_bucket{le="1"} 2`) {
		t.Errorf("missing cumulative 1 bucket:\n%s", out)
	}
	if !strings.Contains(out, `lexa_latency_seconds_bucket{le="+Inf"} 3`) {
		t.Errorf("missing +Inf bucket:\n%s", out)
	}
	if !strings.Contains(out, "lexa_latency_seconds_count 3") {
		t.Errorf("missing count:\n%s", out)
	}
}

func TestWithLabels(t *testing.T) {
	got := WithLabels("lexa_fetch_total", "stage", "detail")
	if got != `lexa_fetch_total{stage="detail"}` {
		t.Fatalf("got %s", got)
	}
	// Odd kvs fall back to bare name.
	if WithLabels("x", "only") != "x" {
		t.Fatal("odd label pairs should be ignored")
	}
}

func TestRenderTypesAndHelp(t *testing.T) {
	r := New()
	r.Counter(WithLabels("lexa_docs_total", "source", "pdf"), "Documents ingested").Inc()
	r.Counter(WithLabels("lexa_docs_total", "source", "web"), "").Add(2)

	out := r.Render()
	if !strings.Contains(out, "# HELP lexa_docs_total Documents ingested") {
		t.Errorf("missing help:\n%s", out)
	}
	if !strings.Contains(out, "# TYPE lexa_docs_total counter") {
		t.Errorf("missing type:\n%s", out)
	}
	if !strings.Contains(out, `lexa_docs_total{source="pdf"} 1`) || !strings.Contains(out, `lexa_docs_total{source="web"} 2`) {
		t.Errorf("missing labeled series:\n%s", out)
	}
	// TYPE header written once per base name.
	if strings.Count(out, "# TYPE lexa_docs_total") != 1 {
		t.Errorf("duplicate TYPE header:\n%s", out)
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.Gauge("lexa_up", "").Set(1)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lexa_up 1") {
		t.Fatalf("body:\n%s", rec.Body.String())
	}
}
