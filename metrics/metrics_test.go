package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNoopDefault(t *testing.T) {
	// must not panic
	Default.IncCounter(KeyCacheHit)
	Default.MeasureSince(KeyFetch, time.Now())
}

func TestPrometheusCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(Options{Registry: reg})

	p.IncCounter(KeyCacheHit)
	p.IncCounter(KeyCacheHit)
	p.IncCounter(KeyCacheMiss)
	p.MeasureSince(KeyFetch, time.Now().Add(-10*time.Millisecond))

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`signet_events_total{key="cache.hit"} 2`,
		`signet_events_total{key="cache.miss"} 1`,
		`signet_duration_seconds_count{key="fetch"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
