package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	// Every recording method must be safe on a nil collector.
	m.RecordResetStarted("core")
	m.RecordResetCompleted("completed", time.Second)
	m.RecordPhaseDuration("purging", "completed", time.Second)
	m.RecordPurgePath("removed")
	m.RecordFailure("purge_failed")
}

func TestDisabledMetricsIsNoop(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	m.RecordResetStarted("core")
	m.RecordResetCompleted("completed", time.Second)
}

func TestMetricsExposition(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{
		Enabled:   true,
		Namespace: "stackreset",
		Path:      "/metrics",
	})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.RecordResetStarted("core")
	m.RecordPurgePath("removed")
	m.RecordPurgePath("removed")
	m.RecordFailure("teardown_failed")
	m.RecordResetCompleted("failed", 3*time.Second)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		`stackreset_resets_started_total{environment="core"} 1`,
		`stackreset_purge_paths_total{status="removed"} 2`,
		`stackreset_errors_by_kind_total{kind="teardown_failed"} 1`,
		`stackreset_resets_completed_total{status="failed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	if timer.Duration() < 10*time.Millisecond {
		t.Errorf("duration = %v, want >= 10ms", timer.Duration())
	}
}
