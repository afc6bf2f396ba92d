package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

// TestRecordSessionClosed_CountsSplits はクローズと分割行の両方がカウントされることを検証する。
func TestRecordSessionClosed_CountsSplits(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionClosed(1) // 分割なし
	c.RecordSessionClosed(3) // 2回の日付またぎ

	if got := counterValue(t, reg, "studylog_sessions_closed_total"); got != 2 {
		t.Errorf("sessions_closed_total = %v, want 2", got)
	}
	if got := counterValue(t, reg, "studylog_session_splits_total"); got != 2 {
		t.Errorf("session_splits_total = %v, want 2", got)
	}
}

// TestRecordStudySeconds_Accumulates は学習秒数が加算されることを検証する。
func TestRecordStudySeconds_Accumulates(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStudySeconds(1800)
	c.RecordStudySeconds(600)

	if got := counterValue(t, reg, "studylog_study_seconds_total"); got != 2400 {
		t.Errorf("study_seconds_total = %v, want 2400", got)
	}
}

// TestCounters_Increment は単純なカウンタ群の増加を検証する。
func TestCounters_Increment(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionStarted()
	c.RecordNoteCompleted()
	c.RecordNoteCompleted()
	c.RecordFreezeActivated()

	if got := counterValue(t, reg, "studylog_sessions_started_total"); got != 1 {
		t.Errorf("sessions_started_total = %v, want 1", got)
	}
	if got := counterValue(t, reg, "studylog_notes_completed_total"); got != 2 {
		t.Errorf("notes_completed_total = %v, want 2", got)
	}
	if got := counterValue(t, reg, "studylog_freeze_activations_total"); got != 1 {
		t.Errorf("freeze_activations_total = %v, want 1", got)
	}
}

// TestObserveAnalyticsLatency_LabelsByView はビューラベル付きで観測されることを検証する。
func TestObserveAnalyticsLatency_LabelsByView(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveAnalyticsLatency("weekly", 15*time.Millisecond)
	c.ObserveAnalyticsLatency("velocity", 5*time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == "studylog_analytics_latency_seconds" {
			if len(mf.GetMetric()) != 2 {
				t.Errorf("expected 2 labeled series, got %d", len(mf.GetMetric()))
			}
			return
		}
	}
	t.Error("studylog_analytics_latency_seconds metric not found")
}

// TestSetupMetricsRoute_ServesPrometheusFormat は/metricsがスクレイプ可能なことを検証する。
func TestSetupMetricsRoute_ServesPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSessionStarted()

	srv := httptest.NewServer(SetupMetricsRoute(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("failed to scrape metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "studylog_sessions_started_total 1") {
		t.Error("expected studylog_sessions_started_total in scrape output")
	}
}
