// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 各サービス層から利用する。
type MetricsCollector interface {
	RecordSessionStarted()
	RecordSessionClosed(segments int)
	RecordStudySeconds(seconds int)
	RecordNoteCompleted()
	RecordFreezeActivated()
	ObserveAnalyticsLatency(view string, elapsed time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sessionsStarted  prometheus.Counter
	sessionsClosed   prometheus.Counter
	sessionSplits    prometheus.Counter
	studySeconds     prometheus.Counter
	notesCompleted   prometheus.Counter
	freezeActivated  prometheus.Counter
	analyticsLatency *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studylog_sessions_started_total",
			Help: "開始された学習セッションの合計数",
		}),
		sessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studylog_sessions_closed_total",
			Help: "クローズされた学習セッションの合計数",
		}),
		sessionSplits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studylog_session_splits_total",
			Help: "日付またぎ分割で追加生成されたセッション行の合計数",
		}),
		studySeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studylog_study_seconds_total",
			Help: "記録された学習時間の合計秒数",
		}),
		notesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studylog_notes_completed_total",
			Help: "新規に完了されたノートの合計数",
		}),
		freezeActivated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studylog_freeze_activations_total",
			Help: "有効化されたストリークフリーズの合計数",
		}),
		analyticsLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studylog_analytics_latency_seconds",
			Help:    "集計ビューのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"view"}),
	}

	reg.MustRegister(
		c.sessionsStarted,
		c.sessionsClosed,
		c.sessionSplits,
		c.studySeconds,
		c.notesCompleted,
		c.freezeActivated,
		c.analyticsLatency,
	)

	return c
}

// RecordSessionStarted はセッション開始を記録する。
func (c *Collector) RecordSessionStarted() {
	c.sessionsStarted.Inc()
}

// RecordSessionClosed はセッションクローズを記録する。
// 日付またぎで複数セグメントに分割された場合は追加行数もカウントする。
func (c *Collector) RecordSessionClosed(segments int) {
	c.sessionsClosed.Inc()
	if segments > 1 {
		c.sessionSplits.Add(float64(segments - 1))
	}
}

// RecordStudySeconds は記録された学習秒数を加算する。
func (c *Collector) RecordStudySeconds(seconds int) {
	c.studySeconds.Add(float64(seconds))
}

// RecordNoteCompleted はノートの新規完了を記録する。
func (c *Collector) RecordNoteCompleted() {
	c.notesCompleted.Inc()
}

// RecordFreezeActivated はフリーズの有効化を記録する。
func (c *Collector) RecordFreezeActivated() {
	c.freezeActivated.Inc()
}

// ObserveAnalyticsLatency は集計ビューのレイテンシを記録する。
func (c *Collector) ObserveAnalyticsLatency(view string, elapsed time.Duration) {
	c.analyticsLatency.WithLabelValues(view).Observe(elapsed.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
