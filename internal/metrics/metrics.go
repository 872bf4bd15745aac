// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/glowup/internal/program"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordBestEffortFailure(operation string)
	RecordAuthAttempt(kind, outcome string)
	RecordAnalysisStarted()
	RecordAnalysisFinished(outcome string, duration time.Duration)
	RecordDayCompleted(day int)
	RecordPhotoStored(sizeBytes int)
	RecordSessionsSwept(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus       *prometheus.CounterVec
	bestEffortFail   *prometheus.CounterVec
	authAttempts     *prometheus.CounterVec
	analysisStarted  prometheus.Counter
	analysisFinished *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	daysCompleted    *prometheus.CounterVec
	photoSize        prometheus.Histogram
	sessionsSwept    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glowup_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		bestEffortFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glowup_best_effort_failures_total",
			Help: "失敗しても処理を継続したベストエフォート書き込みの数",
		}, []string{"operation"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glowup_auth_attempts_total",
			Help: "サインアップ・サインインの試行数",
		}, []string{"kind", "outcome"}),
		analysisStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glowup_analysis_started_total",
			Help: "開始された肌分析ジョブの合計数",
		}),
		analysisFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glowup_analysis_finished_total",
			Help: "終了した肌分析ジョブの数（結果別）",
		}, []string{"outcome"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "glowup_analysis_duration_seconds",
			Help:    "肌分析ジョブの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		daysCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glowup_days_completed_total",
			Help: "完了としてマークされた日の数（週別）",
		}, []string{"week"}),
		photoSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "glowup_photo_stored_bytes",
			Help:    "保存した正規化済み写真のサイズ（バイト）",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 8),
		}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glowup_sessions_swept_total",
			Help: "期限切れで削除されたセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.bestEffortFail,
		c.authAttempts,
		c.analysisStarted,
		c.analysisFinished,
		c.analysisDuration,
		c.daysCompleted,
		c.photoSize,
		c.sessionsSwept,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordBestEffortFailure はベストエフォート書き込みの失敗を記録する。
func (c *Collector) RecordBestEffortFailure(operation string) {
	c.bestEffortFail.WithLabelValues(operation).Inc()
}

// RecordAuthAttempt は認証の試行を記録する。kindはsignup/signin、outcomeはsuccess/failure。
func (c *Collector) RecordAuthAttempt(kind, outcome string) {
	c.authAttempts.WithLabelValues(kind, outcome).Inc()
}

// RecordAnalysisStarted は分析ジョブの開始を記録する。
func (c *Collector) RecordAnalysisStarted() {
	c.analysisStarted.Inc()
}

// RecordAnalysisFinished は分析ジョブの終了を記録する。outcomeはcompleted/cancelled/failed。
func (c *Collector) RecordAnalysisFinished(outcome string, duration time.Duration) {
	c.analysisFinished.WithLabelValues(outcome).Inc()
	c.analysisDuration.Observe(duration.Seconds())
}

// RecordDayCompleted は日の完了を記録する。
func (c *Collector) RecordDayCompleted(day int) {
	c.daysCompleted.WithLabelValues(strconv.Itoa(program.Week(day))).Inc()
}

// RecordPhotoStored は保存した写真のサイズを記録する。
func (c *Collector) RecordPhotoStored(sizeBytes int) {
	c.photoSize.Observe(float64(sizeBytes))
}

// RecordSessionsSwept は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsSwept(count int64) {
	c.sessionsSwept.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordBestEffortFailure(string) {}
func (Nop) RecordAuthAttempt(string, string) {}
func (Nop) RecordAnalysisStarted() {}
func (Nop) RecordAnalysisFinished(string, time.Duration) {}
func (Nop) RecordDayCompleted(int) {}
func (Nop) RecordPhotoStored(int) {}
func (Nop) RecordSessionsSwept(int64) {}
