// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// ハンドラー層から利用する。
type Recorder interface {
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
	RecordLoginLatency(duration time.Duration)
	RecordSessionIssued()
	RecordSessionRevoked()
	RecordAdminCheck(granted bool)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess   prometheus.Counter
	loginFailure   *prometheus.CounterVec
	loginLatency   prometheus.Histogram
	sessionIssued  prometheus.Counter
	sessionRevoked prometheus.Counter
	adminCheck     *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatekeep_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeep_login_failure_total",
			Help: "ログイン失敗の合計数（内部種別ラベル付き）",
		}, []string{"reason"}),
		loginLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatekeep_login_latency_seconds",
			Help:    "ログイン処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatekeep_session_issued_total",
			Help: "発行されたセッションの合計数",
		}),
		sessionRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatekeep_session_revoked_total",
			Help: "明示的に失効されたセッションの合計数",
		}),
		adminCheck: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeep_admin_check_total",
			Help: "管理者権限チェックの合計数（結果ラベル付き）",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeep_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFailure,
		c.loginLatency,
		c.sessionIssued,
		c.sessionRevoked,
		c.adminCheck,
		c.httpStatus,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を内部種別付きで記録する。
// reasonは内部観測専用であり、レスポンスには露出しない。
func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFailure.WithLabelValues(reason).Inc()
}

// RecordLoginLatency はログイン処理のレイテンシを記録する。
func (c *Collector) RecordLoginLatency(duration time.Duration) {
	c.loginLatency.Observe(duration.Seconds())
}

// RecordSessionIssued はセッション発行を記録する。
func (c *Collector) RecordSessionIssued() {
	c.sessionIssued.Inc()
}

// RecordSessionRevoked はセッション失効を記録する。
func (c *Collector) RecordSessionRevoked() {
	c.sessionRevoked.Inc()
}

// RecordAdminCheck は管理者権限チェックの結果を記録する。
func (c *Collector) RecordAdminCheck(granted bool) {
	result := "denied"
	if granted {
		result = "granted"
	}
	c.adminCheck.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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

// compile-time interface check
var _ Recorder = (*Collector)(nil)
