// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値。
const (
	LoginSuccess  = "success"
	LoginBanned   = "banned"
	LoginUpstream = "upstream_error"
	LoginError    = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordLogin(result string)
	RecordLinksCreated(count int)
	RecordLinkClick()
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordOutboundFetch(kind string, success bool, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins        *prometheus.CounterVec
	linksCreated  prometheus.Counter
	linkClicks    prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_logins_total",
			Help: "OAuthログイン試行の結果別件数",
		}, []string{"result"}),
		linksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vault_links_created_total",
			Help: "作成されたリンクの合計数（フィード取り込みを含む）",
		}),
		linkClicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vault_link_clicks_total",
			Help: "記録されたリンククリックの合計数",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_http_requests_total",
			Help: "ルート・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_outbound_fetch_total",
			Help: "外部URL取得の種類・結果別件数",
		}, []string{"kind", "result"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_outbound_fetch_duration_seconds",
			Help:    "外部URL取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.logins,
		c.linksCreated,
		c.linkClicks,
		c.httpRequests,
		c.httpLatency,
		c.fetches,
		c.fetchDuration,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordLinksCreated は作成されたリンク数を記録する。
func (c *Collector) RecordLinksCreated(count int) {
	c.linksCreated.Add(float64(count))
}

// RecordLinkClick はリンククリックを記録する。
func (c *Collector) RecordLinkClick() {
	c.linkClicks.Inc()
}

// RecordHTTPRequest はHTTPリクエストの結果と処理時間を記録する。
// routeにはchiのルートパターンを渡し、IDごとにラベルが増えないようにする。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordOutboundFetch は外部URL取得（preview, favicon, import）の結果を記録する。
func (c *Collector) RecordOutboundFetch(kind string, success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.fetches.WithLabelValues(kind, result).Inc()
	c.fetchDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントのみを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// Nop は何も記録しないMetricsCollector。メトリクス無効時やテストで使う。
type Nop struct{}

func (Nop) RecordLogin(string)                                   {}
func (Nop) RecordLinksCreated(int)                               {}
func (Nop) RecordLinkClick()                                     {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
func (Nop) RecordOutboundFetch(string, bool, time.Duration)      {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
