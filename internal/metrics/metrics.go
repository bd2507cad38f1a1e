// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "modboard"

// Collector はPrometheusメトリクスを収集する実装。
// upstream.Recorder と cache.Recorder を満たす。
type Collector struct {
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	cacheInvalidated *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	httpLatency      *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "投稿APIへのリクエスト数（操作・ステータス別）",
		}, []string{"op", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "投稿APIへのリクエストのレイテンシ（秒）",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "読み取りキャッシュのヒット数",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "読み取りキャッシュのミス数",
		}),
		cacheInvalidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "タグ別のキャッシュ無効化数",
		}, []string{"tag"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_responses_total",
			Help:      "HTTPステータスコード別のレスポンス数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTPリクエストの処理時間（秒）",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamLatency,
		c.cacheHits,
		c.cacheMisses,
		c.cacheInvalidated,
		c.httpStatus,
		c.httpLatency,
	)

	return c
}

// RecordUpstreamRequest は投稿APIへのリクエスト結果を記録する。
// 通信エラーでステータスが無い場合は status=0 として記録する。
func (c *Collector) RecordUpstreamRequest(op string, status int, duration time.Duration) {
	c.upstreamRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	c.upstreamLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordCacheInvalidation はタグの無効化を記録する。
// パスタグはカーディナリティを抑えるため "path" にまとめる。
func (c *Collector) RecordCacheInvalidation(tag string) {
	if len(tag) > 5 && tag[:5] == "path:" {
		tag = "path"
	}
	c.cacheInvalidated.WithLabelValues(tag).Inc()
}

// RecordHTTPResponse はHTTPレスポンスのステータスと処理時間を記録する。
func (c *Collector) RecordHTTPResponse(method, route string, statusCode int, duration time.Duration) {
	c.httpStatus.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware はHTTPレスポンスを記録するミドルウェアを返す。
// ルートラベルにはchiのルートパターンを使い、未マッチのリクエストは "unmatched" とする。
func (c *Collector) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			c.RecordHTTPResponse(r.Method, route, status, time.Since(start))
		})
	}
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
