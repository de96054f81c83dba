// Package metrics 服务的 Prometheus 指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fleetcomply"

var (
	// HTTPRequests 已处理请求计数
	// 标签: method, route (gin 完整路径), status
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	// HTTPLatency 请求延迟
	// 标签: method, route
	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "route"})

	// ImportRows 按阶段统计表格行数
	// 标签: stage (previewed, imported, failed)
	ImportRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "Spreadsheet rows previewed, imported or rejected",
	}, []string{"stage"})

	// ComplianceEvaluations 按整体状态统计车辆评估次数
	ComplianceEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "compliance",
		Name:      "evaluations_total",
		Help:      "Vehicle compliance evaluations by overall status",
	}, []string{"overall_status"})

	// NotificationsCreated 扫描写入的提醒数
	// 标签: kind (expiring, expired)
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "compliance",
		Name:      "notifications_created_total",
		Help:      "Compliance notifications created by the sweep",
	}, []string{"kind"})

	// SweepDuration 一次完整提醒扫描的耗时
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "compliance",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of a compliance alert sweep",
		Buckets:   prometheus.DefBuckets,
	})

	// RateLimited 被限流拒绝的上传请求数
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Upload requests rejected by the per-tenant rate limiter",
	})
)

// 导入行阶段
const (
	StagePreviewed = "previewed"
	StageImported  = "imported"
	StageFailed    = "failed"
)

// Handler 暴露默认注册表
func Handler() http.Handler {
	return promhttp.Handler()
}
