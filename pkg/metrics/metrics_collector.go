package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器
type MetricsCollector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 订单生命周期指标
	orderTransitionsTotal *prometheus.CounterVec
	cancellationsTotal    *prometheus.CounterVec

	// 退款/打款指标
	refundExecutionsTotal *prometheus.CounterVec
	refundedAmountTotal   prometheus.Counter
	payoutsTotal          *prometheus.CounterVec
	payoutAmountTotal     prometheus.Counter

	// 网关指标
	gatewayCallDuration *prometheus.HistogramVec
	gatewayErrorsTotal  *prometheus.CounterVec
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		orderTransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_transitions_total",
				Help: "Total number of order delivery status transitions",
			},
			[]string{"from", "to", "result"},
		),

		cancellationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_cancellations_total",
				Help: "Total number of cancellation request resolutions",
			},
			[]string{"action"},
		),

		refundExecutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refund_executions_total",
				Help: "Total number of refund gateway executions",
			},
			[]string{"result"},
		),

		refundedAmountTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "refunded_amount_total",
				Help: "Accumulated refunded amount",
			},
		),

		payoutsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brand_payouts_total",
				Help: "Total number of brand payout executions",
			},
			[]string{"result"},
		),

		payoutAmountTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "brand_payout_amount_total",
				Help: "Accumulated brand payout amount",
			},
		),

		gatewayCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_call_duration_seconds",
				Help:    "Payment gateway call duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"gateway", "operation"},
		),

		gatewayErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_errors_total",
				Help: "Total number of payment gateway errors",
			},
			[]string{"gateway", "operation"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordOrderTransition 记录订单配送状态流转
func (m *MetricsCollector) RecordOrderTransition(from, to string, ok bool) {
	result := "applied"
	if !ok {
		result = "rejected"
	}
	m.orderTransitionsTotal.WithLabelValues(from, to, result).Inc()
}

// RecordCancellation 记录取消请求处理结果
func (m *MetricsCollector) RecordCancellation(action string) {
	m.cancellationsTotal.WithLabelValues(action).Inc()
}

// RecordRefundExecution 记录退款执行结果及金额
func (m *MetricsCollector) RecordRefundExecution(success bool, amount float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.refundExecutionsTotal.WithLabelValues(result).Inc()
	if success {
		m.refundedAmountTotal.Add(amount)
	}
}

// RecordPayout 记录品牌打款结果及金额
func (m *MetricsCollector) RecordPayout(success bool, amount float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.payoutsTotal.WithLabelValues(result).Inc()
	if success {
		m.payoutAmountTotal.Add(amount)
	}
}

// RecordGatewayCall 记录网关调用耗时
func (m *MetricsCollector) RecordGatewayCall(gateway, operation string, duration time.Duration, err error) {
	m.gatewayCallDuration.WithLabelValues(gateway, operation).Observe(duration.Seconds())
	if err != nil {
		m.gatewayErrorsTotal.WithLabelValues(gateway, operation).Inc()
	}
}

// 全局指标收集器实例
var GlobalCollector *MetricsCollector

// InitMetrics 初始化全局指标收集器
func InitMetrics() {
	GlobalCollector = NewMetricsCollector()
}

// GetGlobalCollector 获取全局指标收集器
func GetGlobalCollector() *MetricsCollector {
	if GlobalCollector == nil {
		InitMetrics()
	}
	return GlobalCollector
}
