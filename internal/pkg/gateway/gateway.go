package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// 网关通道
const (
	ChannelAlipay = "alipay"
	ChannelWechat = "wechat"
)

// Status 网关侧交易状态
type Status string

const (
	StatusSuccess    Status = "success"
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
	StatusNotFound   Status = "not_found"
)

// ErrNotConfigured 请求的通道未配置
var ErrNotConfigured = errors.New("payment gateway not configured for channel")

// RefundResult 退款执行/查询结果
type RefundResult struct {
	OutRefundNo     string
	GatewayRefundID string
	Status          Status
}

// PayoutResult 打款执行/查询结果
type PayoutResult struct {
	OutPayoutNo     string
	GatewayPayoutID string
	Status          Status
}

// PaymentGateway 支付网关端口
// refundNo/payoutNo 是本系统生成的幂等键：同一单号重复提交在网关侧至多
// 生效一次。调用方收到超时等不确定结果时必须先 Query 再决定是否重试
type PaymentGateway interface {
	Name() string
	Refund(ctx context.Context, orderNo, refundNo string, amount, orderTotal decimal.Decimal, reason string) (*RefundResult, error)
	QueryRefund(ctx context.Context, orderNo, refundNo string) (*RefundResult, error)
	Payout(ctx context.Context, payoutNo, account string, amount decimal.Decimal, remark string) (*PayoutResult, error)
	QueryPayout(ctx context.Context, payoutNo string) (*PayoutResult, error)
}

// Registry 按通道注册的网关集合
type Registry struct {
	gateways map[string]PaymentGateway
}

func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]PaymentGateway)}
}

// Register 注册通道网关
func (r *Registry) Register(channel string, g PaymentGateway) {
	r.gateways[channel] = g
}

// Get 获取通道网关，未配置返回 ErrNotConfigured
func (r *Registry) Get(channel string) (PaymentGateway, error) {
	g, ok := r.gateways[channel]
	if !ok {
		return nil, ErrNotConfigured
	}
	return g, nil
}
