package gateway

import (
	"context"
	"errors"

	"stylehub/internal/pkg/config"

	"github.com/shopspring/decimal"
	"github.com/smartwalle/alipay/v3"
)

// AlipayGateway 支付宝退款/打款适配
type AlipayGateway struct {
	client *alipay.Client
	config config.AlipayConfig
}

func NewAlipayGateway() (*AlipayGateway, error) {
	cfg := config.GlobalConfig.Alipay
	if cfg.AppID == "" {
		return nil, errors.New("alipay config missing")
	}

	client, err := alipay.New(cfg.AppID, cfg.PrivateKey, cfg.IsProduction)
	if err != nil {
		return nil, err
	}

	// 加载支付宝公钥 (用于验证签名)
	if err = client.LoadAliPayPublicKey(cfg.PublicKey); err != nil {
		return nil, err
	}

	return &AlipayGateway{
		client: client,
		config: cfg,
	}, nil
}

func (g *AlipayGateway) Name() string {
	return ChannelAlipay
}

// Refund 发起退款，OutRequestNo 即幂等键，支付宝按该单号去重
// orderTotal 仅微信通道需要，这里忽略
func (g *AlipayGateway) Refund(ctx context.Context, orderNo, refundNo string, amount, orderTotal decimal.Decimal, reason string) (*RefundResult, error) {
	p := alipay.TradeRefund{}
	p.OutTradeNo = orderNo
	p.OutRequestNo = refundNo
	p.RefundAmount = amount.StringFixed(2)
	p.RefundReason = reason

	rsp, err := g.client.TradeRefund(ctx, p)
	if err != nil {
		return nil, err
	}
	if !rsp.IsSuccess() {
		return &RefundResult{OutRefundNo: refundNo, Status: StatusFailed}, nil
	}

	return &RefundResult{
		OutRefundNo:     refundNo,
		GatewayRefundID: rsp.TradeNo,
		Status:          StatusSuccess,
	}, nil
}

func (g *AlipayGateway) QueryRefund(ctx context.Context, orderNo, refundNo string) (*RefundResult, error) {
	p := alipay.TradeFastPayRefundQuery{}
	p.OutTradeNo = orderNo
	p.OutRequestNo = refundNo

	rsp, err := g.client.TradeFastPayRefundQuery(ctx, p)
	if err != nil {
		return nil, err
	}
	if !rsp.IsSuccess() {
		return &RefundResult{OutRefundNo: refundNo, Status: StatusNotFound}, nil
	}

	status := StatusProcessing
	if rsp.RefundStatus == "REFUND_SUCCESS" {
		status = StatusSuccess
	}
	return &RefundResult{
		OutRefundNo:     refundNo,
		GatewayRefundID: rsp.TradeNo,
		Status:          status,
	}, nil
}

// Payout 单笔转账到支付宝账户，OutBizNo 即幂等键
func (g *AlipayGateway) Payout(ctx context.Context, payoutNo, account string, amount decimal.Decimal, remark string) (*PayoutResult, error) {
	p := alipay.FundTransUniTransfer{}
	p.OutBizNo = payoutNo
	p.TransAmount = amount.StringFixed(2)
	p.BizScene = "DIRECT_TRANSFER"
	p.ProductCode = "TRANS_ACCOUNT_NO_PWD"
	p.OrderTitle = remark
	p.Remark = remark
	p.PayeeInfo = &alipay.PayeeInfo{
		Identity:     account,
		IdentityType: "ALIPAY_LOGON_ID",
	}

	rsp, err := g.client.FundTransUniTransfer(ctx, p)
	if err != nil {
		return nil, err
	}
	if !rsp.IsSuccess() {
		return &PayoutResult{OutPayoutNo: payoutNo, Status: StatusFailed}, nil
	}

	return &PayoutResult{
		OutPayoutNo:     payoutNo,
		GatewayPayoutID: rsp.OrderId,
		Status:          StatusSuccess,
	}, nil
}

func (g *AlipayGateway) QueryPayout(ctx context.Context, payoutNo string) (*PayoutResult, error) {
	p := alipay.FundTransCommonQuery{}
	p.OutBizNo = payoutNo
	p.BizScene = "DIRECT_TRANSFER"
	p.ProductCode = "TRANS_ACCOUNT_NO_PWD"

	rsp, err := g.client.FundTransCommonQuery(ctx, p)
	if err != nil {
		return nil, err
	}
	if !rsp.IsSuccess() {
		return &PayoutResult{OutPayoutNo: payoutNo, Status: StatusNotFound}, nil
	}

	status := StatusProcessing
	switch rsp.Status {
	case "SUCCESS":
		status = StatusSuccess
	case "FAIL", "REFUND":
		status = StatusFailed
	}
	return &PayoutResult{
		OutPayoutNo:     payoutNo,
		GatewayPayoutID: rsp.OrderId,
		Status:          status,
	}, nil
}

// 确保实现了接口
var _ PaymentGateway = (*AlipayGateway)(nil)
