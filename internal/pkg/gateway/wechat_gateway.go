package gateway

import (
	"context"
	"errors"

	"stylehub/internal/pkg/config"

	"github.com/shopspring/decimal"
	"github.com/wechatpay-apiv3/wechatpay-go/core"
	"github.com/wechatpay-apiv3/wechatpay-go/core/option"
	"github.com/wechatpay-apiv3/wechatpay-go/services/refunddomestic"
	"github.com/wechatpay-apiv3/wechatpay-go/services/transferbatch"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

// WechatGateway 微信支付退款/打款适配
type WechatGateway struct {
	client *core.Client
	config config.WechatPayConfig
}

func NewWechatGateway() (*WechatGateway, error) {
	cfg := config.GlobalConfig.Wechat
	if cfg.MchID == "" {
		return nil, errors.New("wechat pay config missing")
	}

	// 1. 加载商户私钥
	mchPrivateKey, err := utils.LoadPrivateKey(cfg.MchPrivateKey)
	if err != nil {
		return nil, err
	}

	// 2. 初始化 Client
	ctx := context.Background()
	opts := []core.ClientOption{
		option.WithWechatPayAutoAuthCipher(cfg.MchID, cfg.MchCertificateSerial, mchPrivateKey, cfg.APIv3Key),
	}

	client, err := core.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &WechatGateway{
		client: client,
		config: cfg,
	}, nil
}

func (g *WechatGateway) Name() string {
	return ChannelWechat
}

// fen 金额转分
func fen(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

// Refund 发起退款，OutRefundNo 即幂等键，微信按该单号去重
func (g *WechatGateway) Refund(ctx context.Context, orderNo, refundNo string, amount, orderTotal decimal.Decimal, reason string) (*RefundResult, error) {
	svc := refunddomestic.RefundsApiService{Client: g.client}

	resp, _, err := svc.Create(ctx, refunddomestic.CreateRequest{
		OutTradeNo:  core.String(orderNo),
		OutRefundNo: core.String(refundNo),
		Reason:      core.String(reason),
		Amount: &refunddomestic.AmountReq{
			Refund:   core.Int64(fen(amount)),
			Total:    core.Int64(fen(orderTotal)),
			Currency: core.String("CNY"),
		},
	})
	if err != nil {
		return nil, err
	}

	return &RefundResult{
		OutRefundNo:     refundNo,
		GatewayRefundID: derefString(resp.RefundId),
		Status:          refundStatus(resp.Status),
	}, nil
}

func (g *WechatGateway) QueryRefund(ctx context.Context, orderNo, refundNo string) (*RefundResult, error) {
	svc := refunddomestic.RefundsApiService{Client: g.client}

	resp, _, err := svc.QueryByOutRefundNo(ctx, refunddomestic.QueryByOutRefundNoRequest{
		OutRefundNo: core.String(refundNo),
	})
	if err != nil {
		return nil, err
	}

	return &RefundResult{
		OutRefundNo:     refundNo,
		GatewayRefundID: derefString(resp.RefundId),
		Status:          refundStatus(resp.Status),
	}, nil
}

// Payout 通过商家转账（单笔批次）打款到品牌方账户
func (g *WechatGateway) Payout(ctx context.Context, payoutNo, account string, amount decimal.Decimal, remark string) (*PayoutResult, error) {
	svc := transferbatch.TransferBatchApiService{Client: g.client}

	resp, _, err := svc.InitiateBatchTransfer(ctx, transferbatch.InitiateBatchTransferRequest{
		Appid:       core.String(g.config.AppID),
		OutBatchNo:  core.String(payoutNo),
		BatchName:   core.String(remark),
		BatchRemark: core.String(remark),
		TotalAmount: core.Int64(fen(amount)),
		TotalNum:    core.Int64(1),
		TransferDetailList: []transferbatch.TransferDetailInput{
			{
				OutDetailNo:    core.String(payoutNo),
				TransferAmount: core.Int64(fen(amount)),
				TransferRemark: core.String(remark),
				Openid:         core.String(account),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return &PayoutResult{
		OutPayoutNo:     payoutNo,
		GatewayPayoutID: derefString(resp.BatchId),
		Status:          StatusProcessing,
	}, nil
}

func (g *WechatGateway) QueryPayout(ctx context.Context, payoutNo string) (*PayoutResult, error) {
	svc := transferbatch.TransferBatchApiService{Client: g.client}

	resp, _, err := svc.GetTransferBatchByOutNo(ctx, transferbatch.GetTransferBatchByOutNoRequest{
		OutBatchNo:      core.String(payoutNo),
		NeedQueryDetail: core.Bool(false),
	})
	if err != nil {
		return nil, err
	}

	status := StatusProcessing
	if resp.TransferBatch != nil && resp.TransferBatch.BatchStatus != nil {
		switch *resp.TransferBatch.BatchStatus {
		case "FINISHED":
			status = StatusSuccess
		case "CLOSED":
			status = StatusFailed
		}
	}

	var batchID string
	if resp.TransferBatch != nil {
		batchID = derefString(resp.TransferBatch.BatchId)
	}
	return &PayoutResult{
		OutPayoutNo:     payoutNo,
		GatewayPayoutID: batchID,
		Status:          status,
	}, nil
}

func refundStatus(s *refunddomestic.Status) Status {
	if s == nil {
		return StatusProcessing
	}
	switch *s {
	case refunddomestic.STATUS_SUCCESS:
		return StatusSuccess
	case refunddomestic.STATUS_CLOSED, refunddomestic.STATUS_ABNORMAL:
		return StatusFailed
	}
	return StatusProcessing
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// 确保实现了接口
var _ PaymentGateway = (*WechatGateway)(nil)
