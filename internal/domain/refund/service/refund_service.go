package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	orderModel "stylehub/internal/domain/order/model"
	orderRepo "stylehub/internal/domain/order/repository"
	"stylehub/internal/domain/refund/model"
	"stylehub/internal/domain/refund/repository"
	"stylehub/internal/pkg/gateway"
	"stylehub/internal/pkg/idempotency"
	"stylehub/internal/pkg/push"
	"stylehub/pkg/apperr"
	"stylehub/pkg/logger"
	"stylehub/pkg/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 处理动作
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

type RefundService interface {
	// Request 买家在订单送达后发起退款申请；被驳回的申请可以重新发起
	Request(orderID, reason, userID string) error
	// Respond 品牌方批准/驳回退款申请
	Respond(orderID, action, notes string) error
	// Execute 对已批准（或已取消但已扣款）的订单执行网关退款
	// amount 为 nil 时默认退剩余可退金额；按幂等键保证至多退一次
	Execute(ctx context.Context, orderID string, amount *decimal.Decimal) (*model.RefundTransaction, error)
	ListTransactions(orderID string) ([]model.RefundTransaction, error)
	// RefundObligations 已取消且已付款但退款未完成的订单
	RefundObligations(limit int) ([]orderModel.Order, error)
}

// IdempotencyStore 幂等键存储，生产实现为 redis 版 idempotency.Store
type IdempotencyStore interface {
	Claim(ctx context.Context, kind, id string, rec idempotency.Record) (*idempotency.Record, bool, error)
	Complete(ctx context.Context, kind, id string, rec idempotency.Record) error
	Release(ctx context.Context, kind, id string) error
}

type refundService struct {
	repo     repository.RefundRepository
	orders   orderRepo.OrderRepository
	gateways *gateway.Registry
	idem     IdempotencyStore
	timeout  time.Duration
}

func NewRefundService(repo repository.RefundRepository, orders orderRepo.OrderRepository, gateways *gateway.Registry, idem IdempotencyStore, timeout time.Duration) RefundService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &refundService{
		repo:     repo,
		orders:   orders,
		gateways: gateways,
		idem:     idem,
		timeout:  timeout,
	}
}

func (s *refundService) Request(orderID, reason, userID string) error {
	order, err := s.getOrder(orderID)
	if err != nil {
		return err
	}
	if userID != "" && order.UserID != userID {
		return apperr.New(apperr.KindNotEligible, "order does not belong to the requester")
	}

	// 只有已送达的订单才能发起退款
	if order.DeliveryStatus != orderModel.DeliveryDelivered {
		return apperr.Newf(apperr.KindNotEligible, "order is %s, refund requires delivery", order.DeliveryStatus)
	}
	if order.HasOpenRefund() {
		return apperr.Newf(apperr.KindNotEligible, "order already has a refund in progress (%s)", order.LifecycleStatus)
	}

	err = s.orders.UpdateWithVersion(orderID, order.Version, map[string]interface{}{
		"lifecycle_status": orderModel.LifecycleRefundRequested,
		"refund_reason":    reason,
	})
	if err != nil {
		return s.mapRepoErr(err)
	}

	logger.Log.Info("refund requested",
		zap.String("order_id", orderID),
		zap.String("reason", reason),
	)
	return nil
}

func (s *refundService) Respond(orderID, action, notes string) error {
	order, err := s.getOrder(orderID)
	if err != nil {
		return err
	}
	if order.LifecycleStatus != orderModel.LifecycleRefundRequested {
		return apperr.Newf(apperr.KindNotEligible, "order has no open refund request (current: %s)", order.LifecycleStatus)
	}

	var next orderModel.LifecycleStatus
	switch action {
	case ActionApprove:
		next = orderModel.LifecycleRefundApproved
	case ActionReject:
		next = orderModel.LifecycleRefundRejected
	default:
		return fmt.Errorf("unknown refund action %q", action)
	}

	updates := map[string]interface{}{
		"lifecycle_status": next,
	}
	if notes != "" {
		updates["refund_reason"] = order.RefundReason + " | " + notes
	}

	if err := s.orders.UpdateWithVersion(orderID, order.Version, updates); err != nil {
		return s.mapRepoErr(err)
	}

	logger.Log.Info("refund responded",
		zap.String("order_id", orderID),
		zap.String("action", action),
	)
	return nil
}

func (s *refundService) Execute(ctx context.Context, orderID string, amount *decimal.Decimal) (*model.RefundTransaction, error) {
	order, err := s.getOrder(orderID)
	if err != nil {
		return nil, err
	}

	if order.PaymentStatus != orderModel.PaymentPaid {
		return nil, apperr.New(apperr.KindNotEligible, "no captured payment to refund")
	}
	if !refundExecutable(order) {
		return nil, apperr.Newf(apperr.KindNotEligible, "order is not refund-executable (lifecycle: %s, refund: %s)", order.LifecycleStatus, order.RefundStatus)
	}

	remaining := order.RemainingRefundable()
	amt := remaining
	if amount != nil {
		amt = *amount
	}
	if amt.LessThanOrEqual(decimal.Zero) {
		return nil, apperr.New(apperr.KindNotEligible, "nothing left to refund")
	}
	if amt.GreaterThan(remaining) {
		return nil, apperr.Newf(apperr.KindNotEligible, "amount %s exceeds refundable balance %s", amt, remaining)
	}

	gw, err := s.gateways.Get(order.PaymentChannel)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindGatewayError, "no gateway for order channel", err)
	}

	// 幂等键由订单号和执行前已退金额决定：同一逻辑退款的重试共享同一个键，
	// 上一笔成功后键随已退金额变化
	refundNo := fmt.Sprintf("RF-%s-%d", order.OrderNo, order.RefundedAmount.Mul(decimal.NewFromInt(100)).IntPart())

	prior, claimed, err := s.idem.Claim(ctx, "refund", refundNo, idempotency.Record{Amount: amt.StringFixed(2)})
	if err != nil {
		return nil, err
	}
	if !claimed {
		proceed, txn, err := s.resolvePrior(ctx, gw, order, refundNo, amt, prior)
		if !proceed {
			return txn, err
		}
	}

	// 有界超时调用网关
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	start := time.Now()
	res, err := gw.Refund(cctx, order.OrderNo, refundNo, amt, order.TotalAmount, order.RefundReason)
	cancel()
	metrics.GetGlobalCollector().RecordGatewayCall(gw.Name(), "refund", time.Since(start), err)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// 结果不明：保留 pending 占位，重试方必须先查询网关，避免重复退款
			return nil, apperr.Wrap(apperr.KindGatewayError, "refund outcome unknown, verify with gateway before retrying", err)
		}
		s.releaseClaim(ctx, refundNo)
		return nil, apperr.Wrap(apperr.KindGatewayError, "gateway refund failed", err)
	}

	switch res.Status {
	case gateway.StatusSuccess:
		return s.finalize(ctx, order, amt, refundNo, gw.Name(), res.GatewayRefundID)
	case gateway.StatusProcessing:
		// 网关已受理，结果未定：保留占位等待下次查询
		return nil, apperr.New(apperr.KindGatewayError, "gateway is still processing the refund, retry later")
	default:
		s.releaseClaim(ctx, refundNo)
		return nil, apperr.New(apperr.KindGatewayError, "gateway rejected the refund")
	}
}

func (s *refundService) ListTransactions(orderID string) ([]model.RefundTransaction, error) {
	return s.repo.GetTransactionsByOrder(orderID)
}

func (s *refundService) RefundObligations(limit int) ([]orderModel.Order, error) {
	return s.repo.ListRefundObligations(limit)
}

// refundExecutable 退款执行的准入条件
// 已批准的退款、已取消但钱已捕获的订单、部分退款后的剩余退款均可执行
func refundExecutable(order *orderModel.Order) bool {
	switch {
	case order.LifecycleStatus == orderModel.LifecycleRefundApproved:
		return true
	case order.LifecycleStatus == orderModel.LifecycleCancelled && order.RefundStatus != orderModel.RefundCompleted:
		return true
	case order.LifecycleStatus == orderModel.LifecycleRefunded && order.RefundStatus == orderModel.RefundInitiated:
		return true
	}
	return false
}

// resolvePrior 幂等键已存在时决定如何处理
// 返回 proceed=true 表示可以安全地重新发起网关调用
func (s *refundService) resolvePrior(ctx context.Context, gw gateway.PaymentGateway, order *orderModel.Order, refundNo string, amt decimal.Decimal, prior *idempotency.Record) (bool, *model.RefundTransaction, error) {
	switch prior.Status {
	case idempotency.StatusSucceeded:
		if prior.Amount != amt.StringFixed(2) {
			return false, nil, apperr.Newf(apperr.KindDuplicateRefund, "idempotency key %s was used with amount %s", refundNo, prior.Amount)
		}
		// 与先前执行完全一致：按成功空操作返回既有记录
		txn, err := s.repo.GetTransactionByKey(refundNo)
		if err != nil {
			return false, nil, apperr.Newf(apperr.KindDuplicateRefund, "refund %s already executed", refundNo)
		}
		return false, txn, nil

	case idempotency.StatusPending:
		// 先前调用结果不明，先查网关再决定
		qctx, cancel := context.WithTimeout(ctx, s.timeout)
		res, err := gw.QueryRefund(qctx, order.OrderNo, refundNo)
		cancel()
		if err != nil {
			return false, nil, apperr.Wrap(apperr.KindGatewayError, "cannot verify prior refund outcome", err)
		}
		switch res.Status {
		case gateway.StatusSuccess:
			txn, ferr := s.finalize(ctx, order, amt, refundNo, gw.Name(), res.GatewayRefundID)
			return false, txn, ferr
		case gateway.StatusProcessing:
			return false, nil, apperr.New(apperr.KindGatewayError, "prior refund still processing at gateway, retry later")
		case gateway.StatusNotFound:
			// 先前调用未到达网关，可以安全重发
			return true, nil, nil
		default:
			s.releaseClaim(ctx, refundNo)
			return false, nil, apperr.New(apperr.KindGatewayError, "prior refund failed at gateway")
		}

	default:
		// 失败残留或未知状态，重试安全
		return true, nil, nil
	}
}

// finalize 网关退款已成功，落库必须完成；CAS 冲突时基于最新快照重放
func (s *refundService) finalize(ctx context.Context, order *orderModel.Order, amt decimal.Decimal, refundNo, channel, gatewayID string) (*model.RefundTransaction, error) {
	var applyErr error
	for attempt := 0; attempt < 5; attempt++ {
		newRefunded := order.RefundedAmount.Add(amt)

		refundStatus := orderModel.RefundInitiated
		if newRefunded.GreaterThanOrEqual(order.TotalAmount) {
			refundStatus = orderModel.RefundCompleted
		}

		applyErr = s.orders.UpdateWithVersion(order.ID, order.Version, map[string]interface{}{
			"refunded_amount":  newRefunded,
			"refund_status":    refundStatus,
			"lifecycle_status": orderModel.LifecycleRefunded,
		})
		if applyErr == nil {
			break
		}
		if !errors.Is(applyErr, orderRepo.ErrStaleVersion) {
			return nil, applyErr
		}
		fresh, err := s.orders.GetByID(order.ID)
		if err != nil {
			return nil, err
		}
		order = fresh
	}
	if applyErr != nil {
		return nil, apperr.Wrap(apperr.KindConflict, "could not apply refund to order after retries", applyErr)
	}

	txn := &model.RefundTransaction{
		OrderID:         order.ID,
		Amount:          amt,
		IdempotencyKey:  refundNo,
		Channel:         channel,
		GatewayRefundID: gatewayID,
		Status:          model.TxnSucceeded,
	}
	if err := s.repo.CreateTransaction(txn); err != nil {
		// 唯一键冲突说明记录已在先前的 finalize 中写入
		if existing, gerr := s.repo.GetTransactionByKey(refundNo); gerr == nil {
			txn = existing
		} else {
			return nil, err
		}
	}

	if err := s.idem.Complete(ctx, "refund", refundNo, idempotency.Record{
		Status:    idempotency.StatusSucceeded,
		Amount:    amt.StringFixed(2),
		GatewayID: gatewayID,
	}); err != nil {
		logger.Log.Warn("failed to persist idempotency outcome", zap.String("refund_no", refundNo), zap.Error(err))
	}

	amtFloat, _ := amt.Float64()
	metrics.GetGlobalCollector().RecordRefundExecution(true, amtFloat)
	logger.Log.Info("refund executed",
		zap.String("order_id", order.ID),
		zap.String("refund_no", refundNo),
		zap.String("amount", amt.String()),
		zap.String("gateway_refund_id", gatewayID),
	)

	if push.GlobalPushService != nil {
		body := fmt.Sprintf("您的订单 %s 退款 %s 元已原路退回。", order.OrderNo, amt.StringFixed(2))
		go push.GlobalPushService.PushToAccount(order.UserID, "退款成功", body, nil)
	}

	return txn, nil
}

// releaseClaim 网关明确失败，释放占位让后续重试重新发起
// 结果不明（超时）时绝不释放，占位会逼迫重试方先查询网关
func (s *refundService) releaseClaim(ctx context.Context, refundNo string) {
	metrics.GetGlobalCollector().RecordRefundExecution(false, 0)
	if err := s.idem.Release(ctx, "refund", refundNo); err != nil {
		logger.Log.Warn("failed to release idempotency claim", zap.String("refund_no", refundNo), zap.Error(err))
	}
}

func (s *refundService) getOrder(orderID string) (*orderModel.Order, error) {
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "order %s not found", orderID)
		}
		return nil, err
	}
	return order, nil
}

func (s *refundService) mapRepoErr(err error) error {
	if errors.Is(err, orderRepo.ErrStaleVersion) {
		return apperr.Wrap(apperr.KindConflict, "order was modified concurrently", err)
	}
	return err
}
