package service

import (
	"errors"
	"fmt"
	"time"

	"stylehub/internal/domain/cancellation/model"
	"stylehub/internal/domain/cancellation/repository"
	orderModel "stylehub/internal/domain/order/model"
	orderRepo "stylehub/internal/domain/order/repository"
	"stylehub/internal/pkg/push"
	"stylehub/pkg/apperr"
	"stylehub/pkg/logger"
	"stylehub/pkg/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 处理动作
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

type CancellationService interface {
	Request(orderID string, lineIndex *int, reason, reasonText, userID string) (*model.CancellationRequest, error)
	// Resolve 落定请求；每个请求只能被处理一次
	Resolve(requestID, action, notes, actor string) error
	// ResolveByOrder 按订单落定当前打开的请求（品牌响应接口使用）
	ResolveByOrder(orderID, action, notes, actor string) error
	ListByOrder(orderID string) ([]model.CancellationRequest, error)
}

type cancellationService struct {
	repo   repository.CancellationRepository
	orders orderRepo.OrderRepository
}

func NewCancellationService(repo repository.CancellationRepository, orders orderRepo.OrderRepository) CancellationService {
	return &cancellationService{repo: repo, orders: orders}
}

// Request 创建取消请求
// 已发货（Shipped 及之后）、已取消的订单不可取消；同一订单同时只允许一个打开的请求
func (s *cancellationService) Request(orderID string, lineIndex *int, reason, reasonText, userID string) (*model.CancellationRequest, error) {
	if !model.ValidReason(reason) {
		return nil, fmt.Errorf("unknown cancellation reason %q", reason)
	}

	order, err := s.getOrder(orderID)
	if err != nil {
		return nil, err
	}
	if userID != "" && order.UserID != userID {
		return nil, apperr.New(apperr.KindNotEligible, "order does not belong to the requester")
	}

	switch order.DeliveryStatus {
	case orderModel.DeliveryShipped, orderModel.DeliveryOutForDelivery, orderModel.DeliveryDelivered:
		return nil, apperr.Newf(apperr.KindNotEligible, "order already %s, cancellation window closed", order.DeliveryStatus)
	case orderModel.DeliveryCancelled:
		return nil, apperr.New(apperr.KindNotEligible, "order is already cancelled")
	case orderModel.DeliveryCancellationRequested:
		return nil, apperr.New(apperr.KindNotEligible, "an open cancellation request already exists for this order")
	}

	if lineIndex != nil {
		if *lineIndex < 0 || *lineIndex >= len(order.Items) {
			return nil, fmt.Errorf("line index %d out of range", *lineIndex)
		}
		if order.Items[*lineIndex].Cancelled {
			return nil, apperr.New(apperr.KindNotEligible, "line item is already cancelled")
		}
	}

	req := &model.CancellationRequest{
		OrderID:            orderID,
		UserID:             order.UserID,
		LineIndex:          lineIndex,
		Reason:             reason,
		ReasonText:         reasonText,
		Status:             model.StatusPending,
		PrevDeliveryStatus: string(order.DeliveryStatus),
		RequestedAt:        time.Now(),
	}

	err = s.repo.CreateWithOrderTransition(req, order.Version, map[string]interface{}{
		"delivery_status":  orderModel.DeliveryCancellationRequested,
		"lifecycle_status": orderModel.LifecycleCancelRequested,
	})
	if err != nil {
		return nil, s.mapErr(err)
	}

	logger.Log.Info("cancellation requested",
		zap.String("order_id", orderID),
		zap.String("request_id", req.ID),
		zap.String("reason", reason),
	)
	return req, nil
}

func (s *cancellationService) Resolve(requestID, action, notes, actor string) error {
	req, err := s.repo.GetByID(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.KindNotFound, "cancellation request %s not found", requestID)
		}
		return err
	}
	return s.resolve(req, action, notes, actor)
}

func (s *cancellationService) ResolveByOrder(orderID, action, notes, actor string) error {
	req, err := s.repo.GetOpenByOrder(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.KindNotFound, "no open cancellation request for order %s", orderID)
		}
		return err
	}
	return s.resolve(req, action, notes, actor)
}

func (s *cancellationService) ListByOrder(orderID string) ([]model.CancellationRequest, error) {
	return s.repo.GetListByOrder(orderID)
}

func (s *cancellationService) resolve(req *model.CancellationRequest, action, notes, actor string) error {
	if req.Status != model.StatusPending {
		return apperr.Newf(apperr.KindAlreadyResolved, "request %s is already %s", req.ID, req.Status)
	}

	order, err := s.getOrder(req.OrderID)
	if err != nil {
		return err
	}

	var status model.CancellationStatus
	var orderUpdates map[string]interface{}

	switch action {
	case ActionApprove:
		status = model.StatusApproved
		orderUpdates = s.approveUpdates(req, order)
	case ActionReject:
		status = model.StatusRejected
		// 恢复请求前的配送状态快照
		orderUpdates = map[string]interface{}{
			"delivery_status":  req.PrevDeliveryStatus,
			"lifecycle_status": orderModel.LifecycleCancelRejected,
		}
	default:
		return fmt.Errorf("unknown resolution action %q", action)
	}

	err = s.repo.ResolveWithOrderTransition(req.ID, status, notes, actor, req.OrderID, order.Version, orderUpdates)
	if err != nil {
		return s.mapErr(err)
	}

	metrics.GetGlobalCollector().RecordCancellation(action)
	logger.Log.Info("cancellation resolved",
		zap.String("order_id", req.OrderID),
		zap.String("request_id", req.ID),
		zap.String("action", action),
	)

	s.notifyCustomer(req, action)
	return nil
}

// approveUpdates 批准时的订单变更
// 整单：订单进入 Cancelled/cancelled；行级：仅标记行取消，订单回到请求前的
// 配送状态继续履约，金额调整一律交给退款工作流
func (s *cancellationService) approveUpdates(req *model.CancellationRequest, order *orderModel.Order) map[string]interface{} {
	updates := map[string]interface{}{}

	if req.LineIndex == nil {
		updates["delivery_status"] = orderModel.DeliveryCancelled
		updates["lifecycle_status"] = orderModel.LifecycleCancelled
	} else {
		items := make(orderModel.OrderItems, len(order.Items))
		copy(items, order.Items)
		items[*req.LineIndex].Cancelled = true
		updates["items"] = items
		updates["delivery_status"] = req.PrevDeliveryStatus
		updates["lifecycle_status"] = orderModel.LifecyclePending
	}

	// 已经完成的退款不回退
	if order.RefundStatus != orderModel.RefundCompleted {
		updates["refund_status"] = orderModel.RefundNotInitiated
	}
	return updates
}

func (s *cancellationService) notifyCustomer(req *model.CancellationRequest, action string) {
	if push.GlobalPushService == nil {
		return
	}

	title := "取消申请已通过"
	body := fmt.Sprintf("您的订单取消申请已通过，订单 %s 的后续退款将原路退回。", req.OrderID)
	if action == ActionReject {
		title = "取消申请未通过"
		body = fmt.Sprintf("您的订单 %s 的取消申请未通过，订单将继续配送。", req.OrderID)
	}
	go push.GlobalPushService.PushToAccount(req.UserID, title, body, nil)
}

func (s *cancellationService) getOrder(orderID string) (*orderModel.Order, error) {
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "order %s not found", orderID)
		}
		return nil, err
	}
	return order, nil
}

func (s *cancellationService) mapErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrAlreadyResolved):
		return apperr.Wrap(apperr.KindAlreadyResolved, "cancellation request already resolved", err)
	case errors.Is(err, orderRepo.ErrStaleVersion):
		return apperr.Wrap(apperr.KindConflict, "order was modified concurrently", err)
	}
	return err
}
