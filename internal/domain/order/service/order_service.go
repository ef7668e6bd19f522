package service

import (
	"errors"
	"fmt"
	"time"

	"stylehub/internal/domain/order/model"
	"stylehub/internal/domain/order/repository"
	"stylehub/pkg/apperr"
	"stylehub/pkg/logger"
	"stylehub/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderView 列表视图：订单 + 派生的退款提示标记
type OrderView struct {
	model.Order
	RefundEligible bool `json:"refundEligible"`
}

type OrderService interface {
	CreateOrder(userID, brandID string, items []model.OrderItem, total decimal.Decimal, estimatedDelivery time.Time) (*model.Order, error)
	MarkPaid(orderID string) error
	UpdateDeliveryStatus(orderID string, next model.DeliveryStatus) error
	GetOrder(orderID string) (*model.Order, error)
	ListOrders(filter repository.ListFilter, page, limit int) ([]OrderView, int64, error)
}

type orderService struct {
	repo repository.OrderRepository
}

func NewOrderService(repo repository.OrderRepository) OrderService {
	return &orderService{repo: repo}
}

func (s *orderService) CreateOrder(userID, brandID string, items []model.OrderItem, total decimal.Decimal, estimatedDelivery time.Time) (*model.Order, error) {
	if len(items) == 0 {
		return nil, errors.New("order must contain at least one item")
	}

	// 校验传入总额与行金额之和一致，金额在创建后不可变
	sum := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, errors.New("item quantity must be positive")
		}
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if !sum.Equal(total) {
		return nil, fmt.Errorf("total amount %s does not match item sum %s", total, sum)
	}

	// 生成订单号
	orderNo := fmt.Sprintf("%s%s", time.Now().Format("20060102150405"), uuid.New().String()[:8])

	order := &model.Order{
		OrderNo:           orderNo,
		UserID:            userID,
		BrandID:           brandID,
		Items:             items,
		DeliveryStatus:    model.DeliveryPending,
		LifecycleStatus:   model.LifecyclePending,
		PaymentStatus:     model.PaymentPending,
		TotalAmount:       total,
		RefundStatus:      model.RefundNotInitiated,
		RefundedAmount:    decimal.Zero,
		EstimatedDelivery: estimatedDelivery,
	}
	if err := s.repo.Create(order); err != nil {
		return nil, err
	}

	logger.Log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("brand_id", brandID),
		zap.String("total", total.String()),
	)
	return order, nil
}

// MarkPaid 记录支付结果；支付捕获本身由外部收银台完成
func (s *orderService) MarkPaid(orderID string) error {
	order, err := s.getOrder(orderID)
	if err != nil {
		return err
	}
	if order.PaymentStatus == model.PaymentPaid {
		// 幂等：重复标记不算错误
		return nil
	}

	err = s.repo.UpdateWithVersion(orderID, order.Version, map[string]interface{}{
		"payment_status": model.PaymentPaid,
	})
	return s.mapRepoErr(err)
}

// UpdateDeliveryStatus 沿履约链路推进配送状态
// 取消相关状态 (Cancelled / CancellationRequested) 只能由取消工作流写入
func (s *orderService) UpdateDeliveryStatus(orderID string, next model.DeliveryStatus) error {
	if !next.Valid() {
		return apperr.Newf(apperr.KindInvalidTransition, "unknown delivery status %q", next)
	}

	order, err := s.getOrder(orderID)
	if err != nil {
		return err
	}

	if next == order.DeliveryStatus {
		// 重复应用当前状态是幂等空操作
		return nil
	}

	nextRank, nextOnPath := next.Rank()
	curRank, curOnPath := order.DeliveryStatus.Rank()

	if !nextOnPath {
		metrics.GetGlobalCollector().RecordOrderTransition(string(order.DeliveryStatus), string(next), false)
		return apperr.Newf(apperr.KindInvalidTransition, "status %q is reserved for the cancellation workflow", next)
	}
	if !curOnPath {
		// 订单已取消或取消审批中，履约流转冻结
		metrics.GetGlobalCollector().RecordOrderTransition(string(order.DeliveryStatus), string(next), false)
		return apperr.Newf(apperr.KindInvalidTransition, "order is %s, fulfilment is frozen", order.DeliveryStatus)
	}
	if nextRank < curRank {
		metrics.GetGlobalCollector().RecordOrderTransition(string(order.DeliveryStatus), string(next), false)
		return apperr.Newf(apperr.KindInvalidTransition, "cannot move back from %s to %s", order.DeliveryStatus, next)
	}

	updates := map[string]interface{}{
		"delivery_status": next,
	}
	if next == model.DeliveryDelivered {
		now := time.Now()
		updates["delivered_at"] = &now
		updates["lifecycle_status"] = model.LifecycleCompleted
	}

	if err := s.repo.UpdateWithVersion(orderID, order.Version, updates); err != nil {
		metrics.GetGlobalCollector().RecordOrderTransition(string(order.DeliveryStatus), string(next), false)
		return s.mapRepoErr(err)
	}

	metrics.GetGlobalCollector().RecordOrderTransition(string(order.DeliveryStatus), string(next), true)
	logger.Log.Info("delivery status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(order.DeliveryStatus)),
		zap.String("to", string(next)),
	)
	return nil
}

func (s *orderService) GetOrder(orderID string) (*model.Order, error) {
	return s.getOrder(orderID)
}

func (s *orderService) ListOrders(filter repository.ListFilter, page, limit int) ([]OrderView, int64, error) {
	offset := (page - 1) * limit
	orders, total, err := s.repo.GetList(filter, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now()
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, OrderView{
			Order: o,
			// 已送达且超期（或未送达但超过预计送达时间）的订单提示可退款
			RefundEligible: o.DeliveryStatus == model.DeliveryDelivered && o.DelayedDelivery(now),
		})
	}
	return views, total, nil
}

func (s *orderService) getOrder(orderID string) (*model.Order, error) {
	order, err := s.repo.GetByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "order %s not found", orderID)
		}
		return nil, err
	}
	return order, nil
}

func (s *orderService) mapRepoErr(err error) error {
	if errors.Is(err, repository.ErrStaleVersion) {
		return apperr.Wrap(apperr.KindConflict, "order was modified concurrently", err)
	}
	return err
}
