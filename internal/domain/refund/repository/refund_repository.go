package repository

import (
	"stylehub/internal/domain/refund/model"
	orderModel "stylehub/internal/domain/order/model"

	"gorm.io/gorm"
)

type RefundRepository interface {
	CreateTransaction(txn *model.RefundTransaction) error
	GetTransactionByKey(key string) (*model.RefundTransaction, error)
	GetTransactionsByOrder(orderID string) ([]model.RefundTransaction, error)
	// ListRefundObligations 已取消且已付款但退款未完成的订单，供后台对账任务扫描
	ListRefundObligations(limit int) ([]orderModel.Order, error)
}

type refundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) RefundRepository {
	return &refundRepository{db: db}
}

func (r *refundRepository) CreateTransaction(txn *model.RefundTransaction) error {
	return r.db.Create(txn).Error
}

func (r *refundRepository) GetTransactionByKey(key string) (*model.RefundTransaction, error) {
	var txn model.RefundTransaction
	if err := r.db.Where("idempotency_key = ?", key).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *refundRepository) GetTransactionsByOrder(orderID string) ([]model.RefundTransaction, error) {
	var txns []model.RefundTransaction
	err := r.db.Where("order_id = ?", orderID).Order("created_at DESC").Find(&txns).Error
	return txns, err
}

func (r *refundRepository) ListRefundObligations(limit int) ([]orderModel.Order, error) {
	var orders []orderModel.Order
	err := r.db.
		Where("lifecycle_status = ?", orderModel.LifecycleCancelled).
		Where("payment_status = ?", orderModel.PaymentPaid).
		Where("refund_status <> ?", orderModel.RefundCompleted).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
