package repository

import (
	"errors"
	"time"

	"stylehub/internal/domain/cancellation/model"
	orderModel "stylehub/internal/domain/order/model"
	orderRepo "stylehub/internal/domain/order/repository"

	"gorm.io/gorm"
)

// ErrAlreadyResolved 请求已被处理，二次处理被拒绝
var ErrAlreadyResolved = errors.New("cancellation request already resolved")

type CancellationRepository interface {
	GetByID(id string) (*model.CancellationRequest, error)
	GetOpenByOrder(orderID string) (*model.CancellationRequest, error)
	GetListByOrder(orderID string) ([]model.CancellationRequest, error)
	// CreateWithOrderTransition 在同一事务内创建请求并 CAS 更新订单状态
	CreateWithOrderTransition(req *model.CancellationRequest, orderVersion int, orderUpdates map[string]interface{}) error
	// ResolveWithOrderTransition 在同一事务内落定请求并 CAS 更新订单状态
	// 请求已非 pending 时返回 ErrAlreadyResolved；订单版本失配返回 orderRepo.ErrStaleVersion
	ResolveWithOrderTransition(requestID string, status model.CancellationStatus, notes, actor string, orderID string, orderVersion int, orderUpdates map[string]interface{}) error
}

type cancellationRepository struct {
	db *gorm.DB
}

func NewCancellationRepository(db *gorm.DB) CancellationRepository {
	return &cancellationRepository{db: db}
}

func (r *cancellationRepository) GetByID(id string) (*model.CancellationRequest, error) {
	var req model.CancellationRequest
	if err := r.db.Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *cancellationRepository) GetOpenByOrder(orderID string) (*model.CancellationRequest, error) {
	var req model.CancellationRequest
	err := r.db.Where("order_id = ? AND status = ?", orderID, model.StatusPending).First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *cancellationRepository) GetListByOrder(orderID string) ([]model.CancellationRequest, error) {
	var reqs []model.CancellationRequest
	err := r.db.Where("order_id = ?", orderID).Order("created_at DESC").Find(&reqs).Error
	return reqs, err
}

func (r *cancellationRepository) CreateWithOrderTransition(req *model.CancellationRequest, orderVersion int, orderUpdates map[string]interface{}) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return err
		}

		orderUpdates["version"] = gorm.Expr("version + 1")
		result := tx.Model(&orderModel.Order{}).
			Where("id = ? AND version = ?", req.OrderID, orderVersion).
			Updates(orderUpdates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return orderRepo.ErrStaleVersion
		}
		return nil
	})
}

func (r *cancellationRepository) ResolveWithOrderTransition(requestID string, status model.CancellationStatus, notes, actor string, orderID string, orderVersion int, orderUpdates map[string]interface{}) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		// 仅允许从 pending 落定一次
		result := tx.Model(&model.CancellationRequest{}).
			Where("id = ? AND status = ?", requestID, model.StatusPending).
			Updates(map[string]interface{}{
				"status":       status,
				"admin_notes":  notes,
				"processed_by": actor,
				"processed_at": &now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyResolved
		}

		orderUpdates["version"] = gorm.Expr("version + 1")
		result = tx.Model(&orderModel.Order{}).
			Where("id = ? AND version = ?", orderID, orderVersion).
			Updates(orderUpdates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return orderRepo.ErrStaleVersion
		}
		return nil
	})
}
