package repository

import (
	"errors"

	"stylehub/internal/domain/order/model"

	"gorm.io/gorm"
)

// ErrStaleVersion 乐观锁版本号失配，调用方应视为并发冲突
var ErrStaleVersion = errors.New("stale order version")

// ListFilter 列表查询条件，零值字段不参与过滤
type ListFilter struct {
	BrandID         string
	UserID          string
	LifecycleStatus string
	DeliveryStatus  string
}

// OrderRepository 接口定义
type OrderRepository interface {
	Create(order *model.Order) error
	GetByID(id string) (*model.Order, error)
	GetByOrderNo(orderNo string) (*model.Order, error)
	GetList(filter ListFilter, offset, limit int) ([]model.Order, int64, error)
	// UpdateWithVersion 以版本号 CAS 方式更新订单
	// 版本号不匹配时返回 ErrStaleVersion，不产生任何写入
	UpdateWithVersion(orderID string, version int, updates map[string]interface{}) error
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建新的仓库实例
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(order *model.Order) error {
	return r.db.Create(order).Error
}

func (r *orderRepository) GetByID(id string) (*model.Order, error) {
	var order model.Order
	if err := r.db.Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByOrderNo(orderNo string) (*model.Order, error) {
	var order model.Order
	if err := r.db.Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetList(filter ListFilter, offset, limit int) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	q := r.db.Model(&model.Order{})
	if filter.BrandID != "" {
		q = q.Where("brand_id = ?", filter.BrandID)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.LifecycleStatus != "" {
		q = q.Where("lifecycle_status = ?", filter.LifecycleStatus)
	}
	if filter.DeliveryStatus != "" {
		q = q.Where("delivery_status = ?", filter.DeliveryStatus)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateWithVersion 乐观锁更新，套用库存扣减的 RowsAffected 判定方式
func (r *orderRepository) UpdateWithVersion(orderID string, version int, updates map[string]interface{}) error {
	updates["version"] = gorm.Expr("version + 1")

	result := r.db.Model(&model.Order{}).
		Where("id = ? AND version = ?", orderID, version).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}
