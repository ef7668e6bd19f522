package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	baseModel "stylehub/pkg/model"

	"github.com/shopspring/decimal"
)

// DeliveryStatus 物流配送状态
type DeliveryStatus string

const (
	DeliveryPending               DeliveryStatus = "Pending"
	DeliveryAccepted              DeliveryStatus = "Accepted"
	DeliveryProcessing            DeliveryStatus = "Processing"
	DeliveryShipped               DeliveryStatus = "Shipped"
	DeliveryOutForDelivery        DeliveryStatus = "OutForDelivery"
	DeliveryDelivered             DeliveryStatus = "Delivered"
	DeliveryCancelled             DeliveryStatus = "Cancelled"
	DeliveryCancellationRequested DeliveryStatus = "CancellationRequested"
)

// fulfilmentRank 正常履约链路的先后顺序，状态只能沿该链路前进
var fulfilmentRank = map[DeliveryStatus]int{
	DeliveryPending:        0,
	DeliveryAccepted:       1,
	DeliveryProcessing:     2,
	DeliveryShipped:        3,
	DeliveryOutForDelivery: 4,
	DeliveryDelivered:      5,
}

// Rank 返回状态在履约链路中的位置，取消类状态不在链路上
func (s DeliveryStatus) Rank() (int, bool) {
	r, ok := fulfilmentRank[s]
	return r, ok
}

// Valid 是否为合法的配送状态
func (s DeliveryStatus) Valid() bool {
	if _, ok := fulfilmentRank[s]; ok {
		return true
	}
	return s == DeliveryCancelled || s == DeliveryCancellationRequested
}

// LifecycleStatus 面向买家/品牌的订单状态，区别于物流状态
type LifecycleStatus string

const (
	LifecyclePending         LifecycleStatus = "pending"
	LifecycleCompleted       LifecycleStatus = "completed"
	LifecycleCancelRequested LifecycleStatus = "cancel_requested"
	LifecycleCancelled       LifecycleStatus = "cancelled"
	LifecycleCancelRejected  LifecycleStatus = "cancel_rejected"
	LifecycleRefundRequested LifecycleStatus = "refund_requested"
	LifecycleRefundApproved  LifecycleStatus = "refund_approved"
	LifecycleRefunded        LifecycleStatus = "refunded"
	LifecycleRefundRejected  LifecycleStatus = "refund_rejected"
)

// PaymentStatus 支付状态
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
)

// RefundStatus 退款进度
type RefundStatus string

const (
	RefundNotInitiated RefundStatus = "not_initiated"
	RefundInitiated    RefundStatus = "initiated"
	RefundCompleted    RefundStatus = "completed"
)

// OrderItem 订单行
type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Cancelled bool            `json:"cancelled"` // 行级取消标记
}

// OrderItems jsonb 列
type OrderItems []OrderItem

func (i OrderItems) Value() (driver.Value, error) {
	return json.Marshal(i)
}

func (i *OrderItems) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("order items: unsupported scan type")
	}
	return json.Unmarshal(b, i)
}

// Order 订单模型
// TotalAmount 在创建时固定；RefundedAmount 单调不减且不超过 TotalAmount
type Order struct {
	baseModel.BaseModel
	OrderNo           string          `gorm:"unique;not null" json:"orderNo"`
	UserID            string          `gorm:"type:uuid;index" json:"userId"`
	BrandID           string          `gorm:"type:uuid;index" json:"brandId"`
	Items             OrderItems      `gorm:"type:jsonb" json:"items"`
	DeliveryStatus    DeliveryStatus  `gorm:"default:'Pending'" json:"deliveryStatus"`
	LifecycleStatus   LifecycleStatus `gorm:"default:'pending'" json:"lifecycleStatus"`
	PaymentStatus     PaymentStatus   `gorm:"default:'Pending'" json:"paymentStatus"`
	PaymentChannel    string          `json:"paymentChannel"` // alipay, wechat

	TotalAmount       decimal.Decimal `gorm:"type:numeric(12,2)" json:"totalAmount"`
	RefundStatus      RefundStatus    `gorm:"default:'not_initiated'" json:"refundStatus"`
	RefundedAmount    decimal.Decimal `gorm:"type:numeric(12,2);default:0" json:"refundedAmount"`
	RefundReason      string          `json:"refundReason,omitempty"`
	Version           int             `gorm:"default:0" json:"-"` // 乐观锁版本号
	EstimatedDelivery time.Time       `json:"estimatedDelivery"`
	DeliveredAt       *time.Time      `json:"deliveredAt,omitempty"`
}

// RemainingRefundable 尚可退款金额
func (o *Order) RemainingRefundable() decimal.Decimal {
	return o.TotalAmount.Sub(o.RefundedAmount)
}

// DelayedDelivery 是否超期送达（或尚未送达但已超预计时间）
// 超期订单在列表中会被标记为可主动提示退款
func (o *Order) DelayedDelivery(now time.Time) bool {
	if o.DeliveredAt != nil {
		return o.DeliveredAt.After(o.EstimatedDelivery)
	}
	return now.After(o.EstimatedDelivery)
}

// HasOpenRefund 是否存在进行中的退款流程
func (o *Order) HasOpenRefund() bool {
	switch o.LifecycleStatus {
	case LifecycleRefundRequested, LifecycleRefundApproved, LifecycleRefunded:
		return true
	}
	return false
}
