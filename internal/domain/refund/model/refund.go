package model

import (
	baseModel "stylehub/pkg/model"

	"github.com/shopspring/decimal"
)

// 退款执行结果
const (
	TxnSucceeded = "succeeded"
	TxnFailed    = "failed"
)

// RefundTransaction 一次网关退款执行的审计记录，只追加
// IdempotencyKey 由订单号和执行前已退金额决定，同一逻辑退款的重试共享同一个键
type RefundTransaction struct {
	baseModel.BaseModel
	OrderID         string          `gorm:"type:uuid;index;not null" json:"orderId"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2)" json:"amount"`
	IdempotencyKey  string          `gorm:"unique;not null" json:"idempotencyKey"`
	Channel         string          `json:"channel"`
	GatewayRefundID string          `json:"gatewayRefundId,omitempty"`
	Status          string          `gorm:"not null" json:"status"`
}
