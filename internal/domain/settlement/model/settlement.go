package model

import (
	baseModel "stylehub/pkg/model"

	"github.com/shopspring/decimal"
)

// 打款状态
const (
	PayoutPending   = "pending"
	PayoutSucceeded = "succeeded"
	PayoutFailed    = "failed"
)

// 结算期回款状态，按待付余额推导
const (
	PaymentStatusPending   = "Pending"
	PaymentStatusPartial   = "Partial"
	PaymentStatusCompleted = "Completed"
)

// BrandSettlementRow 一个品牌在结算期内的营收聚合
type BrandSettlementRow struct {
	BrandID        string          `db:"brand_id" json:"brandId"`
	BrandName      string          `db:"brand_name" json:"brandName"`
	Revenue        decimal.Decimal `db:"revenue" json:"revenue"`
	EligibleOrders int64           `db:"eligible_orders" json:"eligibleOrders"`
}

// Settlement 一个品牌结算期的费用拆解
type Settlement struct {
	BrandID           string          `json:"brandId"`
	BrandName         string          `json:"brandName"`
	Period            string          `json:"period"`
	Revenue           decimal.Decimal `json:"revenue"`
	EligibleOrders    int64           `json:"eligibleOrders"`
	DeliveryCharge    decimal.Decimal `json:"deliveryCharge"`
	GatewayFee        decimal.Decimal `json:"gatewayFee"`
	PlatformFee       decimal.Decimal `json:"platformFee"`
	PayableAmount     decimal.Decimal `json:"payableAmount"`
	CompletedPayments decimal.Decimal `json:"completedPayments"`
	PendingAmount     decimal.Decimal `json:"pendingAmount"`
	PaymentStatus     string          `json:"paymentStatus"`
	CanPay            bool            `json:"canPay"`
	PayDisabledReason string          `json:"payDisabledReason,omitempty"`
}

// PayoutRecord 一次品牌打款的审计记录
// PayoutNo 是平台侧幂等单号；GatewayPayoutID 唯一约束拦截网关侧重复入账
type PayoutRecord struct {
	baseModel.BaseModel
	BrandID         string          `gorm:"type:uuid;uniqueIndex:idx_payout_brand_period;not null" json:"brandId"`
	Period          string          `gorm:"uniqueIndex:idx_payout_brand_period;not null" json:"period"`
	Revenue         decimal.Decimal `gorm:"type:numeric(14,2)" json:"revenue"`
	DeliveryCharge  decimal.Decimal `gorm:"type:numeric(12,2)" json:"deliveryCharge"`
	GatewayFee      decimal.Decimal `gorm:"type:numeric(12,2)" json:"gatewayFee"`
	PlatformFee     decimal.Decimal `gorm:"type:numeric(12,2)" json:"platformFee"`
	PayableAmount   decimal.Decimal `gorm:"type:numeric(14,2)" json:"payableAmount"`
	Channel         string          `json:"channel"`
	PayoutNo        string          `gorm:"unique;not null" json:"payoutNo"`
	GatewayPayoutID string          `gorm:"uniqueIndex:idx_payout_gateway_id,where:gateway_payout_id <> ''" json:"gatewayPayoutId,omitempty"`
	Status          string          `gorm:"not null" json:"status"`
	Notes           string          `json:"notes,omitempty"`
}
