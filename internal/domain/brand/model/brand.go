package model

import (
	baseModel "stylehub/pkg/model"
)

// 角色常量，JWT claim 中携带
const (
	RoleCustomer = 0
	RoleBrand    = 1
	RoleAdmin    = 2
)

// 打款通道
const (
	PayoutChannelAlipay = "alipay"
	PayoutChannelWechat = "wechat"
)

// Brand 品牌方
// PayoutAccount/PayoutChannel 是平台打款目的地，缺失时禁止打款
type Brand struct {
	baseModel.BaseModel
	Name          string `gorm:"unique;not null" json:"name"`
	ContactEmail  string `json:"contactEmail"`
	PayoutChannel string `json:"payoutChannel"` // alipay, wechat
	PayoutAccount string `json:"payoutAccount"`
	PayoutEnabled bool   `gorm:"default:true" json:"payoutEnabled"`
}

// CanReceivePayout 打款目的地信息是否完整可用
func (b *Brand) CanReceivePayout() bool {
	return b.PayoutEnabled && b.PayoutChannel != "" && b.PayoutAccount != ""
}
