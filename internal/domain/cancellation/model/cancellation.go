package model

import (
	"time"

	baseModel "stylehub/pkg/model"
)

// CancellationStatus 取消请求状态
type CancellationStatus string

const (
	StatusPending  CancellationStatus = "pending"
	StatusApproved CancellationStatus = "approved"
	StatusRejected CancellationStatus = "rejected"
)

// 取消原因枚举，Other 时由 ReasonText 补充说明
const (
	ReasonChangedMind  = "changed_mind"
	ReasonWrongSize    = "wrong_size"
	ReasonFoundCheaper = "found_cheaper"
	ReasonDelayed      = "delayed"
	ReasonOther        = "other"
)

// CancellationRequest 取消请求
// LineIndex 为 nil 表示整单取消；PrevDeliveryStatus 记录请求前的配送状态，
// 驳回时恢复到该快照
type CancellationRequest struct {
	baseModel.BaseModel
	OrderID            string             `gorm:"type:uuid;index;not null" json:"orderId"`
	UserID             string             `gorm:"type:uuid" json:"userId"`
	LineIndex          *int               `json:"lineIndex,omitempty"`
	Reason             string             `gorm:"not null" json:"reason"`
	ReasonText         string             `json:"reasonText,omitempty"`
	Status             CancellationStatus `gorm:"default:'pending'" json:"status"`
	PrevDeliveryStatus string             `gorm:"not null" json:"prevDeliveryStatus"`
	RequestedAt        time.Time          `json:"requestedAt"`
	ProcessedAt        *time.Time         `json:"processedAt,omitempty"`
	ProcessedBy        string             `json:"processedBy,omitempty"`
	AdminNotes         string             `json:"adminNotes,omitempty"`
}

// ValidReason 是否为合法的取消原因
func ValidReason(reason string) bool {
	switch reason {
	case ReasonChangedMind, ReasonWrongSize, ReasonFoundCheaper, ReasonDelayed, ReasonOther:
		return true
	}
	return false
}
