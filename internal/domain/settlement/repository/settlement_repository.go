package repository

import (
	"errors"
	"strings"
	"time"

	"stylehub/internal/domain/settlement/model"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

// ErrDuplicatePayout 品牌+结算期或网关流水号的唯一约束被触发
var ErrDuplicatePayout = errors.New("payout already recorded")

// 结算营收口径：窗口内已送达付款的订单，除整单取消/退款外都计入营收，
// 退款申请被驳回或仍在处理中的订单不出局，部分退款按净额计入
const settlementSummaryQuery = `
SELECT
    o.brand_id                                   AS brand_id,
    b.name                                       AS brand_name,
    COALESCE(SUM(o.total_amount - o.refunded_amount), 0) AS revenue,
    COUNT(*)                                     AS eligible_orders
FROM orders o
JOIN brands b ON b.id = o.brand_id
WHERE o.lifecycle_status NOT IN ('cancelled', 'refunded')
  AND o.payment_status = 'Paid'
  AND o.delivered_at >= $1
  AND o.delivered_at < $2
GROUP BY o.brand_id, b.name
ORDER BY revenue DESC`

type SettlementRepository interface {
	// SettlementSummary 按品牌聚合结算期 [from, to) 内的营收
	SettlementSummary(from, to time.Time) ([]model.BrandSettlementRow, error)
	BrandSummary(brandID string, from, to time.Time) (*model.BrandSettlementRow, error)

	CreatePayout(rec *model.PayoutRecord) error
	GetPayoutByNo(payoutNo string) (*model.PayoutRecord, error)
	GetPayoutByBrandPeriod(brandID, period string) (*model.PayoutRecord, error)
	UpdatePayout(rec *model.PayoutRecord) error
	ListPayoutsByBrand(brandID string, offset, limit int) ([]model.PayoutRecord, int64, error)
}

type settlementRepository struct {
	db  *gorm.DB
	sdb *sqlx.DB
}

func NewSettlementRepository(db *gorm.DB, sdb *sqlx.DB) SettlementRepository {
	return &settlementRepository{db: db, sdb: sdb}
}

func (r *settlementRepository) SettlementSummary(from, to time.Time) ([]model.BrandSettlementRow, error) {
	rows := []model.BrandSettlementRow{}
	if err := r.sdb.Select(&rows, settlementSummaryQuery, from, to); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *settlementRepository) BrandSummary(brandID string, from, to time.Time) (*model.BrandSettlementRow, error) {
	query := strings.Replace(settlementSummaryQuery,
		"WHERE o.lifecycle_status",
		"WHERE o.brand_id = $3\n  AND o.lifecycle_status", 1)

	var row model.BrandSettlementRow
	err := r.sdb.Get(&row, query, from, to, brandID)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *settlementRepository) CreatePayout(rec *model.PayoutRecord) error {
	err := r.db.Create(rec).Error
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicatePayout
	}
	return err
}

func (r *settlementRepository) GetPayoutByNo(payoutNo string) (*model.PayoutRecord, error) {
	var rec model.PayoutRecord
	if err := r.db.Where("payout_no = ?", payoutNo).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *settlementRepository) GetPayoutByBrandPeriod(brandID, period string) (*model.PayoutRecord, error) {
	var rec model.PayoutRecord
	if err := r.db.Where("brand_id = ? AND period = ?", brandID, period).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *settlementRepository) UpdatePayout(rec *model.PayoutRecord) error {
	return r.db.Save(rec).Error
}

func (r *settlementRepository) ListPayoutsByBrand(brandID string, offset, limit int) ([]model.PayoutRecord, int64, error) {
	var recs []model.PayoutRecord
	var total int64

	q := r.db.Model(&model.PayoutRecord{}).Where("brand_id = ?", brandID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&recs).Error; err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// isUniqueViolation 识别 Postgres 唯一约束错误 (SQLSTATE 23505)
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key")
}
