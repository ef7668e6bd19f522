package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	brandModel "stylehub/internal/domain/brand/model"
	brandRepo "stylehub/internal/domain/brand/repository"
	"stylehub/internal/domain/settlement/model"
	"stylehub/internal/domain/settlement/repository"
	"stylehub/internal/pkg/config"
	"stylehub/internal/pkg/gateway"
	"stylehub/internal/pkg/uploader"
	"stylehub/pkg/apperr"
	"stylehub/pkg/logger"
	"stylehub/pkg/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SettlementService interface {
	// Summary 结算期内所有品牌的费用拆解
	Summary(from, to time.Time) ([]model.Settlement, error)
	// BrandSettlement 单个品牌的费用拆解
	BrandSettlement(brandID string, from, to time.Time) (*model.Settlement, error)
	// ExecutePayout 对品牌执行结算期打款，period 形如 "2026-08"
	ExecutePayout(ctx context.Context, brandID, period string) (*model.PayoutRecord, error)
	ListPayouts(brandID string, offset, limit int) ([]model.PayoutRecord, int64, error)
	// ExportStatement 导出结算期对账单 CSV 并上传，返回下载地址
	ExportStatement(from, to time.Time) (string, error)
}

type settlementService struct {
	repo     repository.SettlementRepository
	brands   brandRepo.BrandRepository
	gateways *gateway.Registry
	cfg      config.SettlementConfig
	timeout  time.Duration
}

func NewSettlementService(repo repository.SettlementRepository, brands brandRepo.BrandRepository, gateways *gateway.Registry, cfg config.SettlementConfig) SettlementService {
	timeout := time.Duration(cfg.GatewayTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &settlementService{
		repo:     repo,
		brands:   brands,
		gateways: gateways,
		cfg:      cfg,
		timeout:  timeout,
	}
}

// compute 费用拆解
// 应付 = 营收 - 配送费(每单固定) - 网关手续费(营收比例) - 平台佣金(营收比例)，下限 0
func (s *settlementService) compute(row model.BrandSettlementRow, period string) model.Settlement {
	revenue := row.Revenue
	deliveryCharge := decimal.NewFromFloat(s.cfg.DeliveryCharge).Mul(decimal.NewFromInt(row.EligibleOrders))
	gatewayFee := revenue.Mul(decimal.NewFromFloat(s.cfg.GatewayFeeRate))
	platformFee := revenue.Mul(decimal.NewFromFloat(s.cfg.CommissionRate))

	payable := revenue.Sub(deliveryCharge).Sub(gatewayFee).Sub(platformFee)
	if payable.IsNegative() {
		payable = decimal.Zero
	}

	return model.Settlement{
		BrandID:        row.BrandID,
		BrandName:      row.BrandName,
		Period:         period,
		Revenue:        revenue.Round(2),
		EligibleOrders: row.EligibleOrders,
		DeliveryCharge: deliveryCharge.Round(2),
		GatewayFee:     gatewayFee.Round(2),
		PlatformFee:    platformFee.Round(2),
		PayableAmount:  payable.Round(2),
	}
}

// decorate 补充回款进度与该品牌当前是否可打款
func (s *settlementService) decorate(stl *model.Settlement) {
	stl.PendingAmount = stl.PayableAmount
	stl.PaymentStatus = model.PaymentStatusPending
	if stl.PendingAmount.IsZero() {
		stl.PaymentStatus = model.PaymentStatusCompleted
	}

	if stl.PayableAmount.LessThanOrEqual(decimal.Zero) {
		stl.PayDisabledReason = "payable amount is zero"
		return
	}

	brand, err := s.brands.GetByID(stl.BrandID)
	if err != nil {
		stl.PayDisabledReason = "brand not found"
		return
	}
	if !brand.CanReceivePayout() {
		stl.PayDisabledReason = "brand payout destination missing or disabled"
		return
	}

	if rec, err := s.repo.GetPayoutByBrandPeriod(stl.BrandID, stl.Period); err == nil && rec.Status == model.PayoutSucceeded {
		stl.CompletedPayments = rec.PayableAmount
		stl.PendingAmount = stl.PayableAmount.Sub(rec.PayableAmount)
		if stl.PendingAmount.IsPositive() {
			// 打款后结算额又增长（窗口内订单后补妥投），余额仍可支付
			stl.PaymentStatus = model.PaymentStatusPartial
			stl.CanPay = true
			return
		}
		stl.PendingAmount = decimal.Zero
		stl.PaymentStatus = model.PaymentStatusCompleted
		stl.PayDisabledReason = "period already paid out"
		return
	}

	stl.CanPay = true
}

func (s *settlementService) Summary(from, to time.Time) ([]model.Settlement, error) {
	rows, err := s.repo.SettlementSummary(from, to)
	if err != nil {
		return nil, err
	}

	period := periodOf(from)
	result := make([]model.Settlement, 0, len(rows))
	for _, row := range rows {
		stl := s.compute(row, period)
		s.decorate(&stl)
		result = append(result, stl)
	}
	return result, nil
}

func (s *settlementService) BrandSettlement(brandID string, from, to time.Time) (*model.Settlement, error) {
	row, err := s.repo.BrandSummary(brandID, from, to)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows) {
			// 结算期内没有符合条件的订单
			empty := s.compute(model.BrandSettlementRow{BrandID: brandID}, periodOf(from))
			empty.PayDisabledReason = "no eligible orders in period"
			return &empty, nil
		}
		return nil, err
	}

	stl := s.compute(*row, periodOf(from))
	s.decorate(&stl)
	return &stl, nil
}

func (s *settlementService) ExecutePayout(ctx context.Context, brandID, period string) (*model.PayoutRecord, error) {
	from, to, err := periodRange(period)
	if err != nil {
		return nil, err
	}

	brand, err := s.brands.GetByID(brandID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "brand %s not found", brandID)
		}
		return nil, err
	}
	if !brand.CanReceivePayout() {
		return nil, apperr.New(apperr.KindNotEligible, "brand payout destination missing or disabled")
	}

	stl, err := s.BrandSettlement(brandID, from, to)
	if err != nil {
		return nil, err
	}
	if stl.PayableAmount.LessThanOrEqual(decimal.Zero) {
		return nil, apperr.New(apperr.KindNotEligible, "payable amount is zero")
	}

	gw, err := s.gateways.Get(brand.PayoutChannel)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindGatewayError, "no gateway for brand payout channel", err)
	}

	// 同一品牌+结算期至多打款一次：成功即空操作，未定态先对账，失败复用单号重试
	if existing, gerr := s.repo.GetPayoutByBrandPeriod(brandID, period); gerr == nil {
		switch existing.Status {
		case model.PayoutSucceeded:
			return existing, nil
		case model.PayoutPending:
			return s.reconcilePayout(ctx, gw, existing)
		default:
			return s.callPayout(ctx, gw, brand, existing)
		}
	}

	// 平台侧幂等单号，品牌+结算期唯一
	payoutNo := fmt.Sprintf("PO-%s-%s", period, shortID(brandID))

	rec := &model.PayoutRecord{
		BrandID:        brandID,
		Period:         period,
		Revenue:        stl.Revenue,
		DeliveryCharge: stl.DeliveryCharge,
		GatewayFee:     stl.GatewayFee,
		PlatformFee:    stl.PlatformFee,
		PayableAmount:  stl.PayableAmount,
		Channel:        brand.PayoutChannel,
		PayoutNo:       payoutNo,
		Status:         model.PayoutPending,
	}

	if err := s.repo.CreatePayout(rec); err != nil {
		if !errors.Is(err, repository.ErrDuplicatePayout) {
			return nil, err
		}
		// 品牌+结算期已有记录：成功即为空操作，未定态先对账
		existing, gerr := s.repo.GetPayoutByBrandPeriod(brandID, period)
		if gerr != nil {
			return nil, gerr
		}
		switch existing.Status {
		case model.PayoutSucceeded:
			return existing, nil
		case model.PayoutPending:
			return s.reconcilePayout(ctx, gw, existing)
		default:
			// 上次失败，复用同一单号重试
			rec = existing
		}
	}

	return s.callPayout(ctx, gw, brand, rec)
}

// callPayout 调用网关打款并落库
func (s *settlementService) callPayout(ctx context.Context, gw gateway.PaymentGateway, brand *brandModel.Brand, rec *model.PayoutRecord) (*model.PayoutRecord, error) {
	remark := fmt.Sprintf("settlement %s", rec.Period)

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	start := time.Now()
	res, err := gw.Payout(cctx, rec.PayoutNo, brand.PayoutAccount, rec.PayableAmount, remark)
	cancel()
	metrics.GetGlobalCollector().RecordGatewayCall(gw.Name(), "payout", time.Since(start), err)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// 结果不明：记录保持 pending，下次执行会先对账
			return nil, apperr.Wrap(apperr.KindGatewayError, "payout outcome unknown, verify before retrying", err)
		}
		rec.Status = model.PayoutFailed
		rec.Notes = err.Error()
		if uerr := s.repo.UpdatePayout(rec); uerr != nil {
			logger.Log.Warn("failed to persist payout failure", zap.String("payout_no", rec.PayoutNo), zap.Error(uerr))
		}
		metrics.GetGlobalCollector().RecordPayout(false, 0)
		return nil, apperr.Wrap(apperr.KindGatewayError, "gateway payout failed", err)
	}

	rec.GatewayPayoutID = res.GatewayPayoutID
	return s.applyPayoutStatus(rec, res.Status)
}

// reconcilePayout 先前调用结果不明，向网关查询后落库
func (s *settlementService) reconcilePayout(ctx context.Context, gw gateway.PaymentGateway, rec *model.PayoutRecord) (*model.PayoutRecord, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	res, err := gw.QueryPayout(cctx, rec.PayoutNo)
	cancel()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindGatewayError, "cannot verify prior payout outcome", err)
	}

	if res.Status == gateway.StatusNotFound {
		// 先前调用未到达网关，记录保持 pending，调用方可重试
		return nil, apperr.New(apperr.KindGatewayError, "prior payout never reached the gateway, retry")
	}

	if res.GatewayPayoutID != "" {
		rec.GatewayPayoutID = res.GatewayPayoutID
	}
	return s.applyPayoutStatus(rec, res.Status)
}

func (s *settlementService) applyPayoutStatus(rec *model.PayoutRecord, status gateway.Status) (*model.PayoutRecord, error) {
	switch status {
	case gateway.StatusSuccess:
		rec.Status = model.PayoutSucceeded
	case gateway.StatusProcessing:
		rec.Status = model.PayoutPending
	default:
		rec.Status = model.PayoutFailed
	}

	if err := s.repo.UpdatePayout(rec); err != nil {
		return nil, err
	}

	switch rec.Status {
	case model.PayoutSucceeded:
		amt, _ := rec.PayableAmount.Float64()
		metrics.GetGlobalCollector().RecordPayout(true, amt)
		logger.Log.Info("payout succeeded",
			zap.String("brand_id", rec.BrandID),
			zap.String("period", rec.Period),
			zap.String("amount", rec.PayableAmount.String()),
		)
		return rec, nil
	case model.PayoutPending:
		return nil, apperr.New(apperr.KindGatewayError, "payout accepted, still processing at gateway")
	default:
		metrics.GetGlobalCollector().RecordPayout(false, 0)
		return nil, apperr.New(apperr.KindGatewayError, "gateway rejected the payout")
	}
}

func (s *settlementService) ListPayouts(brandID string, offset, limit int) ([]model.PayoutRecord, int64, error) {
	return s.repo.ListPayoutsByBrand(brandID, offset, limit)
}

func (s *settlementService) ExportStatement(from, to time.Time) (string, error) {
	settlements, err := s.Summary(from, to)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"brand_id", "brand_name", "period", "revenue", "eligible_orders", "delivery_charge", "gateway_fee", "platform_fee", "payable_amount", "completed_payments", "pending_amount", "payment_status"})
	for _, stl := range settlements {
		_ = w.Write([]string{
			stl.BrandID,
			stl.BrandName,
			stl.Period,
			stl.Revenue.StringFixed(2),
			fmt.Sprintf("%d", stl.EligibleOrders),
			stl.DeliveryCharge.StringFixed(2),
			stl.GatewayFee.StringFixed(2),
			stl.PlatformFee.StringFixed(2),
			stl.PayableAmount.StringFixed(2),
			stl.CompletedPayments.StringFixed(2),
			stl.PendingAmount.StringFixed(2),
			stl.PaymentStatus,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	if uploader.GlobalUploader == nil {
		return "", apperr.New(apperr.KindGatewayError, "statement storage is not configured")
	}

	name := fmt.Sprintf("settlement-%s.csv", periodOf(from))
	url, err := uploader.GlobalUploader.UploadBytes(name, buf.Bytes())
	if err != nil {
		return "", apperr.Wrap(apperr.KindGatewayError, "statement upload failed", err)
	}

	logger.Log.Info("settlement statement exported", zap.String("url", url))
	return url, nil
}

func periodOf(from time.Time) string {
	return from.Format("2006-01")
}

// periodRange "2026-08" -> [2026-08-01, 2026-09-01)
func periodRange(period string) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01", period)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid period %q, expected YYYY-MM: %w", period, err)
	}
	return from, from.AddDate(0, 1, 0), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
