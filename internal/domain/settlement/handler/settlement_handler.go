package handler

import (
	"net/http"
	"time"

	"stylehub/internal/domain/settlement/service"
	"stylehub/pkg/response"
	"stylehub/pkg/utils"

	"github.com/gin-gonic/gin"
)

type SettlementHandler struct {
	service service.SettlementService
}

func NewSettlementHandler(s service.SettlementService) *SettlementHandler {
	return &SettlementHandler{service: s}
}

// parsePeriod 读取 ?period=YYYY-MM，缺省为当前月
func parsePeriod(c *gin.Context) (time.Time, time.Time, error) {
	period := c.Query("period")
	if period == "" {
		now := time.Now().UTC()
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(0, 1, 0), nil
	}
	from, err := time.Parse("2006-01", period)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, from.AddDate(0, 1, 0), nil
}

// AdminSummary 管理员查看所有品牌的结算拆解
// @Summary 管理员结算总览
// @Tags Settlement
// @Produce json
// @Param period query string false "Period (YYYY-MM), defaults to current month"
// @Success 200 {object} response.Response
// @Router /payments/admin/summary [get]
func (h *SettlementHandler) AdminSummary(c *gin.Context) {
	from, to, err := parsePeriod(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "period must be YYYY-MM")
		return
	}

	settlements, err := h.service.Summary(from, to)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, settlements)
}

// BrandSummary 品牌方查看自己的结算拆解
// @Summary 品牌结算明细
// @Tags Settlement
// @Produce json
// @Param brandId query string true "Brand ID"
// @Param period query string false "Period (YYYY-MM), defaults to current month"
// @Success 200 {object} response.Response
// @Router /payments/brand-payments [get]
func (h *SettlementHandler) BrandSummary(c *gin.Context) {
	brandID := c.Query("brandId")
	if brandID == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "brandId is required")
		return
	}
	from, to, err := parsePeriod(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "period must be YYYY-MM")
		return
	}

	stl, err := h.service.BrandSettlement(brandID, from, to)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, stl)
}

type ExecutePayoutInput struct {
	BrandID string `json:"brandId" binding:"required,uuid"`
	Period  string `json:"period" binding:"required"`
}

// ExecutePayout 管理员对品牌执行结算打款
// @Summary 执行品牌打款
// @Description 打款金额按结算期实时计算，网关流水号由平台侧幂等单号换取，均不由调用方传入
// @Tags Settlement
// @Accept json
// @Produce json
// @Param input body ExecutePayoutInput true "Payout target"
// @Success 200 {object} response.Response
// @Router /payments/admin/payout [post]
func (h *SettlementHandler) ExecutePayout(c *gin.Context) {
	var input ExecutePayoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	rec, err := h.service.ExecutePayout(c.Request.Context(), input.BrandID, input.Period)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, rec)
}

// ListPayouts 查看品牌的打款记录
// @Summary 品牌打款记录
// @Tags Settlement
// @Produce json
// @Param brandId query string true "Brand ID"
// @Success 200 {object} response.Response
// @Router /payments/payouts [get]
func (h *SettlementHandler) ListPayouts(c *gin.Context) {
	brandID := c.Query("brandId")
	if brandID == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "brandId is required")
		return
	}
	var page utils.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	offset, limit := page.GetPageOffset()

	recs, total, err := h.service.ListPayouts(brandID, offset, limit)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, utils.PageResult{
		List:  recs,
		Total: total,
		Page:  page.Page,
		Limit: limit,
	})
}

// ExportStatement 导出结算期对账单
// @Summary 导出对账单
// @Tags Settlement
// @Produce json
// @Param period query string false "Period (YYYY-MM), defaults to current month"
// @Success 200 {object} response.Response
// @Router /payments/admin/statements [post]
func (h *SettlementHandler) ExportStatement(c *gin.Context) {
	from, to, err := parsePeriod(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "period must be YYYY-MM")
		return
	}

	url, err := h.service.ExportStatement(from, to)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"url": url})
}
