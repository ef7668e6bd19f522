package handler

import (
	"net/http"

	"stylehub/internal/domain/refund/service"
	"stylehub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type RefundHandler struct {
	service service.RefundService
}

func NewRefundHandler(s service.RefundService) *RefundHandler {
	return &RefundHandler{service: s}
}

type RefundRequestInput struct {
	Reason string `json:"reason" binding:"required"`
}

// Request 买家发起退款申请
// @Summary 发起退款申请
// @Tags Refund
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param input body RefundRequestInput true "Refund request"
// @Success 200 {object} response.Response
// @Router /orders/{id}/refund-request [patch]
func (h *RefundHandler) Request(c *gin.Context) {
	var input RefundRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	if err := h.service.Request(c.Param("id"), input.Reason, getUserIDFromContext(c)); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, nil)
}

type RefundResponseInput struct {
	Action string `json:"action" binding:"required,oneof=approve reject"`
	Notes  string `json:"notes,omitempty"`
}

// Respond 品牌方处理退款申请
// @Summary 品牌方处理退款申请
// @Tags Refund
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param input body RefundResponseInput true "Resolution"
// @Success 200 {object} response.Response
// @Router /orders/{id}/refund-response [patch]
func (h *RefundHandler) Respond(c *gin.Context) {
	var input RefundResponseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	if err := h.service.Respond(c.Param("id"), input.Action, input.Notes); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, nil)
}

type ExecuteRefundInput struct {
	// Amount 可选，缺省退剩余可退金额
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// Execute 管理员对已批准/已取消订单执行网关退款
// @Summary 执行网关退款
// @Tags Refund
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param input body ExecuteRefundInput false "Optional amount"
// @Success 200 {object} response.Response
// @Router /orders/{id}/refund [patch]
func (h *RefundHandler) Execute(c *gin.Context) {
	var input ExecuteRefundInput
	if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	txn, err := h.service.Execute(c.Request.Context(), c.Param("id"), input.Amount)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, txn)
}

// ListTransactions 查看订单的退款流水
// @Summary 查看订单退款流水
// @Tags Refund
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Response
// @Router /orders/{id}/refunds [get]
func (h *RefundHandler) ListTransactions(c *gin.Context) {
	txns, err := h.service.ListTransactions(c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, txns)
}

func getUserIDFromContext(c *gin.Context) string {
	val, _ := c.Get("userID")
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}
