package handler

import (
	"net/http"

	"stylehub/internal/domain/cancellation/service"
	"stylehub/pkg/response"

	"github.com/gin-gonic/gin"
)

type CancellationHandler struct {
	service service.CancellationService
}

func NewCancellationHandler(s service.CancellationService) *CancellationHandler {
	return &CancellationHandler{service: s}
}

type CreateCancelRequestInput struct {
	OrderID      string `json:"orderId" binding:"required,uuid"`
	ProductIndex *int   `json:"productIndex,omitempty"`
	Reason       string `json:"reason" binding:"required"`
	ReasonText   string `json:"reasonText,omitempty"`
}

// CreateRequest 买家发起取消申请
// @Summary 发起取消申请
// @Tags Cancellation
// @Accept json
// @Produce json
// @Param input body CreateCancelRequestInput true "Cancellation request"
// @Success 200 {object} response.Response
// @Router /cancel-requests [post]
func (h *CancellationHandler) CreateRequest(c *gin.Context) {
	var input CreateCancelRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	req, err := h.service.Request(input.OrderID, input.ProductIndex, input.Reason, input.ReasonText, getUserIDFromContext(c))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, req)
}

// ListByOrder 按订单查看取消申请
// @Summary 按订单查看取消申请
// @Tags Cancellation
// @Produce json
// @Param orderId query string true "Order ID"
// @Success 200 {object} response.Response
// @Router /cancel-requests [get]
func (h *CancellationHandler) ListByOrder(c *gin.Context) {
	orderID := c.Query("orderId")
	if orderID == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "orderId is required")
		return
	}

	reqs, err := h.service.ListByOrder(orderID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, reqs)
}

type BrandResponseInput struct {
	Action     string `json:"action" binding:"required,oneof=approve reject"`
	AdminNotes string `json:"adminNotes,omitempty"`
}

// BrandResponse 品牌方处理取消申请
// @Summary 品牌方处理取消申请
// @Tags Cancellation
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param input body BrandResponseInput true "Resolution"
// @Success 200 {object} response.Response
// @Router /orders/{id}/brand-response [patch]
func (h *CancellationHandler) BrandResponse(c *gin.Context) {
	var input BrandResponseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	err := h.service.ResolveByOrder(c.Param("id"), input.Action, input.AdminNotes, getUserIDFromContext(c))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, nil)
}

func getUserIDFromContext(c *gin.Context) string {
	val, _ := c.Get("userID")
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}
