package handler

import (
	"net/http"
	"time"

	"stylehub/internal/domain/order/model"
	"stylehub/internal/domain/order/repository"
	"stylehub/internal/domain/order/service"
	"stylehub/pkg/response"
	"stylehub/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	service service.OrderService
}

func NewOrderHandler(s service.OrderService) *OrderHandler {
	return &OrderHandler{service: s}
}

type OrderItemInput struct {
	ProductID string          `json:"productId" binding:"required"`
	Name      string          `json:"name" binding:"required"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unitPrice" binding:"required"`
}

type CreateOrderInput struct {
	BrandID           string           `json:"brandId" binding:"required,uuid"`
	Items             []OrderItemInput `json:"items" binding:"required,min=1,dive"`
	TotalAmount       decimal.Decimal  `json:"totalAmount" binding:"required"`
	EstimatedDelivery time.Time        `json:"estimatedDelivery" binding:"required"`
}

// CreateOrder 创建订单
// @Summary 创建订单
// @Tags Order
// @Accept json
// @Produce json
// @Param input body CreateOrderInput true "Order Info"
// @Success 200 {object} response.Response
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var input CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	items := make([]model.OrderItem, 0, len(input.Items))
	for _, it := range input.Items {
		items = append(items, model.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Size:      it.Size,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	order, err := h.service.CreateOrder(getUserIDFromContext(c), input.BrandID, items, input.TotalAmount, input.EstimatedDelivery)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, order)
}

// ListOrders 订单列表
// 过滤/排序/分页语义归调用方所有，这里只返回标准记录
// @Summary 订单列表
// @Tags Order
// @Produce json
// @Param brandId query string false "Brand ID"
// @Param userId query string false "User ID"
// @Param status query string false "Lifecycle status"
// @Param deliveryStatus query string false "Delivery status"
// @Success 200 {object} response.Response
// @Router /orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var page utils.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	_, limit := page.GetPageOffset()

	filter := repository.ListFilter{
		BrandID:         c.Query("brandId"),
		UserID:          c.Query("userId"),
		LifecycleStatus: c.Query("status"),
		DeliveryStatus:  c.Query("deliveryStatus"),
	}

	orders, total, err := h.service.ListOrders(filter, page.Page, limit)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, utils.PageResult{
		List:  orders,
		Total: total,
		Page:  page.Page,
		Limit: limit,
	})
}

// GetOrder 订单详情
// @Summary 订单详情
// @Tags Order
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Response
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.service.GetOrder(c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, order)
}

type UpdateStatusInput struct {
	Status string `json:"status" binding:"required"`
}

// UpdateDeliveryStatus 推进配送状态（品牌方）
// @Summary 推进配送状态
// @Tags Order
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param input body UpdateStatusInput true "Next status"
// @Success 200 {object} response.Response
// @Router /orders/{id}/status [patch]
func (h *OrderHandler) UpdateDeliveryStatus(c *gin.Context) {
	var input UpdateStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	if err := h.service.UpdateDeliveryStatus(c.Param("id"), model.DeliveryStatus(input.Status)); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkPaid 标记订单已支付（收银台回调后由平台侧触发）
// @Summary 标记订单已支付
// @Tags Order
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Response
// @Router /orders/{id}/paid [patch]
func (h *OrderHandler) MarkPaid(c *gin.Context) {
	if err := h.service.MarkPaid(c.Param("id")); err != nil {
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
