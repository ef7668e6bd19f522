package handler

import (
	"net/http"

	"stylehub/internal/domain/brand/service"
	"stylehub/pkg/response"
	"stylehub/pkg/utils"

	"github.com/gin-gonic/gin"
)

type BrandHandler struct {
	service service.BrandService
}

func NewBrandHandler(s service.BrandService) *BrandHandler {
	return &BrandHandler{service: s}
}

type CreateBrandInput struct {
	Name          string `json:"name" binding:"required"`
	ContactEmail  string `json:"contactEmail" binding:"omitempty,email"`
	PayoutChannel string `json:"payoutChannel" binding:"omitempty,oneof=alipay wechat"`
	PayoutAccount string `json:"payoutAccount,omitempty"`
}

// Create 创建品牌
// @Summary 创建品牌
// @Tags Brand
// @Accept json
// @Produce json
// @Param input body CreateBrandInput true "Brand"
// @Success 200 {object} response.Response
// @Router /brands [post]
func (h *BrandHandler) Create(c *gin.Context) {
	var input CreateBrandInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	brand, err := h.service.Create(input.Name, input.ContactEmail, input.PayoutChannel, input.PayoutAccount)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, brand)
}

// Get 品牌详情
// @Summary 品牌详情
// @Tags Brand
// @Produce json
// @Param id path string true "Brand ID"
// @Success 200 {object} response.Response
// @Router /brands/{id} [get]
func (h *BrandHandler) Get(c *gin.Context) {
	brand, err := h.service.Get(c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, brand)
}

// List 品牌列表
// @Summary 品牌列表
// @Tags Brand
// @Produce json
// @Success 200 {object} response.Response
// @Router /brands [get]
func (h *BrandHandler) List(c *gin.Context) {
	var page utils.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	offset, limit := page.GetPageOffset()

	brands, total, err := h.service.List(offset, limit)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, utils.PageResult{
		List:  brands,
		Total: total,
		Page:  page.Page,
		Limit: limit,
	})
}

type UpdatePayoutInput struct {
	PayoutChannel string `json:"payoutChannel" binding:"required,oneof=alipay wechat"`
	PayoutAccount string `json:"payoutAccount" binding:"required"`
	PayoutEnabled bool   `json:"payoutEnabled"`
}

// UpdatePayout 更新品牌打款目的地
// @Summary 更新打款目的地
// @Tags Brand
// @Accept json
// @Produce json
// @Param id path string true "Brand ID"
// @Param input body UpdatePayoutInput true "Payout destination"
// @Success 200 {object} response.Response
// @Router /brands/{id}/payout-destination [patch]
func (h *BrandHandler) UpdatePayout(c *gin.Context) {
	var input UpdatePayoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	brand, err := h.service.UpdatePayoutDestination(c.Param("id"), input.PayoutChannel, input.PayoutAccount, input.PayoutEnabled)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, brand)
}
