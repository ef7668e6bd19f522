package order

import (
	"stylehub/internal/domain/order/handler"
	"stylehub/internal/domain/order/repository"
	"stylehub/internal/domain/order/service"
	"stylehub/internal/pkg/middleware"
	"stylehub/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// OrderModule 订单模块
type OrderModule struct{}

func init() {
	registry.Register(&OrderModule{})
}

func (m *OrderModule) Name() string {
	return "order"
}

func (m *OrderModule) Priority() int {
	// 订单是取消/退款/结算模块的依赖，最先初始化
	return 10
}

func (m *OrderModule) Init(ctx *registry.ModuleContext) error {
	repo := repository.NewOrderRepository(ctx.DB)
	svc := service.NewOrderService(repo)
	h := handler.NewOrderHandler(svc)

	setupRoutes(ctx.Router, h)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.OrderHandler) {
	g := r.Group("/orders")
	g.Use(middleware.AuthMiddleware())
	{
		g.POST("", h.CreateOrder)
		g.GET("", h.ListOrders)
		g.GET("/:id", h.GetOrder)
	}

	brand := g.Group("")
	brand.Use(middleware.BrandMiddleware())
	{
		brand.PATCH("/:id/status", h.UpdateDeliveryStatus)
	}

	admin := g.Group("")
	admin.Use(middleware.AdminMiddleware())
	{
		admin.PATCH("/:id/paid", h.MarkPaid)
	}
}
