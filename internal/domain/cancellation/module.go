package cancellation

import (
	"stylehub/internal/domain/cancellation/handler"
	"stylehub/internal/domain/cancellation/repository"
	"stylehub/internal/domain/cancellation/service"
	orderRepo "stylehub/internal/domain/order/repository"
	"stylehub/internal/pkg/middleware"
	"stylehub/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// CancellationModule 取消工作流模块
type CancellationModule struct{}

func init() {
	registry.Register(&CancellationModule{})
}

func (m *CancellationModule) Name() string {
	return "cancellation"
}

func (m *CancellationModule) Priority() int {
	// 依赖订单模块
	return 20
}

func (m *CancellationModule) Init(ctx *registry.ModuleContext) error {
	repo := repository.NewCancellationRepository(ctx.DB)
	orders := orderRepo.NewOrderRepository(ctx.DB)
	svc := service.NewCancellationService(repo, orders)
	h := handler.NewCancellationHandler(svc)

	setupRoutes(ctx.Router, h)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.CancellationHandler) {
	g := r.Group("/cancel-requests")
	g.Use(middleware.AuthMiddleware())
	{
		g.POST("", h.CreateRequest)
		g.GET("", h.ListByOrder)
	}

	// 品牌响应挂在订单路径下
	brand := r.Group("/orders")
	brand.Use(middleware.AuthMiddleware(), middleware.BrandMiddleware())
	{
		brand.PATCH("/:id/brand-response", h.BrandResponse)
	}
}
