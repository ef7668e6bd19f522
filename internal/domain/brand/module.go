package brand

import (
	"stylehub/internal/domain/brand/handler"
	"stylehub/internal/domain/brand/repository"
	"stylehub/internal/domain/brand/service"
	"stylehub/internal/pkg/middleware"
	"stylehub/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// BrandModule 品牌模块
type BrandModule struct{}

func init() {
	registry.Register(&BrandModule{})
}

func (m *BrandModule) Name() string {
	return "brand"
}

func (m *BrandModule) Priority() int {
	return 5
}

func (m *BrandModule) Init(ctx *registry.ModuleContext) error {
	repo := repository.NewBrandRepository(ctx.DB)
	svc := service.NewBrandService(repo)
	h := handler.NewBrandHandler(svc)

	setupRoutes(ctx.Router, h)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.BrandHandler) {
	g := r.Group("/brands")
	g.Use(middleware.AuthMiddleware())
	{
		g.GET("", h.List)
		g.GET("/:id", h.Get)
	}

	admin := r.Group("/brands")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.POST("", h.Create)
		admin.PATCH("/:id/payout-destination", h.UpdatePayout)
	}
}
