package settlement

import (
	brandRepo "stylehub/internal/domain/brand/repository"
	"stylehub/internal/domain/settlement/handler"
	"stylehub/internal/domain/settlement/repository"
	"stylehub/internal/domain/settlement/service"
	"stylehub/internal/pkg/config"
	"stylehub/internal/pkg/gateway"
	"stylehub/internal/pkg/middleware"
	"stylehub/internal/pkg/registry"
	"stylehub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// SettlementModule 品牌结算与打款模块
type SettlementModule struct{}

func init() {
	registry.Register(&SettlementModule{})
}

func (m *SettlementModule) Name() string {
	return "settlement"
}

func (m *SettlementModule) Priority() int {
	// 依赖订单与品牌模块
	return 40
}

func (m *SettlementModule) Init(ctx *registry.ModuleContext) error {
	// 聚合查询走 sqlx，复用 gorm 底层连接池
	sqlDB, err := ctx.DB.DB()
	if err != nil {
		return err
	}
	sdb := sqlx.NewDb(sqlDB, "postgres")

	gateways := gateway.NewRegistry()
	if g, err := gateway.NewAlipayGateway(); err != nil {
		logger.Log.Warn("alipay gateway not configured for payouts", zap.Error(err))
	} else {
		gateways.Register(gateway.ChannelAlipay, g)
	}
	if g, err := gateway.NewWechatGateway(); err != nil {
		logger.Log.Warn("wechat gateway not configured for payouts", zap.Error(err))
	} else {
		gateways.Register(gateway.ChannelWechat, g)
	}

	repo := repository.NewSettlementRepository(ctx.DB, sdb)
	brands := brandRepo.NewBrandRepository(ctx.DB)
	svc := service.NewSettlementService(repo, brands, gateways, config.GlobalConfig.Settlement)
	h := handler.NewSettlementHandler(svc)

	setupRoutes(ctx.Router, h)
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.SettlementHandler) {
	admin := r.Group("/payments/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.GET("/summary", h.AdminSummary)
		admin.GET("/brand-payments", h.BrandSummary)
		admin.POST("/payout", h.ExecutePayout)
		admin.POST("/statements", h.ExportStatement)
	}

	brand := r.Group("/payments")
	brand.Use(middleware.AuthMiddleware(), middleware.BrandMiddleware())
	{
		brand.GET("/brand-payments", h.BrandSummary)
		brand.GET("/payouts", h.ListPayouts)
	}
}
