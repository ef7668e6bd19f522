package refund

import (
	"context"
	"time"

	orderRepo "stylehub/internal/domain/order/repository"
	"stylehub/internal/domain/refund/handler"
	"stylehub/internal/domain/refund/repository"
	"stylehub/internal/domain/refund/service"
	"stylehub/internal/pkg/config"
	"stylehub/internal/pkg/gateway"
	"stylehub/internal/pkg/idempotency"
	"stylehub/internal/pkg/middleware"
	"stylehub/internal/pkg/registry"
	"stylehub/internal/pkg/worker"
	"stylehub/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RefundModule 退款模块：申请/审批接口、网关执行和后台义务扫描
type RefundModule struct{}

func init() {
	registry.Register(&RefundModule{})
}

func (m *RefundModule) Name() string {
	return "refund"
}

func (m *RefundModule) Priority() int {
	// 依赖订单模块
	return 30
}

func (m *RefundModule) Init(ctx *registry.ModuleContext) error {
	cfg := config.GlobalConfig.Settlement

	gateways := gateway.NewRegistry()
	if g, err := gateway.NewAlipayGateway(); err != nil {
		logger.Log.Warn("alipay gateway not configured", zap.Error(err))
	} else {
		gateways.Register(gateway.ChannelAlipay, g)
	}
	if g, err := gateway.NewWechatGateway(); err != nil {
		logger.Log.Warn("wechat gateway not configured", zap.Error(err))
	} else {
		gateways.Register(gateway.ChannelWechat, g)
	}

	idem := idempotency.NewStore(ctx.Redis, 24*time.Hour)

	repo := repository.NewRefundRepository(ctx.DB)
	orders := orderRepo.NewOrderRepository(ctx.DB)
	svc := service.NewRefundService(repo, orders, gateways, idem,
		time.Duration(cfg.GatewayTimeoutSeconds)*time.Second)
	h := handler.NewRefundHandler(svc)

	setupRoutes(ctx.Router, h)

	pool := worker.NewWorkerPool(func(c context.Context, orderID string) error {
		_, err := svc.Execute(c, orderID, nil)
		return err
	}, 2, 64, cfg.RefundRetryMax)
	pool.Start()
	go scanObligations(svc, pool)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.RefundHandler) {
	customer := r.Group("/orders")
	customer.Use(middleware.AuthMiddleware())
	{
		customer.PATCH("/:id/refund-request", h.Request)
		customer.GET("/:id/refunds", h.ListTransactions)
	}

	brand := r.Group("/orders")
	brand.Use(middleware.AuthMiddleware(), middleware.BrandMiddleware())
	{
		brand.PATCH("/:id/refund-response", h.Respond)
	}

	admin := r.Group("/orders")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.PATCH("/:id/refund", h.Execute)
	}
}

// scanObligations 周期性扫描已取消且已付款但退款未完成的订单，投递给工作池
func scanObligations(svc service.RefundService, pool *worker.WorkerPool) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		orders, err := svc.RefundObligations(100)
		if err != nil {
			logger.Log.Warn("refund obligation scan failed", zap.Error(err))
			continue
		}
		for _, o := range orders {
			pool.AddTask(worker.RefundTask{OrderID: o.ID})
		}
		if len(orders) > 0 {
			logger.Log.Info("refund obligations queued", zap.Int("count", len(orders)))
		}
	}
}
