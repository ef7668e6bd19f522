package main

import (
	"log"

	"stylehub/internal/pkg/config"
	"stylehub/internal/pkg/middleware"
	"stylehub/internal/pkg/push"
	"stylehub/internal/pkg/registry"
	"stylehub/internal/pkg/uploader"
	"stylehub/pkg/database"
	"stylehub/pkg/logger"
	"stylehub/pkg/metrics"

	_ "stylehub/docs"

	// 各业务模块通过 init() 注册到 registry
	_ "stylehub/internal/domain/brand"
	_ "stylehub/internal/domain/cancellation"
	_ "stylehub/internal/domain/common"
	_ "stylehub/internal/domain/order"
	_ "stylehub/internal/domain/refund"
	_ "stylehub/internal/domain/settlement"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// @title StyleHub API
// @version 1.0
// @description 时尚电商订单生命周期、取消/退款与品牌结算服务
// @BasePath /
func main() {
	config.LoadConfig()

	logger.InitLogger(config.GlobalConfig.App.Debug)
	defer logger.Sync()

	metrics.InitMetrics()

	db := database.InitDatabase()
	rdb := database.InitRedis()

	// 推送和对象存储按配置可选启用
	if err := push.InitPushService(); err != nil {
		logger.Log.Warn("push service disabled", zap.Error(err))
	}
	if err := uploader.InitUploader(); err != nil {
		logger.Log.Warn("uploader disabled", zap.Error(err))
	}

	if config.GlobalConfig.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.RateLimitMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Trace-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-Trace-ID"},
		AllowCredentials: false,
	}))

	if err := registry.InitModules(&registry.ModuleContext{
		DB:     db,
		Redis:  rdb,
		Router: r,
	}); err != nil {
		log.Fatalf("failed to init modules: %v", err)
	}

	addr := ":" + config.GlobalConfig.Server.Port
	logger.Log.Info("server starting", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
