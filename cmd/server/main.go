// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fin-advisor-go/internal/catalog"
	"fin-advisor-go/internal/config"
	"fin-advisor-go/internal/handler"
	"fin-advisor-go/internal/middleware"
	"fin-advisor-go/internal/repository"
	"fin-advisor-go/internal/scheduler"
	"fin-advisor-go/internal/service"
	"fin-advisor-go/pkg/database"
	"fin-advisor-go/pkg/es"
	"fin-advisor-go/pkg/kafka"
	"fin-advisor-go/pkg/llm"
	"fin-advisor-go/pkg/log"
	"fin-advisor-go/pkg/storage"
	"fin-advisor-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// 1. 加载本地 .env（可选）与配置
	_ = godotenv.Load()
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	if err := config.Validate(&cfg); err != nil {
		log.Fatalf("配置校验失败: %v", err)
	}

	// 3. 初始化数据库、Redis、对象存储与审计管道
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	sessionTTL := time.Duration(cfg.Onboarding.SessionTTLHours) * time.Hour
	sessionRepo := repository.NewSessionRepository(database.RDB, sessionTTL)
	personaRepo := repository.NewPersonaRepository(database.DB)
	productRepo := repository.NewProductRepository(database.DB)
	feedbackRepo := repository.NewFeedbackRepository(database.DB)
	snapshotRepo := repository.NewRecommendationRepository(database.DB)
	advisoryRepo := repository.NewAdvisoryRepository(database.RDB)

	// 5. 装载产品目录，目录非法时拒绝启动
	loader := catalog.NewLoader(productRepo, cfg.MinIO, cfg.Catalog.LocalPath)
	if err := loader.Load(context.Background()); err != nil {
		log.Fatalf("装载产品目录失败: %v", err)
	}

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	gateway := llm.NewGateway(cfg.LLM)
	onboardingService := service.NewOnboardingService(sessionRepo, personaRepo, gateway, cfg.Onboarding)
	recommendationService := service.NewRecommendationService(personaRepo, productRepo, feedbackRepo, snapshotRepo, gateway, cfg.Recommendation)
	feedbackService := service.NewFeedbackService(feedbackRepo, productRepo)
	advisoryService := service.NewAdvisoryService(personaRepo, advisoryRepo, gateway)

	// 7. 启动后台 Kafka 消费者与保留期清理任务
	go kafka.StartConsumer(cfg.Kafka, &es.AuditIndexer{})
	sweeper := scheduler.NewRetentionSweeper(snapshotRepo, cfg.Recommendation.AuditRetentionDays)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("启动保留期清理任务失败: %v", err)
	}
	defer sweeper.Stop()

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		onboarding := apiV1.Group("/onboarding")
		onboarding.Use(middleware.AuthMiddleware(jwtManager))
		{
			onboardingHandler := handler.NewOnboardingHandler(onboardingService)
			onboarding.POST("/start", onboardingHandler.Start)
			onboarding.POST("/advance", onboardingHandler.Advance)
			onboarding.POST("/finalize", onboardingHandler.Finalize)
		}

		recommendations := apiV1.Group("/recommendations")
		recommendations.Use(middleware.AuthMiddleware(jwtManager))
		{
			recommendationHandler := handler.NewRecommendationHandler(recommendationService)
			recommendations.GET("", recommendationHandler.Get)
			recommendations.GET("/history", recommendationHandler.History)
			recommendations.POST("/feedback", handler.NewFeedbackHandler(feedbackService).Submit)
		}
	}

	// 咨询对话 (WebSocket)，令牌在路径参数中
	r.GET("/advisory/:token", handler.NewAdvisoryHandler(advisoryService, jwtManager).Handle)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费者是一个循环，会在进程退出时自然结束。
	log.Info("服务已优雅关闭")
}
