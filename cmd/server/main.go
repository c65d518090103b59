package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bitfantasy/repairhub/internal/config"
	"github.com/bitfantasy/repairhub/internal/middleware"
	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/bitfantasy/repairhub/internal/repair/handler"
	"github.com/bitfantasy/repairhub/internal/repair/repository"
	"github.com/bitfantasy/repairhub/internal/repair/service"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting repairhub service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := autoMigrate(db); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}

	// 初始化Redis
	rdb := initRedis(cfg.Redis)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		// 缓存不可用时服务降级直查数据库，不阻塞启动
		zapLogger.Warn("Redis unavailable, caches disabled", zap.Error(err))
		rdb = nil
	}

	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, db, rdb, cfg, zapLogger)
	handlers := handler.NewHandlers(services, cfg)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.Branch{},
		&entity.Role{},
		&entity.Admin{},
		&entity.AdminRole{},
		&entity.RepairOrderStatus{},
		&entity.StatusPermission{},
		&entity.PhoneCategory{},
		&entity.ProblemCategory{},
		&entity.Part{},
		&entity.PhoneProblemMapping{},
		&entity.PartAssignment{},
		&entity.RepairOrder{},
		&entity.OrderAdmin{},
		&entity.InitialProblem{},
		&entity.ProblemPart{},
		&entity.FinalProblem{},
		&entity.Comment{},
		&entity.Attachment{},
		&entity.Pickup{},
		&entity.Delivery{},
		&entity.RentalPhone{},
		&entity.Payment{},
		&entity.ChangeHistory{},
	)
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 认证 (无需登录)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
		}

		// 以下路由需要登录
		authed := v1.Group("")
		authed.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			// 状态列管理
			statuses := authed.Group("/statuses")
			{
				statuses.GET("", h.Status.List)
				statuses.POST("", h.Status.Create)
				statuses.PUT("/:id", h.Status.Update)
				statuses.POST("/:id/reorder", h.Status.Reorder)
				statuses.DELETE("/:id", h.Status.Delete)
				statuses.GET("/:id/permissions", h.Status.ListPermissions)
				statuses.PUT("/:id/permissions", h.Status.SetPermission)
				statuses.DELETE("/:id/permissions/:role_id", h.Status.DeletePermission)
			}

			// 维修单
			orders := authed.Group("/orders")
			{
				orders.GET("", h.Order.List)
				orders.POST("", h.Order.Create)
				orders.GET("/export", h.Order.Export)
				orders.GET("/:id", h.Order.Get)
				orders.PUT("/:id", h.Order.Update)
				orders.DELETE("/:id", h.Order.Delete)
				orders.POST("/:id/move", h.Order.Move)
				orders.GET("/:id/history", h.Order.History)
				orders.POST("/:id/admins", h.Order.AssignAdmins)
				orders.DELETE("/:id/admins", h.Order.RemoveAdmins)
				orders.POST("/:id/comments", h.Order.AddComment)
				orders.PUT("/:id/initial-problems", h.Order.SetInitialProblems)
				orders.PUT("/:id/final-problems", h.Order.SetFinalProblems)
				orders.PUT("/:id/pickup", h.Order.SetPickup)
				orders.PUT("/:id/delivery", h.Order.SetDelivery)
				orders.POST("/:id/rental-phone", h.Order.CreateRentalPhone)
				orders.PUT("/:id/rental-phone", h.Order.UpdateRentalPhone)
				orders.DELETE("/:id/rental-phone", h.Order.CancelRentalPhone)
				orders.POST("/:id/payments", h.Order.AddPayment)
				orders.POST("/:id/attachments", h.Order.UploadAttachment)
				orders.GET("/:id/attachments/:attachment_id/url", h.Order.AttachmentURL)
			}
		}
	}
}
