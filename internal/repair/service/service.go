package service

import (
	"github.com/bitfantasy/repairhub/internal/config"
	"github.com/bitfantasy/repairhub/internal/repair/repository"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Auth       *AuthService
	Permission *PermissionService
	Order      *OrderService
	Status     *StatusService
	Export     *ExportService
	Attachment *AttachmentService
}

// NewServices 创建服务集合。rdb 允许为 nil：缓存整体退化为未命中，不影响正确性
func NewServices(repos *repository.Repositories, db *gorm.DB, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	permCache := NewPermissionCache(rdb, cfg.Cache.PermissionTTL)
	perms := NewPermissionService(repos.Permission, repos.Status, permCache, logger)

	audit := NewChangeLogger(repos.History)
	orderCache := NewOrderListCache(rdb, cfg.Cache.OrderListTTL, logger)

	// 初始化MinIO客户端，连不上就降级为未配置
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  miniocreds.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("Failed to init MinIO client, attachments disabled", zap.Error(err))
			minioClient = nil
		}
	}

	return &Services{
		Auth:       NewAuthService(repos.Admin, cfg),
		Permission: perms,
		Order:      NewOrderService(repos, db, perms, audit, orderCache, logger),
		Status:     NewStatusService(repos, db, perms, logger),
		Export:     NewExportService(repos),
		Attachment: NewAttachmentService(repos, db, perms, audit, orderCache, minioClient, cfg.MinIO.Bucket),
	}
}
