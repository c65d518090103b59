package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/bitfantasy/repairhub/internal/repair/repository"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"
)

// AttachmentService 附件：对象先落 MinIO，元数据和审计事件再入库。
// 对象已写而事务回滚只会留下孤儿对象，不会产生脏元数据
type AttachmentService struct {
	db          *gorm.DB
	orderRepo   *repository.OrderRepository
	perms       *PermissionService
	audit       *ChangeLogger
	cache       *OrderListCache
	minioClient *minio.Client
	bucket      string
}

func NewAttachmentService(
	repos *repository.Repositories,
	db *gorm.DB,
	perms *PermissionService,
	audit *ChangeLogger,
	cache *OrderListCache,
	minioClient *minio.Client,
	bucket string,
) *AttachmentService {
	return &AttachmentService{
		db:          db,
		orderRepo:   repos.Order,
		perms:       perms,
		audit:       audit,
		cache:       cache,
		minioClient: minioClient,
		bucket:      bucket,
	}
}

// Upload 上传附件并登记元数据
func (s *AttachmentService) Upload(ctx context.Context, actor Actor, orderID, fileName, contentType string, size int64, reader io.Reader) (*entity.Attachment, error) {
	if s.minioClient == nil {
		return nil, ConflictError("object storage is not configured")
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, wrapStorage(err)
	}
	if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapUpdate); err != nil {
		return nil, err
	}

	objectKey := fmt.Sprintf("repair-orders/%s/%s-%s", orderID, uuid.New().String()[:8], fileName)
	_, err = s.minioClient.PutObject(ctx, s.bucket, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, StorageError(fmt.Errorf("upload object: %w", err))
	}

	attachment := &entity.Attachment{
		ID:            uuid.New().String()[:32],
		RepairOrderID: orderID,
		FileName:      fileName,
		ObjectKey:     objectKey,
		ContentType:   contentType,
		Size:          size,
		UploadedBy:    actor.ID,
		CreatedAt:     time.Now(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(attachment).Error; err != nil {
			return err
		}
		return s.audit.Log(tx, orderID, "attachment_uploaded", map[string]string{
			"attachment_id": attachment.ID,
			"file_name":     fileName,
		}, actor.ID)
	})
	if err != nil {
		return nil, wrapStorage(err)
	}

	s.cache.InvalidateBranch(ctx, order.BranchID)
	return attachment, nil
}

// PresignedURL 附件的临时下载链接
func (s *AttachmentService) PresignedURL(ctx context.Context, actor Actor, orderID, attachmentID string) (string, error) {
	if s.minioClient == nil {
		return "", ConflictError("object storage is not configured")
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return "", wrapStorage(err)
	}
	if err := s.perms.Authorize(ctx, actor.RoleIDs, order.BranchID, order.StatusID, CapView); err != nil {
		return "", err
	}

	var attachment entity.Attachment
	err = s.db.WithContext(ctx).
		Where("id = ? AND repair_order_id = ?", attachmentID, orderID).
		First(&attachment).Error
	if err != nil {
		return "", NotFoundError("attachment not found")
	}

	u, err := s.minioClient.PresignedGetObject(ctx, s.bucket, attachment.ObjectKey, 15*time.Minute, nil)
	if err != nil {
		return "", StorageError(fmt.Errorf("presign object: %w", err))
	}
	return u.String(), nil
}
