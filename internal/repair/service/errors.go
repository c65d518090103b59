package service

import (
	"errors"
	"fmt"

	"github.com/bitfantasy/repairhub/internal/repair/repository"
)

// Kind 错误类别，稳定的机器可读标识
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindValidation       Kind = "validation_failed"
	KindConflict         Kind = "conflict"
	KindStorage          Kind = "storage_failure"
)

// Error 领域错误。Field 标记出错的输入位置，客户端按此高亮
type Error struct {
	Kind    Kind
	Field   string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NotFoundError 记录不存在或已软删除
func NotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// PermissionError 角色在当前状态下缺少能力
func PermissionError(capability Capability, statusID string) *Error {
	return &Error{
		Kind:    KindPermissionDenied,
		Field:   string(capability),
		Message: fmt.Sprintf("capability %s is not granted at status %s", capability, statusID),
	}
}

// ValidationError 输入非法，field 指向出错字段
func ValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// ConflictError 与现有状态冲突
func ConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// StorageError 存储层失败，调用方可整体重试
func StorageError(err error) *Error {
	return &Error{Kind: KindStorage, Message: err.Error(), cause: err}
}

// KindOf 判断错误类别。仓库层的 ErrNotFound 归入 not_found，
// 其余未分类错误一律按存储失败处理
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, repository.ErrNotFound) {
		return KindNotFound
	}
	return KindStorage
}

// wrapStorage 保留已分类的领域错误，未知错误包装为存储失败
func wrapStorage(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		return NotFoundError("record not found")
	}
	return StorageError(err)
}
