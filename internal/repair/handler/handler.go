package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/repairhub/internal/config"
	"github.com/bitfantasy/repairhub/internal/repair/service"
)

// Handlers 处理器集合
type Handlers struct {
	Auth   *AuthHandler
	Order  *OrderHandler
	Status *StatusHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, cfg *config.Config) *Handlers {
	return &Handlers{
		Auth:   NewAuthHandler(svc.Auth),
		Order:  NewOrderHandler(svc.Order, svc.Export, svc.Attachment),
		Status: NewStatusHandler(svc.Status),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Field   string      `json:"field,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// ServiceError 按领域错误类别映射HTTP响应
func ServiceError(c *gin.Context, err error) {
	var de *service.Error
	field := ""
	message := err.Error()
	if errors.As(err, &de) {
		field = de.Field
		message = de.Message
	}

	var code int
	switch service.KindOf(err) {
	case service.KindNotFound:
		code = 40400
	case service.KindPermissionDenied:
		code = 40300
	case service.KindValidation:
		code = 40001
	case service.KindConflict:
		code = 40900
	default:
		code = 50000
		message = "internal error"
	}

	c.JSON(code/100, Response{
		Code:    code,
		Message: message,
		Field:   field,
	})
}

// GetActor 从上下文取操作者身份（JWT中间件注入）
func GetActor(c *gin.Context) service.Actor {
	actor := service.Actor{ID: c.GetString("admin_id")}
	if v, exists := c.Get("role_ids"); exists {
		if ids, ok := v.([]string); ok {
			actor.RoleIDs = ids
		}
	}
	return actor
}

// GetBranchID 从上下文取操作者所属网点
func GetBranchID(c *gin.Context) string {
	return c.GetString("branch_id")
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 50

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 200 {
			pageSize = v
		}
	}

	return page, pageSize
}
