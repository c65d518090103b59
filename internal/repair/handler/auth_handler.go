package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/repairhub/internal/repair/service"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	svc *service.AuthService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 手机号+密码登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.svc.Login(c.Request.Context(), req.Phone, req.Password)
	if err != nil {
		ServiceError(c, err)
		return
	}

	Success(c, result)
}
