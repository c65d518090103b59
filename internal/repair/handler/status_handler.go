package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/repairhub/internal/repair/service"
)

// StatusHandler 状态列管理处理器
type StatusHandler struct {
	svc *service.StatusService
}

// NewStatusHandler 创建状态列处理器
func NewStatusHandler(svc *service.StatusService) *StatusHandler {
	return &StatusHandler{svc: svc}
}

// List 网点状态列（按 sort 升序）
// GET /api/v1/statuses
func (h *StatusHandler) List(c *gin.Context) {
	statuses, err := h.svc.ListByBranch(c.Request.Context(), GetBranchID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": statuses})
}

// Create 新建状态列（追加到看板末尾）
// POST /api/v1/statuses
func (h *StatusHandler) Create(c *gin.Context) {
	var req service.CreateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	status, err := h.svc.CreateStatus(c.Request.Context(), GetActor(c).ID, &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	Created(c, status)
}

// Update 修改状态列
// PUT /api/v1/statuses/:id
func (h *StatusHandler) Update(c *gin.Context) {
	var req service.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	status, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	Success(c, status)
}

// ReorderStatusRequest 状态列排序请求
type ReorderStatusRequest struct {
	Sort int `json:"sort" binding:"required"`
}

// Reorder 拖动状态列换位
// POST /api/v1/statuses/:id/reorder
func (h *StatusHandler) Reorder(c *gin.Context) {
	var req ReorderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.svc.ReorderStatus(c.Request.Context(), c.Param("id"), req.Sort); err != nil {
		ServiceError(c, err)
		return
	}

	Success(c, gin.H{"message": "status reordered"})
}

// Delete 软删除状态列（受保护或仍挂单的列拒绝）
// DELETE /api/v1/statuses/:id
func (h *StatusHandler) Delete(c *gin.Context) {
	if err := h.svc.SoftDeleteStatus(c.Request.Context(), c.Param("id")); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "status deleted"})
}

// ListPermissions 状态列的全部角色权限行
// GET /api/v1/statuses/:id/permissions
func (h *StatusHandler) ListPermissions(c *gin.Context) {
	perms, err := h.svc.ListPermissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": perms})
}

// SetPermission 覆盖写 (角色, 状态) 权限行
// PUT /api/v1/statuses/:id/permissions
func (h *StatusHandler) SetPermission(c *gin.Context) {
	var req service.PermissionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.svc.SetPermission(c.Request.Context(), c.Param("id"), &req); err != nil {
		ServiceError(c, err)
		return
	}

	Success(c, gin.H{"message": "permission saved"})
}

// DeletePermission 删除角色在该状态下的权限行（回到默认拒绝）
// DELETE /api/v1/statuses/:id/permissions/:role_id
func (h *StatusHandler) DeletePermission(c *gin.Context) {
	if err := h.svc.DeletePermission(c.Request.Context(), c.Param("id"), c.Param("role_id")); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "permission deleted"})
}
