package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/repairhub/internal/repair/service"
)

// OrderHandler 维修单处理器
type OrderHandler struct {
	svc        *service.OrderService
	export     *service.ExportService
	attachment *service.AttachmentService
}

// NewOrderHandler 创建维修单处理器
func NewOrderHandler(svc *service.OrderService, export *service.ExportService, attachment *service.AttachmentService) *OrderHandler {
	return &OrderHandler{svc: svc, export: export, attachment: attachment}
}

// Create 建单
// POST /api/v1/orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.svc.CreateOrder(c.Request.Context(), GetActor(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	Created(c, order)
}

// Update 部分更新（缺省字段不动）
// PUT /api/v1/orders/:id
func (h *OrderHandler) Update(c *gin.Context) {
	var req service.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.svc.UpdateOrder(c.Request.Context(), GetActor(c), c.Param("id"), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	Success(c, order)
}

// Get 工单详情
// GET /api/v1/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.svc.GetOrder(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, order)
}

// List 网点看板，按状态列分组返回
// GET /api/v1/orders?sort_field=sort&sort_order=ASC&page=1&page_size=50
func (h *OrderHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	p := service.ListPagination{
		SortField: c.Query("sort_field"),
		SortOrder: c.Query("sort_order"),
		Page:      page,
		PageSize:  pageSize,
	}

	columns, err := h.svc.ListOrdersForAdmin(c.Request.Context(), GetActor(c), GetBranchID(c), p)
	if err != nil {
		ServiceError(c, err)
		return
	}

	Success(c, gin.H{"columns": columns})
}

// MoveOrderRequest 移单请求
type MoveOrderRequest struct {
	StatusID string `json:"status_id" binding:"required"`
	Sort     int    `json:"sort" binding:"required"`
}

// Move 看板拖拽：换列和/或换位
// POST /api/v1/orders/:id/move
func (h *OrderHandler) Move(c *gin.Context) {
	var req MoveOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.svc.MoveOrder(c.Request.Context(), GetActor(c), c.Param("id"), req.StatusID, req.Sort); err != nil {
		ServiceError(c, err)
		return
	}

	Success(c, gin.H{"message": "order moved"})
}

// Delete 软删除
// DELETE /api/v1/orders/:id
func (h *OrderHandler) Delete(c *gin.Context) {
	if err := h.svc.SoftDeleteOrder(c.Request.Context(), GetActor(c), c.Param("id")); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "order deleted"})
}

// History 变更历史（倒序分页）
// GET /api/v1/orders/:id/history
func (h *OrderHandler) History(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListHistory(c.Request.Context(), GetActor(c), c.Param("id"), page, pageSize)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{
		"items":     items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// AdminIDsRequest 管理员指派请求
type AdminIDsRequest struct {
	AdminIDs []string `json:"admin_ids" binding:"required"`
}

// AssignAdmins 追加指派管理员
// POST /api/v1/orders/:id/admins
func (h *OrderHandler) AssignAdmins(c *gin.Context) {
	var req AdminIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.AssignAdmins(c.Request.Context(), GetActor(c), c.Param("id"), req.AdminIDs); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "admins assigned"})
}

// RemoveAdmins 取消指派
// DELETE /api/v1/orders/:id/admins
func (h *OrderHandler) RemoveAdmins(c *gin.Context) {
	var req AdminIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.RemoveAdmins(c.Request.Context(), GetActor(c), c.Param("id"), req.AdminIDs); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "admins removed"})
}

// CommentRequest 评论请求
type CommentRequest struct {
	Text string `json:"text" binding:"required"`
}

// AddComment 追加评论
// POST /api/v1/orders/:id/comments
func (h *OrderHandler) AddComment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	comment, err := h.svc.AddComment(c.Request.Context(), GetActor(c), c.Param("id"), req.Text)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, comment)
}

// InitialProblemsRequest 初检问题整组覆盖请求
type InitialProblemsRequest struct {
	Problems []service.InitialProblemInput `json:"problems"`
}

// SetInitialProblems 整组覆盖初检问题
// PUT /api/v1/orders/:id/initial-problems
func (h *OrderHandler) SetInitialProblems(c *gin.Context) {
	var req InitialProblemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.SetInitialProblems(c.Request.Context(), GetActor(c), c.Param("id"), req.Problems); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "initial problems updated"})
}

// FinalProblemsRequest 终检问题整组覆盖请求
type FinalProblemsRequest struct {
	Problems []service.FinalProblemInput `json:"problems"`
}

// SetFinalProblems 整组覆盖终检问题
// PUT /api/v1/orders/:id/final-problems
func (h *OrderHandler) SetFinalProblems(c *gin.Context) {
	var req FinalProblemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.SetFinalProblems(c.Request.Context(), GetActor(c), c.Param("id"), req.Problems); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "final problems updated"})
}

// SetPickup 整条覆盖取件信息
// PUT /api/v1/orders/:id/pickup
func (h *OrderHandler) SetPickup(c *gin.Context) {
	var req service.PickupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.SetPickup(c.Request.Context(), GetActor(c), c.Param("id"), req); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "pickup updated"})
}

// SetDelivery 整条覆盖交付信息
// PUT /api/v1/orders/:id/delivery
func (h *OrderHandler) SetDelivery(c *gin.Context) {
	var req service.DeliveryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.SetDelivery(c.Request.Context(), GetActor(c), c.Param("id"), req); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "delivery updated"})
}

// CreateRentalPhone 登记租借机（同单只允许一台在租）
// POST /api/v1/orders/:id/rental-phone
func (h *OrderHandler) CreateRentalPhone(c *gin.Context) {
	var req service.RentalPhoneInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.CreateRentalPhone(c.Request.Context(), GetActor(c), c.Param("id"), req); err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, gin.H{"message": "rental phone created"})
}

// UpdateRentalPhone 修改在租记录的可变字段
// PUT /api/v1/orders/:id/rental-phone
func (h *OrderHandler) UpdateRentalPhone(c *gin.Context) {
	var req service.UpdateRentalPhoneInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.UpdateRentalPhone(c.Request.Context(), GetActor(c), c.Param("id"), req); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "rental phone updated"})
}

// CancelRentalPhone 归还/取消租借
// DELETE /api/v1/orders/:id/rental-phone
func (h *OrderHandler) CancelRentalPhone(c *gin.Context) {
	if err := h.svc.CancelRentalPhone(c.Request.Context(), GetActor(c), c.Param("id")); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "rental phone cancelled"})
}

// AddPayment 收款
// POST /api/v1/orders/:id/payments
func (h *OrderHandler) AddPayment(c *gin.Context) {
	var req service.PaymentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	payment, err := h.svc.AddPayment(c.Request.Context(), GetActor(c), c.Param("id"), req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, payment)
}

// UploadAttachment 上传附件（multipart）
// POST /api/v1/orders/:id/attachments
func (h *OrderHandler) UploadAttachment(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少文件: "+err.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		BadRequest(c, "读取文件失败: "+err.Error())
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	att, err := h.attachment.Upload(c.Request.Context(), GetActor(c), c.Param("id"),
		fileHeader.Filename, contentType, fileHeader.Size, file)
	if err != nil {
		ServiceError(c, err)
		return
	}

	Created(c, att)
}

// AttachmentURL 取附件的临时下载地址
// GET /api/v1/orders/:id/attachments/:attachment_id/url
func (h *OrderHandler) AttachmentURL(c *gin.Context) {
	url, err := h.attachment.PresignedURL(c.Request.Context(), GetActor(c), c.Param("id"), c.Param("attachment_id"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"url": url})
}

// Export 导出网点工单Excel
// GET /api/v1/orders/export
func (h *OrderHandler) Export(c *gin.Context) {
	f, err := h.export.ExportBranchOrders(c.Request.Context(), GetBranchID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}

	fileName := fmt.Sprintf("orders_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(fileName))
	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
