package controllers

import (
	"net/http"

	"github.com/aihub/curation-go/internal/services"
)

// AdminController 账号管理与运维操作，全部仅限admin
type AdminController struct {
	BaseController
	users  *services.UserService
	chunks *services.ChunkReviewService
}

func (c *AdminController) Prepare() {
	c.users = registry.Users
	c.chunks = registry.Chunks
}

// ListUsers 用户列表
func (c *AdminController) ListUsers() {
	sess, ok := c.session()
	if !ok {
		return
	}

	page, limit := c.pagination()
	users, total, err := c.users.ListUsers(c.Ctx.Request.Context(), sess, page, limit)
	if err != nil {
		c.handleError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"users": users,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user curator admin"`
}

// SetRole 变更用户角色
func (c *AdminController) SetRole() {
	sess, ok := c.session()
	if !ok {
		return
	}

	userID, ok := c.paramUint(":user_id")
	if !ok {
		return
	}

	var req setRoleRequest
	if !c.bindJSON(&req) {
		return
	}

	if err := c.users.SetRole(c.Ctx.Request.Context(), sess, userID, req.Role); err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "role updated"})
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// SetActive 启用或停用账号
func (c *AdminController) SetActive() {
	sess, ok := c.session()
	if !ok {
		return
	}

	userID, ok := c.paramUint(":user_id")
	if !ok {
		return
	}

	var req setActiveRequest
	if !c.bindJSON(&req) {
		return
	}

	if err := c.users.SetActive(c.Ctx.Request.Context(), sess, userID, *req.Active); err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "account status updated"})
}

type assignKBsRequest struct {
	KBIDs []string `json:"kb_ids"`
}

// AssignKBs 设置curator的知识库范围
func (c *AdminController) AssignKBs() {
	sess, ok := c.session()
	if !ok {
		return
	}

	userID, ok := c.paramUint(":user_id")
	if !ok {
		return
	}

	var req assignKBsRequest
	if !c.bindJSON(&req) {
		return
	}

	if err := c.users.AssignKBs(c.Ctx.Request.Context(), sess, userID, req.KBIDs); err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "kb assignments updated"})
}

// ReclaimEnriching 手工触发enriching超时回收。
// 后台也有定时扫描，这个接口用于运维排查。
func (c *AdminController) ReclaimEnriching() {
	sess, ok := c.session()
	if !ok {
		return
	}
	if !sess.IsAdmin() {
		c.JSONError(http.StatusForbidden, "admin required")
		return
	}

	reclaimed, err := c.chunks.ReclaimStuckEnriching(c.Ctx.Request.Context())
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"reclaimed": reclaimed})
}
