package controllers

import (
	"github.com/aihub/curation-go/internal/services"
)

// KnowledgeBaseController 知识库注册表控制器
type KnowledgeBaseController struct {
	BaseController
	kbs *services.KnowledgeBaseService
}

func (c *KnowledgeBaseController) Prepare() {
	c.kbs = registry.KBs
}

// List 知识库列表
func (c *KnowledgeBaseController) List() {
	sess, ok := c.session()
	if !ok {
		return
	}

	kbs, err := c.kbs.List(c.Ctx.Request.Context(), sess)
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"knowledge_bases": kbs})
}

// Get 知识库详情
func (c *KnowledgeBaseController) Get() {
	sess, ok := c.session()
	if !ok {
		return
	}

	kb, err := c.kbs.Get(c.Ctx.Request.Context(), sess, c.GetString(":kb_id"))
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(kb)
}

type createKBRequest struct {
	KBID        string `json:"kb_id" validate:"required,max=50"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description"`
}

// Create 注册新知识库，仅限admin
func (c *KnowledgeBaseController) Create() {
	sess, ok := c.session()
	if !ok {
		return
	}

	var req createKBRequest
	if !c.bindJSON(&req) {
		return
	}

	kb, err := c.kbs.Create(c.Ctx.Request.Context(), sess, req.KBID, req.Name, req.Description)
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(kb)
}

type updateKBRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// Update 更新知识库，仅限admin
func (c *KnowledgeBaseController) Update() {
	sess, ok := c.session()
	if !ok {
		return
	}

	var req updateKBRequest
	if !c.bindJSON(&req) {
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if err := c.kbs.Update(c.Ctx.Request.Context(), sess, c.GetString(":kb_id"), updates); err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "knowledge base updated"})
}

// Delete 删除知识库注册项，仅限admin
func (c *KnowledgeBaseController) Delete() {
	sess, ok := c.session()
	if !ok {
		return
	}

	if err := c.kbs.Delete(c.Ctx.Request.Context(), sess, c.GetString(":kb_id")); err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "knowledge base deleted"})
}
