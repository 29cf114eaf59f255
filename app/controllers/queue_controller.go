package controllers

import (
	"github.com/aihub/curation-go/internal/services"
)

// QueueController 策展队列控制器
type QueueController struct {
	BaseController
	queue *services.CurationQueueService
}

func (c *QueueController) Prepare() {
	c.queue = registry.Queue
}

type addQueueRequest struct {
	KBID  string `json:"kb_id" validate:"required"`
	URL   string `json:"url" validate:"required,url"`
	Title string `json:"title"`
	Notes string `json:"notes"`
}

// Add 将外部来源加入策展队列
func (c *QueueController) Add() {
	sess, ok := c.session()
	if !ok {
		return
	}

	var req addQueueRequest
	if !c.bindJSON(&req) {
		return
	}

	item, err := c.queue.Add(c.Ctx.Request.Context(), sess, services.AddRequest{
		KBID:  req.KBID,
		URL:   req.URL,
		Title: req.Title,
		Notes: req.Notes,
	})
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(item)
}

// List 列出队列条目，status查询参数可选
func (c *QueueController) List() {
	sess, ok := c.session()
	if !ok {
		return
	}

	page, limit := c.pagination()
	items, total, err := c.queue.List(c.Ctx.Request.Context(), sess, c.GetString("status"), page, limit)
	if err != nil {
		c.handleError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"items": items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// Assign 领取队列条目
func (c *QueueController) Assign() {
	sess, ok := c.session()
	if !ok {
		return
	}

	itemID, ok := c.paramUint(":item_id")
	if !ok {
		return
	}

	if err := c.queue.Assign(c.Ctx.Request.Context(), sess, itemID); err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "queue item assigned"})
}

// Complete 手工关闭队列条目
func (c *QueueController) Complete() {
	sess, ok := c.session()
	if !ok {
		return
	}

	itemID, ok := c.paramUint(":item_id")
	if !ok {
		return
	}

	if err := c.queue.Complete(c.Ctx.Request.Context(), sess, itemID); err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "queue item completed"})
}
