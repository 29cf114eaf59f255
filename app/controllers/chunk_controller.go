package controllers

import (
	"github.com/aihub/curation-go/internal/models"
	"github.com/aihub/curation-go/internal/services"
)

// ChunkController 分块审核控制器。enrich/draft/approve/reject都是curator操作，
// 授权与状态守卫在服务层执行。
type ChunkController struct {
	BaseController
	chunks *services.ChunkReviewService
}

func (c *ChunkController) Prepare() {
	c.chunks = registry.Chunks
}

// ReviewQueue 文档的待审分块队列，置信分升序
func (c *ChunkController) ReviewQueue() {
	sess, ok := c.session()
	if !ok {
		return
	}

	docID, ok := c.paramUint(":doc_id")
	if !ok {
		return
	}

	queue, err := c.chunks.ReviewQueue(c.Ctx.Request.Context(), sess, docID)
	if err != nil {
		c.handleError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"chunks": queue,
		"count":  len(queue),
	})
}

// List 文档的全部分块
func (c *ChunkController) List() {
	sess, ok := c.session()
	if !ok {
		return
	}

	docID, ok := c.paramUint(":doc_id")
	if !ok {
		return
	}

	chunks, err := c.chunks.ListChunks(c.Ctx.Request.Context(), sess, docID)
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"chunks": chunks})
}

// Get 分块详情
func (c *ChunkController) Get() {
	sess, ok := c.session()
	if !ok {
		return
	}

	chunkID, ok := c.paramUint(":chunk_id")
	if !ok {
		return
	}

	chunk, err := c.chunks.GetChunk(c.Ctx.Request.Context(), sess, chunkID)
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(chunk)
}

// Enrich 对单个分块调用富化。同步执行，返回富化后的分块。
func (c *ChunkController) Enrich() {
	sess, ok := c.session()
	if !ok {
		return
	}

	chunkID, ok := c.paramUint(":chunk_id")
	if !ok {
		return
	}

	chunk, err := c.chunks.EnrichChunk(c.Ctx.Request.Context(), sess, chunkID)
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(chunk)
}

// EnrichDocument 批量富化文档的待审分块，返回成功富化的数量
func (c *ChunkController) EnrichDocument() {
	sess, ok := c.session()
	if !ok {
		return
	}

	docID, ok := c.paramUint(":doc_id")
	if !ok {
		return
	}

	enriched, err := c.chunks.EnrichDocument(c.Ctx.Request.Context(), sess, docID)
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"enriched": enriched})
}

type draftRequest struct {
	Notes    string                `json:"notes"`
	Metadata *models.ChunkMetadata `json:"metadata,omitempty"`
}

// SaveDraft 保存审核草稿，可携带手工修订的元数据
func (c *ChunkController) SaveDraft() {
	sess, ok := c.session()
	if !ok {
		return
	}

	chunkID, ok := c.paramUint(":chunk_id")
	if !ok {
		return
	}

	var req draftRequest
	if !c.bindJSON(&req) {
		return
	}

	chunk, err := c.chunks.SaveDraft(c.Ctx.Request.Context(), sess, chunkID, req.Notes, req.Metadata)
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(chunk)
}

type decisionRequest struct {
	Notes string `json:"notes"`
}

// Approve 批准分块，创建不可变向量记录
func (c *ChunkController) Approve() {
	sess, ok := c.session()
	if !ok {
		return
	}

	chunkID, ok := c.paramUint(":chunk_id")
	if !ok {
		return
	}

	var req decisionRequest
	if !c.bindJSON(&req) {
		return
	}

	chunk, err := c.chunks.Approve(c.Ctx.Request.Context(), sess, chunkID, req.Notes)
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(chunk)
}

// Reject 驳回分块
func (c *ChunkController) Reject() {
	sess, ok := c.session()
	if !ok {
		return
	}

	chunkID, ok := c.paramUint(":chunk_id")
	if !ok {
		return
	}

	var req decisionRequest
	if !c.bindJSON(&req) {
		return
	}

	chunk, err := c.chunks.Reject(c.Ctx.Request.Context(), sess, chunkID, req.Notes)
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(chunk)
}
