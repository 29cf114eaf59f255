package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aihub/curation-go/internal/logger"
	"github.com/aihub/curation-go/internal/services"
	"go.uber.org/zap"
)

// DocumentController 文档上传与工作流控制器
type DocumentController struct {
	BaseController
	docs     *services.DocumentService
	workflow *services.WorkflowService
}

func (c *DocumentController) Prepare() {
	c.docs = registry.Documents
	c.workflow = registry.Workflow
}

// Upload 上传文档。multipart表单：file必填，doc_type必填，
// title/source_url/filters可选，filters为JSON数组。
func (c *DocumentController) Upload() {
	sess, ok := c.session()
	if !ok {
		return
	}

	file, header, err := c.GetFile("file")
	if err != nil {
		c.JSONError(http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	docType := strings.TrimSpace(c.GetString("doc_type"))
	if docType == "" {
		c.JSONError(http.StatusBadRequest, "doc_type is required")
		return
	}

	title := c.GetString("title")
	if title == "" {
		title = header.Filename
	}

	var filters []string
	if raw := c.GetString("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filters); err != nil {
			c.JSONError(http.StatusBadRequest, "filters must be a JSON array of strings")
			return
		}
	}

	doc, err := c.docs.Upload(c.Ctx.Request.Context(), sess, services.UploadRequest{
		DocType:   docType,
		Title:     title,
		SourceURL: c.GetString("source_url"),
		FileName:  header.Filename,
		FileSize:  header.Size,
		File:      file,
		Filters:   filters,
	})
	if err != nil {
		c.handleError(err)
		return
	}

	c.JSONSuccess(doc)
}

// Process 启动文档处理。处理是异步的，接口立即返回，
// 结果通过文档状态查询（review或failed）。
func (c *DocumentController) Process() {
	sess, ok := c.session()
	if !ok {
		return
	}

	docID, ok := c.paramUint(":doc_id")
	if !ok {
		return
	}

	doc, err := c.docs.Get(c.Ctx.Request.Context(), sess, docID)
	if err != nil {
		c.handleError(err)
		return
	}

	var filters []string
	if doc.RequestedFilters != "" {
		_ = json.Unmarshal([]byte(doc.RequestedFilters), &filters)
	}
	if raw := c.GetString("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filters); err != nil {
			c.JSONError(http.StatusBadRequest, "filters must be a JSON array of strings")
			return
		}
	}

	go func() {
		if err := c.docs.Process(context.Background(), docID, filters); err != nil {
			logger.Warn("document processing finished with error",
				zap.Uint("documentID", docID), zap.Error(err))
		}
	}()

	c.JSONSuccess(map[string]interface{}{
		"message":     "document processing started",
		"document_id": docID,
	})
}

// Get 文档详情
func (c *DocumentController) Get() {
	sess, ok := c.session()
	if !ok {
		return
	}

	docID, ok := c.paramUint(":doc_id")
	if !ok {
		return
	}

	doc, err := c.docs.Get(c.Ctx.Request.Context(), sess, docID)
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(doc)
}

// List 文档列表，按会话的知识库范围过滤
func (c *DocumentController) List() {
	sess, ok := c.session()
	if !ok {
		return
	}

	page, limit := c.pagination()
	docs, total, err := c.docs.List(c.Ctx.Request.Context(), sess, page, limit)
	if err != nil {
		c.handleError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"documents": docs,
		"total":     total,
		"page":      page,
		"limit":     limit,
	})
}

// Delete 删除文档，仅限admin
func (c *DocumentController) Delete() {
	sess, ok := c.session()
	if !ok {
		return
	}

	docID, ok := c.paramUint(":doc_id")
	if !ok {
		return
	}

	if err := c.docs.Delete(c.Ctx.Request.Context(), sess, docID); err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "document deleted"})
}

// Submit review → submitted，要求所有分块已达终态
func (c *DocumentController) Submit() {
	sess, ok := c.session()
	if !ok {
		return
	}

	docID, ok := c.paramUint(":doc_id")
	if !ok {
		return
	}

	if err := c.workflow.Submit(c.Ctx.Request.Context(), sess, docID); err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "document submitted"})
}

// Complete submitted → completed，仅限admin
func (c *DocumentController) Complete() {
	sess, ok := c.session()
	if !ok {
		return
	}

	docID, ok := c.paramUint(":doc_id")
	if !ok {
		return
	}

	if err := c.workflow.Complete(c.Ctx.Request.Context(), sess, docID); err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"message": "document completed"})
}
