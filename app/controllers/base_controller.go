package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aihub/curation-go/internal/auth"
	"github.com/aihub/curation-go/internal/errors"
	"github.com/aihub/curation-go/internal/logger"
	"github.com/aihub/curation-go/internal/services"
	"github.com/beego/beego/v2/server/web"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Registry 控制器依赖的服务集合。beego每个请求都会new一个控制器实例，
// 字段注入会丢失，所以服务在bootstrap时填入包级注册表，控制器在Prepare中取用。
type Registry struct {
	Users     *services.UserService
	Documents *services.DocumentService
	Chunks    *services.ChunkReviewService
	Workflow  *services.WorkflowService
	Queue     *services.CurationQueueService
	KBs       *services.KnowledgeBaseService
}

var registry *Registry

// SetRegistry bootstrap时注入服务注册表
func SetRegistry(r *Registry) {
	registry = r
}

var validate = validator.New()

// BaseController 统一的JSON响应与请求解析辅助
type BaseController struct {
	web.Controller
}

// JSON 以指定状态码写JSON响应
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess 标准成功信封
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError 标准错误信封
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// handleError 按错误类型写响应。所有错误先归一化为AppError，
// 5xx记录日志，响应体不泄露内部细节。
func (c *BaseController) handleError(err error) {
	appErr := errors.Translate(err)

	if appErr.HTTPCode >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.Ctx.Request.RequestURI),
			zap.String("code", string(appErr.Code)),
			zap.Error(err))
	}

	payload := map[string]interface{}{
		"success": false,
		"error":   appErr.Message,
		"code":    appErr.Code,
	}
	if appErr.Details != nil {
		payload["details"] = appErr.Details
	}
	c.JSON(appErr.HTTPCode, payload)
}

// session 从请求上下文取认证中间件放入的Session
func (c *BaseController) session() (*auth.Session, bool) {
	if sess, ok := c.Ctx.Input.GetData("session").(*auth.Session); ok && sess != nil {
		return sess, true
	}
	c.JSONError(http.StatusUnauthorized, "authentication required")
	return nil, false
}

// bindJSON 解析请求体并执行validator标签校验
func (c *BaseController) bindJSON(target interface{}) bool {
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, target); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(target); err != nil {
		c.JSONError(http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// paramUint 解析URL参数为uint
func (c *BaseController) paramUint(key string) (uint, bool) {
	value := c.GetString(key)
	if value == "" {
		c.JSONError(http.StatusBadRequest, "missing required parameter")
		return 0, false
	}

	id, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		c.JSONError(http.StatusBadRequest, "invalid parameter format")
		return 0, false
	}
	return uint(id), true
}

// pagination 读取page/limit查询参数
func (c *BaseController) pagination() (int, int) {
	page, err := c.GetInt("page")
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := c.GetInt("limit")
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
