package router

import (
	"github.com/aihub/curation-go/app/controllers"
	"github.com/aihub/curation-go/app/middleware"
	"github.com/aihub/curation-go/internal/metrics"
	"github.com/beego/beego/v2/server/web"
)

// Init 注册所有路由与过滤器。必须在配置加载之后调用。
func Init() {
	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")
	web.Handler("/metrics", metrics.Handler())

	web.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)
	web.InsertFilter("/*", web.BeforeRouter, middleware.AuthMiddleware)

	// 认证
	authController := &controllers.AuthController{}
	web.Router("/api/auth/register", authController, "post:Register")
	web.Router("/api/auth/login", authController, "post:Login")

	// 知识库注册表
	kbController := &controllers.KnowledgeBaseController{}
	web.Router("/api/knowledge-bases", kbController, "get:List;post:Create")
	web.Router("/api/knowledge-bases/:kb_id", kbController, "get:Get;put:Update;delete:Delete")

	// 文档工作流
	docController := &controllers.DocumentController{}
	web.Router("/api/documents", docController, "get:List;post:Upload")
	web.Router("/api/documents/:doc_id", docController, "get:Get;delete:Delete")
	web.Router("/api/documents/:doc_id/process", docController, "post:Process")
	web.Router("/api/documents/:doc_id/submit", docController, "post:Submit")
	web.Router("/api/documents/:doc_id/complete", docController, "post:Complete")

	// 分块审核
	chunkController := &controllers.ChunkController{}
	web.Router("/api/documents/:doc_id/chunks", chunkController, "get:List")
	web.Router("/api/documents/:doc_id/review-queue", chunkController, "get:ReviewQueue")
	web.Router("/api/documents/:doc_id/enrich", chunkController, "post:EnrichDocument")
	web.Router("/api/chunks/:chunk_id", chunkController, "get:Get")
	web.Router("/api/chunks/:chunk_id/enrich", chunkController, "post:Enrich")
	web.Router("/api/chunks/:chunk_id/draft", chunkController, "put:SaveDraft")
	web.Router("/api/chunks/:chunk_id/approve", chunkController, "post:Approve")
	web.Router("/api/chunks/:chunk_id/reject", chunkController, "post:Reject")

	// 策展队列
	queueController := &controllers.QueueController{}
	web.Router("/api/curation-queue", queueController, "get:List;post:Add")
	web.Router("/api/curation-queue/:item_id/assign", queueController, "post:Assign")
	web.Router("/api/curation-queue/:item_id/complete", queueController, "post:Complete")

	// 管理
	adminController := &controllers.AdminController{}
	web.Router("/api/admin/users", adminController, "get:ListUsers")
	web.Router("/api/admin/users/:user_id/role", adminController, "put:SetRole")
	web.Router("/api/admin/users/:user_id/active", adminController, "put:SetActive")
	web.Router("/api/admin/users/:user_id/kbs", adminController, "put:AssignKBs")
	web.Router("/api/admin/chunks/reclaim-enriching", adminController, "post:ReclaimEnriching")
}
