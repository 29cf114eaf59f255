package middleware

import (
	"net/http"
	"strings"

	"github.com/aihub/curation-go/internal/auth"
	"github.com/aihub/curation-go/internal/services"
	"github.com/beego/beego/v2/server/web/context"
)

var (
	jwtService  *auth.JWTService
	userService *services.UserService
)

// InitAuth bootstrap时注入认证依赖
func InitAuth(jwt *auth.JWTService, users *services.UserService) {
	jwtService = jwt
	userService = users
}

// publicPaths 不需要认证的路径前缀
var publicPaths = []string{
	"/health",
	"/metrics",
	"/api/auth/",
}

func isPublic(path string) bool {
	if path == "/" {
		return true
	}
	for _, prefix := range publicPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func unauthorized(ctx *context.Context, message string) {
	ctx.Output.SetStatus(http.StatusUnauthorized)
	_ = ctx.Output.JSON(map[string]interface{}{
		"success": false,
		"error":   message,
	}, false, false)
}

// AuthMiddleware JWT认证过滤器。token只携带身份，角色、激活状态与知识库分配
// 在这里从数据库重读并构造Session放入请求上下文。
func AuthMiddleware(ctx *context.Context) {
	if isPublic(ctx.Request.URL.Path) {
		return
	}

	authHeader := ctx.Input.Header("Authorization")
	if authHeader == "" {
		unauthorized(ctx, "authentication required")
		return
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		unauthorized(ctx, "invalid authorization header")
		return
	}

	claims, err := jwtService.ValidateToken(parts[1])
	if err != nil {
		unauthorized(ctx, "invalid or expired token")
		return
	}

	sess, err := userService.BuildSession(ctx.Request.Context(), claims)
	if err != nil {
		unauthorized(ctx, "user no longer exists")
		return
	}

	ctx.Input.SetData("session", sess)
}
