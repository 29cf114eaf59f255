package controllers

import (
	"net/http"
	"time"

	"github.com/aihub/curation-go/internal/database"
)

// RootController 服务根路径
type RootController struct {
	BaseController
}

func (c *RootController) Index() {
	c.JSONSuccess(map[string]interface{}{
		"service": "curation-service",
		"status":  "running",
	})
}

// HealthController 健康检查
type HealthController struct {
	BaseController
}

func (c *HealthController) Health() {
	checks := map[string]string{}
	healthy := true

	if database.DB != nil {
		if sqlDB, err := database.DB.DB(); err == nil && sqlDB.Ping() == nil {
			checks["database"] = "ok"
		} else {
			checks["database"] = "unavailable"
			healthy = false
		}
	} else {
		checks["database"] = "not configured"
		healthy = false
	}

	if database.RedisClient != nil {
		if err := database.RedisClient.Ping(c.Ctx.Request.Context()).Err(); err == nil {
			checks["redis"] = "ok"
		} else {
			checks["redis"] = "unavailable"
		}
	} else {
		checks["redis"] = "not configured"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, map[string]interface{}{
		"healthy":   healthy,
		"checks":    checks,
		"timestamp": time.Now().Unix(),
	})
}
