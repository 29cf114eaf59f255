package main

import (
	"log"
	"strconv"

	"github.com/aihub/curation-go/app/bootstrap"
	"github.com/aihub/curation-go/app/router"
	"github.com/aihub/curation-go/internal/config"
	"github.com/aihub/curation-go/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	router.Init()

	web.BConfig.AppName = "Curation Service"
	web.BConfig.CopyRequestBody = true
	if port, err := strconv.Atoi(config.AppConfig.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = port
	}

	logger.Info("starting curation service", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
