package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mintymetrics/internal/config"
	"github.com/mintymetrics/internal/db"
	"github.com/mintymetrics/internal/handler"
	"github.com/mintymetrics/internal/router"
)

func main() {
	// .env 仅用于本地开发，线上直接读环境变量
	if err := godotenv.Load(); err == nil {
		log.Println("loaded configuration from .env")
	}

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	api := handler.NewAPI(db.DB, cfg.GeoDBPath)

	// 首次启动时用 ADMIN_PASSWORD 初始化管理员口令
	if err := api.Auth().EnsurePassword(cfg.AdminPassword); err != nil {
		log.Fatalf("failed to set admin password: %v", err)
	}
	if !api.Auth().HasPassword() {
		log.Println("warning: no admin password set, set ADMIN_PASSWORD and restart to enable the dashboard")
	}

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, cfg.SessionSecret)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
