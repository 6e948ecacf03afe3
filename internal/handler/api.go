package handler

import (
	"github.com/mintymetrics/internal/service"
	"gorm.io/gorm"
)

// API 聚合所有 HTTP 处理器共享的服务依赖。
type API struct {
	db       *gorm.DB
	settings *service.SettingsService
	tracker  *service.TrackerService
	cleanup  *service.CleanupService
	stats    *service.StatsService
	auth     *service.AuthService
	geo      *service.GeoService
	export   *service.ExportService
}

// NewAPI 构造处理器集合并完成服务装配。
func NewAPI(gdb *gorm.DB, geoPath string) *API {
	settings := service.NewSettingsService(gdb)
	geo := service.NewGeoService(settings, geoPath)
	stats := service.NewStatsService(gdb, settings)

	return &API{
		db:       gdb,
		settings: settings,
		tracker:  service.NewTrackerService(gdb, settings, geo),
		cleanup:  service.NewCleanupService(gdb, settings),
		stats:    stats,
		auth:     service.NewAuthService(gdb),
		geo:      geo,
		export:   service.NewExportService(gdb, stats),
	}
}

// DB 返回底层 gorm 实例。
func (a *API) DB() *gorm.DB {
	return a.db
}

// Settings 返回配置服务，供路由层和启动流程使用。
func (a *API) Settings() *service.SettingsService {
	return a.settings
}

// Auth 返回认证服务，供启动流程设置初始密码。
func (a *API) Auth() *service.AuthService {
	return a.auth
}
