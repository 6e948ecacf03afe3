package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/mintymetrics/internal/handler"
	"github.com/mintymetrics/internal/service"
)

// 后台统计 API 暴露的维度路由。
var breakdownDimensions = []string{
	"pages", "referrers", "countries", "devices",
	"browsers", "os", "screens", "languages",
}

// SetupRouter 配置 Gin 引擎和路由。
func SetupRouter(api *handler.API, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("mm_session", store))

	// 采集端点被第三方站点跨域调用，按允许列表放行；
	// 列表为空时是单站点模式，放行所有来源
	trackCORS := cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			allowed := api.Settings().AllowedDomains()
			if len(allowed) == 0 {
				return true
			}
			host := service.SanitizeSite(originHost(origin))
			for _, domain := range allowed {
				if host == domain || (len(host) > len(domain) && host[len(host)-len(domain)-1] == '.' && host[len(host)-len(domain):] == domain) {
					return true
				}
			}
			return false
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       24 * time.Hour,
	})

	track := r.Group("/", trackCORS)
	{
		track.GET("/hit", api.Hit)
		track.POST("/beacon", api.Beacon)
		track.GET("/tracker.js", api.TrackerJS)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// 后台管理路由
	admin := r.Group("/admin")
	{
		admin.GET("/login", api.ShowLoginPage)
		admin.POST("/login", api.Login)
		admin.GET("/logout", api.Logout)

		// 需要认证的后台路由
		auth := admin.Group("")
		auth.Use(api.AuthRequired())
		{
			auth.GET("/dashboard", api.ShowDashboard)
			auth.GET("/page/:page", api.ShowDoc)

			// API路由
			apiGroup := auth.Group("/api")
			{
				apiGroup.GET("/stats/summary", api.GetSummary)
				apiGroup.GET("/stats/chart", api.GetChart)
				apiGroup.GET("/stats/utm", api.GetUTM)
				apiGroup.GET("/stats/live", api.GetLive)
				for _, dimension := range breakdownDimensions {
					apiGroup.GET("/stats/"+dimension, api.GetBreakdown(dimension))
				}

				apiGroup.GET("/sites", api.GetSites)
				apiGroup.GET("/logs", api.GetLogs)
				apiGroup.GET("/export", api.ExportCSV)
				apiGroup.POST("/cleanup", api.RunCleanup)

				apiGroup.GET("/settings", api.GetSettings)
				apiGroup.POST("/settings", api.UpdateSettings)
				apiGroup.POST("/geo/download", api.DownloadGeoDatabase)
				apiGroup.POST("/geo/upload", api.UploadGeoDatabase)
			}
		}
	}

	return r
}

// originHost 从 Origin 头里取主机名（去掉协议与端口）。
func originHost(origin string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if len(origin) > len(prefix) && origin[:len(prefix)] == prefix {
			origin = origin[len(prefix):]
			break
		}
	}
	for i := 0; i < len(origin); i++ {
		if origin[i] == ':' || origin[i] == '/' {
			return origin[:i]
		}
	}
	return origin
}
