package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mintymetrics/internal/db"
)

// breakdownDefaults 给每个维度一个默认返回行数。
var breakdownDefaults = map[string]int{
	"pages":     50,
	"referrers": 50,
	"countries": 50,
	"devices":   10,
	"browsers":  20,
	"os":        20,
	"screens":   20,
	"languages": 20,
}

// GetSummary 返回范围内的概览指标。
func (a *API) GetSummary(c *gin.Context) {
	from, to := dateRangeParams(c, time.Now())
	summary, err := a.stats.Summary(siteParam(c), from, to)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load summary")
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "summary": summary})
}

// GetChart 返回按天的浏览量 / 访客数序列。
func (a *API) GetChart(c *gin.Context) {
	from, to := dateRangeParams(c, time.Now())
	points, err := a.stats.Chart(siteParam(c), from, to)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load chart")
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "points": points})
}

// GetBreakdown 返回指定维度的分类统计处理器，维度名是注册期的封闭集合。
func (a *API) GetBreakdown(dimension string) gin.HandlerFunc {
	def, ok := breakdownDefaults[dimension]
	if !ok {
		def = 20
	}

	return func(c *gin.Context) {
		from, to := dateRangeParams(c, time.Now())
		limit, offset := limitOffsetParams(c, def)
		rows, err := a.stats.Breakdown(dimension, siteParam(c), from, to, limit, offset)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "failed to load breakdown")
			return
		}
		c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "rows": rows})
	}
}

// GetUTM 返回 UTM 三元组分类统计。
func (a *API) GetUTM(c *gin.Context) {
	from, to := dateRangeParams(c, time.Now())
	limit, offset := limitOffsetParams(c, 50)
	rows, err := a.stats.UTM(siteParam(c), from, to, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load utm breakdown")
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "rows": rows})
}

// GetLive 返回最近活跃窗口内的在线访客数。
func (a *API) GetLive(c *gin.Context) {
	count, err := a.stats.Live(siteParam(c), time.Now())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load live visitors")
		return
	}
	c.JSON(http.StatusOK, gin.H{"live": count})
}

// GetSites 返回全部已知站点。
func (a *API) GetSites(c *gin.Context) {
	sites, err := a.stats.Sites()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load sites")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sites": sites})
}

// GetLogs 返回最近的持久化日志。
func (a *API) GetLogs(c *gin.Context) {
	limit, _ := limitOffsetParams(c, 100)
	if limit > db.LogMaxEntries {
		limit = db.LogMaxEntries
	}

	var entries []db.LogEntry
	if err := a.db.Order("id DESC").Limit(limit).Find(&entries).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load logs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries})
}

// RunCleanup 手动触发一轮归档。
func (a *API) RunCleanup(c *gin.Context) {
	if err := a.cleanup.Run(time.Now()); err != nil {
		db.AppendLog(a.db, "error", "cleanup: "+err.Error())
		respondError(c, http.StatusInternalServerError, "cleanup failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cleanup complete"})
}

// ShowDashboard 渲染后台面板，并顺带触发每日归档。
func (a *API) ShowDashboard(c *gin.Context) {
	// 没有常驻定时器，归档挂在面板访问上，每天至多跑一轮
	if err := a.cleanup.Run(time.Now()); err != nil {
		db.AppendLog(a.db, "error", "cleanup: "+err.Error())
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", dashboardHTML)
}
