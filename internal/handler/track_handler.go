package handler

import (
	_ "embed"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mintymetrics/internal/db"
	"github.com/mintymetrics/internal/service"
)

//go:embed assets/tracker.js
var trackerJS string

// 1x1 透明 GIF。采集端点无论成败都返回它，客户端不可见任何差异。
const pixelGIFBase64 = "R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"

var pixelGIF = func() []byte {
	data, err := base64.StdEncoding.DecodeString(pixelGIFBase64)
	if err != nil {
		panic("decode tracking pixel: " + err.Error())
	}
	return data
}()

func servePixel(c *gin.Context) {
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Data(http.StatusOK, "image/gif", pixelGIF)
}

func dntSignal(c *gin.Context) (dnt, gpc bool) {
	return c.GetHeader("DNT") == "1", c.GetHeader("Sec-GPC") == "1"
}

// Hit 处理 pageview 采集。无论结果如何都返回同一张像素图：
// 采集失败是服务端的问题，不能变成访客页面上的异常。
func (a *API) Hit(c *gin.Context) {
	dnt, gpc := dntSignal(c)
	req := service.HitRequest{
		Marker:      c.Query("js"),
		Site:        c.Query("site"),
		Page:        c.Query("path"),
		Referrer:    c.Query("ref"),
		UTMSource:   c.Query("utm_source"),
		UTMMedium:   c.Query("utm_medium"),
		UTMCampaign: c.Query("utm_campaign"),
		UTMTerm:     c.Query("utm_term"),
		UTMContent:  c.Query("utm_content"),
		ScreenRes:   c.Query("sr"),
		Language:    c.Query("lang"),
		IP:          c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		DoNotTrack:  dnt,
		GPC:         gpc,
	}

	outcome := a.tracker.TrackHit(req, time.Now())
	if outcome.Status == service.TrackFailed {
		db.AppendLog(a.db, "error", "track hit: "+outcome.Err.Error())
	}
	servePixel(c)
}

// Beacon 处理停留时长回填，始终返回 204。
func (a *API) Beacon(c *gin.Context) {
	seconds, _ := strconv.Atoi(beaconParam(c, "t"))
	req := service.BeaconRequest{
		Marker:    beaconParam(c, "js"),
		Site:      beaconParam(c, "site"),
		Page:      beaconParam(c, "path"),
		Seconds:   seconds,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	outcome := a.tracker.TrackBeacon(req, time.Now())
	if outcome.Status == service.TrackFailed {
		db.AppendLog(a.db, "error", "track beacon: "+outcome.Err.Error())
	}
	c.Status(http.StatusNoContent)
}

// sendBeacon 以表单体提交，Image 回退以查询串提交，两处都要找。
func beaconParam(c *gin.Context, key string) string {
	if value := c.PostForm(key); value != "" {
		return value
	}
	return c.Query(key)
}

// TrackerJS 下发嵌码脚本，站点名与隐私开关在下发时注入。
func (a *API) TrackerJS(c *gin.Context) {
	site := service.SanitizeSite(c.Query("site"))

	respect := "0"
	if a.settings.GetBool(db.SettingKeyRespectDNT, true) {
		respect = "1"
	}

	js := strings.ReplaceAll(trackerJS, "{{SITE}}", site)
	js = strings.ReplaceAll(js, "{{RESPECT_DNT}}", respect)

	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", []byte(js))
}
