package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mintymetrics/internal/db"
	"github.com/mintymetrics/internal/service"
)

type settingsRequest struct {
	DataRetentionDays  *int     `json:"dataRetentionDays"`
	MaxDBSizeMB        *float64 `json:"maxDbSizeMb"`
	RespectDNT         *bool    `json:"respectDnt"`
	EnableGeo          *bool    `json:"enableGeo"`
	LiveVisitorMinutes *int     `json:"liveVisitorMinutes"`
	AllowedDomains     []string `json:"allowedDomains"`
	NewPassword        *string  `json:"newPassword"`
}

// GetSettings 返回当前系统设置。
func (a *API) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"settings": gin.H{
		"dataRetentionDays":  a.settings.GetInt(db.SettingKeyRetentionDays, service.DefaultRetentionDays),
		"maxDbSizeMb":        a.settings.GetFloat(db.SettingKeyMaxDBSizeMB, service.DefaultMaxDBSizeMB),
		"respectDnt":         a.settings.GetBool(db.SettingKeyRespectDNT, true),
		"enableGeo":          a.settings.GetBool(db.SettingKeyEnableGeo, true),
		"liveVisitorMinutes": a.settings.GetInt(db.SettingKeyLiveVisitorMinutes, service.DefaultLiveVisitorMinutes),
		"allowedDomains":     a.settings.AllowedDomains(),
		"geoAvailable":       a.geo.Available(),
		"dbSizeMb":           db.SizeMB(),
	}})
}

// UpdateSettings 保存系统设置，只更新请求里出现的字段。
func (a *API) UpdateSettings(c *gin.Context) {
	var payload settingsRequest
	if !bindJSON(c, &payload, "invalid settings payload") {
		return
	}

	if payload.DataRetentionDays != nil {
		if *payload.DataRetentionDays < 1 {
			respondError(c, http.StatusBadRequest, "retention must be at least 1 day")
			return
		}
		if err := a.settings.Set(db.SettingKeyRetentionDays, strconv.Itoa(*payload.DataRetentionDays)); err != nil {
			respondError(c, http.StatusInternalServerError, "failed to save settings")
			return
		}
	}
	if payload.MaxDBSizeMB != nil {
		if *payload.MaxDBSizeMB < 1 {
			respondError(c, http.StatusBadRequest, "size limit must be at least 1 MB")
			return
		}
		if err := a.settings.Set(db.SettingKeyMaxDBSizeMB, strconv.FormatFloat(*payload.MaxDBSizeMB, 'f', -1, 64)); err != nil {
			respondError(c, http.StatusInternalServerError, "failed to save settings")
			return
		}
	}
	if payload.RespectDNT != nil {
		if err := a.settings.SetBool(db.SettingKeyRespectDNT, *payload.RespectDNT); err != nil {
			respondError(c, http.StatusInternalServerError, "failed to save settings")
			return
		}
	}
	if payload.EnableGeo != nil {
		if err := a.settings.SetBool(db.SettingKeyEnableGeo, *payload.EnableGeo); err != nil {
			respondError(c, http.StatusInternalServerError, "failed to save settings")
			return
		}
	}
	if payload.LiveVisitorMinutes != nil {
		if *payload.LiveVisitorMinutes < 1 {
			respondError(c, http.StatusBadRequest, "live window must be at least 1 minute")
			return
		}
		if err := a.settings.Set(db.SettingKeyLiveVisitorMinutes, strconv.Itoa(*payload.LiveVisitorMinutes)); err != nil {
			respondError(c, http.StatusInternalServerError, "failed to save settings")
			return
		}
	}
	if payload.AllowedDomains != nil {
		cleaned := make([]string, 0, len(payload.AllowedDomains))
		for _, domain := range payload.AllowedDomains {
			if s := service.SanitizeSite(domain); s != "" {
				cleaned = append(cleaned, s)
			}
		}
		if err := a.settings.SetAllowedDomains(cleaned); err != nil {
			respondError(c, http.StatusInternalServerError, "failed to save settings")
			return
		}
	}
	if payload.NewPassword != nil {
		if err := a.auth.SetPassword(*payload.NewPassword); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "settings saved"})
}

type geoDownloadRequest struct {
	Token string `json:"token"`
}

// DownloadGeoDatabase 用下载令牌拉取并安装地理数据库。
func (a *API) DownloadGeoDatabase(c *gin.Context) {
	var payload geoDownloadRequest
	if !bindJSON(c, &payload, "download token is required") {
		return
	}

	if err := a.geo.Download(payload.Token); err != nil {
		respondError(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "geo database installed"})
}

// UploadGeoDatabase 接收手动上传的地理数据库文件并安装。
func (a *API) UploadGeoDatabase(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "geo database file is required")
		return
	}
	if file.Size > service.GeoMaxDownloadBytes {
		respondError(c, http.StatusBadRequest, "geo database exceeds size limit")
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to read uploaded file")
		return
	}
	defer src.Close()

	if err := a.geo.Install(src); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "geo database installed"})
}
