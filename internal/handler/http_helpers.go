package handler

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

var dateParamRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// dateRangeParams 解析 from / to 查询参数，缺失或非法时回退到最近 7 天。
func dateRangeParams(c *gin.Context, now time.Time) (string, string) {
	utc := now.UTC()
	from := c.Query("from")
	to := c.Query("to")

	if !dateParamRe.MatchString(from) {
		from = utc.AddDate(0, 0, -6).Format("2006-01-02")
	}
	if !dateParamRe.MatchString(to) {
		to = utc.Format("2006-01-02")
	}
	if from > to {
		from, to = to, from
	}
	return from, to
}

// siteParam 返回清洗后的站点过滤参数（逗号分隔），剔除非法字符。
func siteParam(c *gin.Context) string {
	raw := c.Query("site")
	if raw == "" {
		return ""
	}
	var cleaned []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		part = siteParamSanitizeRe.ReplaceAllString(part, "")
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}
	return strings.Join(cleaned, ",")
}

var siteParamSanitizeRe = regexp.MustCompile(`[^a-z0-9.\-]`)

// limitOffsetParams 解析分页参数，limit 缺省取 def。
func limitOffsetParams(c *gin.Context, def int) (int, int) {
	limit := def
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	offset := 0
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			offset = parsed
		}
	}
	return limit, offset
}
