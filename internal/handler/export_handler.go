package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mintymetrics/internal/service"
)

// ExportCSV 以 CSV 下载指定数据集。
func (a *API) ExportCSV(c *gin.Context) {
	exportType := c.Query("type")
	valid := false
	for _, t := range service.ExportTypes {
		if exportType == t {
			valid = true
			break
		}
	}
	if !valid {
		respondError(c, http.StatusBadRequest, "unknown export type")
		return
	}

	from, to := dateRangeParams(c, time.Now())

	// 先写入缓冲：导出中途出错时还能返回干净的错误响应
	var buf bytes.Buffer
	if err := a.export.WriteCSV(&buf, exportType, siteParam(c), from, to); err != nil {
		respondError(c, http.StatusInternalServerError, "export failed")
		return
	}

	filename := service.ExportFilename(exportType, from, to)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
