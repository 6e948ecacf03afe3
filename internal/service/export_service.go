package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"gorm.io/gorm"
)

// ExportTypes 是 CSV 导出支持的数据集名单。
var ExportTypes = []string{"pageviews", "pages", "referrers", "utm", "countries"}

// ExportService 把统计数据写成 CSV，供外部工具二次处理。
type ExportService struct {
	stats *StatsService
	db    *gorm.DB
}

// NewExportService 构造 ExportService。
func NewExportService(gdb *gorm.DB, stats *StatsService) *ExportService {
	return &ExportService{stats: stats, db: gdb}
}

// WriteCSV 把指定数据集写入 w。exportType 必须是 ExportTypes 之一。
func (e *ExportService) WriteCSV(w io.Writer, exportType, site, from, to string) error {
	writer := csv.NewWriter(w)

	switch exportType {
	case "pageviews":
		if err := e.writePageviews(writer, site, from, to); err != nil {
			return err
		}
	case "pages", "referrers", "countries":
		dimension := exportType
		rows, err := e.stats.breakdownRows(dimension, site, from, to, ExportMaxRows, 0)
		if err != nil {
			return err
		}
		header := map[string]string{
			"pages":     "page",
			"referrers": "referrer",
			"countries": "country",
		}[dimension]
		if err := writer.Write([]string{header, "visitors"}); err != nil {
			return err
		}
		for _, row := range rows {
			if err := writer.Write([]string{row.Value, strconv.FormatInt(row.Count, 10)}); err != nil {
				return err
			}
		}
	case "utm":
		rows, err := e.stats.utmRows(site, from, to, ExportMaxRows, 0)
		if err != nil {
			return err
		}
		if err := writer.Write([]string{"source", "medium", "campaign", "count"}); err != nil {
			return err
		}
		for _, row := range rows {
			record := []string{
				derefOr(row.Source, ""),
				derefOr(row.Medium, ""),
				derefOr(row.Campaign, ""),
				strconv.FormatInt(row.Count, 10),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown export type %q", exportType)
	}

	writer.Flush()
	return writer.Error()
}

// writePageviews 按天导出浏览量与访客数。
func (e *ExportService) writePageviews(writer *csv.Writer, site, from, to string) error {
	points, err := e.stats.Chart(site, from, to)
	if err != nil {
		return err
	}
	if len(points) > ExportMaxRows {
		points = points[:ExportMaxRows]
	}

	if err := writer.Write([]string{"date", "pageviews", "visitors"}); err != nil {
		return err
	}
	for _, p := range points {
		record := []string{
			p.Date,
			strconv.FormatInt(p.Pageviews, 10),
			strconv.FormatInt(p.Visitors, 10),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// ExportFilename 生成下载用的文件名。
func ExportFilename(exportType, from, to string) string {
	return fmt.Sprintf("mintymetrics-%s-%s-to-%s.csv", exportType, from, to)
}
