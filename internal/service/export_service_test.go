package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/mintymetrics/internal/db"
)

func TestExportPageviewsCSV(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	stats := NewStatsService(db.DB, NewSettingsService(db.DB))
	export := NewExportService(db.DB, stats)

	day := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	insertHit(t, "example.com", "v1", "/", day, nil)
	insertHit(t, "example.com", "v2", "/", day.Add(time.Hour), nil)

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, "pageviews", "", "2025-05-01", "2025-05-02"); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 day rows, got %d records", len(records))
	}
	if records[0][0] != "date" || records[0][1] != "pageviews" || records[0][2] != "visitors" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][0] != "2025-05-01" || records[1][1] != "2" {
		t.Fatalf("unexpected first row: %v", records[1])
	}
	if records[2][1] != "0" {
		t.Fatalf("empty day should export zeros: %v", records[2])
	}
}

func TestExportPagesCSV(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	stats := NewStatsService(db.DB, NewSettingsService(db.DB))
	export := NewExportService(db.DB, stats)

	day := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	insertHit(t, "example.com", "v1", "/popular", day, nil)
	insertHit(t, "example.com", "v2", "/popular", day.Add(time.Hour), nil)
	insertHit(t, "example.com", "v3", "/rare", day.Add(2*time.Hour), nil)

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, "pages", "", "2025-05-01", "2025-05-01"); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 page rows, got %d", len(records))
	}
	if records[1][0] != "/popular" || records[1][1] != "2" {
		t.Fatalf("unexpected top page row: %v", records[1])
	}
}

func TestExportBypassesAPIRowLimit(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	stats := NewStatsService(db.DB, NewSettingsService(db.DB))
	export := NewExportService(db.DB, stats)

	pages := make(map[string]int64, 600)
	for i := 0; i < 600; i++ {
		pages[fmt.Sprintf("/page-%04d", i)] = int64(600 - i)
	}
	encoded, err := json.Marshal(pages)
	if err != nil {
		t.Fatalf("encode pages failed: %v", err)
	}
	summary := db.DailySummary{
		Date: "2025-05-01", Site: "example.com",
		Pageviews: 600, UniqueVisitors: 600, TopPages: string(encoded),
	}
	if err := db.DB.Create(&summary).Error; err != nil {
		t.Fatalf("insert summary failed: %v", err)
	}

	// API 查询照常截断在上限
	rows, err := stats.Breakdown("pages", "", "2025-05-01", "2025-05-01", 100000, 0)
	if err != nil {
		t.Fatalf("breakdown failed: %v", err)
	}
	if len(rows) != MaxBreakdownLimit {
		t.Fatalf("expected api query clamped to %d rows, got %d", MaxBreakdownLimit, len(rows))
	}

	// 导出要拿到全量数据
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, "pages", "", "2025-05-01", "2025-05-01"); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv failed: %v", err)
	}
	if len(records) != 601 {
		t.Fatalf("expected header plus 600 rows, got %d", len(records))
	}
}

func TestExportRejectsUnknownType(t *testing.T) {
	cleanup := setupServiceTestDB(t)
	defer cleanup()

	stats := NewStatsService(db.DB, NewSettingsService(db.DB))
	export := NewExportService(db.DB, stats)

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, "hits", "", "2025-05-01", "2025-05-01"); err == nil {
		t.Fatal("unknown export type must be rejected")
	}
}

func TestExportFilename(t *testing.T) {
	got := ExportFilename("pages", "2025-05-01", "2025-05-07")
	want := "mintymetrics-pages-2025-05-01-to-2025-05-07.csv"
	if got != want {
		t.Fatalf("ExportFilename = %q, want %q", got, want)
	}
}
