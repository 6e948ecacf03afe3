package main

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/joho/godotenv"
	"github.com/mintymetrics/internal/config"
	"github.com/mintymetrics/internal/db"
	"github.com/mintymetrics/internal/service"
)

// 测试数据生成器：向数据库写入最近 14 天的模拟访问，方便本地调试面板。
func main() {
	godotenv.Load()

	// 初始化数据库
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成测试数据...")

	settings := service.NewSettingsService(db.DB)
	pages := []string{"/", "/about", "/posts/go-sqlite", "/posts/self-hosting", "/pricing"}
	referrers := []*string{nil, strPtr("google.com"), strPtr("news.ycombinator.com"), strPtr("reddit.com")}
	devices := []string{"desktop", "desktop", "mobile", "tablet"}
	browsers := []string{"Chrome", "Firefox", "Safari", "Edge"}
	systems := []string{"Windows", "macOS", "Linux", "iOS", "Android"}
	countries := []*string{nil, strPtr("US"), strPtr("DE"), strPtr("JP"), strPtr("BR")}

	total := 0
	now := time.Now().UTC()
	for dayOffset := 0; dayOffset < 14; dayOffset++ {
		day := now.AddDate(0, 0, -dayOffset)
		salt := settings.DailySalt(day)
		visitors := 5 + rand.Intn(20)

		for v := 0; v < visitors; v++ {
			ip := fmt.Sprintf("203.0.113.%d", rand.Intn(254)+1)
			hash := service.GenerateVisitorHash(ip, "seed-agent", salt)
			views := 1 + rand.Intn(4)

			for pv := 0; pv < views; pv++ {
				at := day.Add(-time.Duration(rand.Intn(86400)) * time.Second)
				hit := db.Hit{
					Site:           "demo.example.com",
					VisitorHash:    hash,
					PagePath:       pages[rand.Intn(len(pages))],
					ReferrerDomain: referrers[rand.Intn(len(referrers))],
					CountryCode:    countries[rand.Intn(len(countries))],
					DeviceType:     devices[rand.Intn(len(devices))],
					Browser:        browsers[rand.Intn(len(browsers))],
					OS:             systems[rand.Intn(len(systems))],
					CreatedAt:      at.Unix(),
				}
				if rand.Intn(3) == 0 {
					seconds := 5 + rand.Intn(300)
					hit.TimeOnPage = &seconds
				}
				if err := db.DB.Create(&hit).Error; err != nil {
					log.Fatal("写入测试数据失败:", err)
				}
				total++
			}
		}
	}

	fmt.Println("测试数据生成完成！")
	fmt.Printf("站点: demo.example.com，共 %d 条访问记录\n", total)
}

func strPtr(s string) *string {
	return &s
}
