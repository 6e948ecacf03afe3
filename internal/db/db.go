package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

// dbPath 记录当前数据库文件路径，供体积检查使用。
var dbPath string

// Init 初始化数据库连接并执行自动迁移。
// databasePath 为空时将回退到默认值 mintymetrics.db。
func Init(databasePath string) error {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		path = "mintymetrics.db"
	}

	if err := ensureParentDir(path); err != nil {
		return err
	}

	var err error
	DB, err = gorm.Open(sqlite.Open(buildDSN(path)), &gorm.Config{})
	if err != nil {
		return err
	}

	// 自动迁移模式，为核心模型创建表
	if err = DB.AutoMigrate(
		&Hit{},
		&DailySummary{},
		&RateLimitEntry{},
		&Setting{},
		&AdminAuth{},
		&LogEntry{},
	); err != nil {
		return err
	}

	dbPath = path
	return nil
}

// buildDSN 为文件型数据库附加 SQLite 调优参数。
// 写事务通过 _txlock=immediate 直接获取写锁，锁竞争由 5 秒 busy_timeout 兜底。
func buildDSN(path string) string {
	if strings.HasPrefix(path, "file:") || strings.HasPrefix(path, ":memory:") {
		return path
	}
	return fmt.Sprintf(
		"file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL&_txlock=immediate&_foreign_keys=on&_auto_vacuum=incremental",
		path,
	)
}

// Path 返回数据库文件路径，内存库返回空字符串。
func Path() string {
	return dbPath
}

// SizeMB 返回数据库文件的体积（MB），文件不存在或内存库时返回 0。
func SizeMB() float64 {
	if dbPath == "" {
		return 0
	}
	info, err := os.Stat(dbPath)
	if err != nil {
		return 0
	}
	return float64(info.Size()) / 1048576.0
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
