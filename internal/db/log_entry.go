package db

import (
	"log"
	"time"

	"gorm.io/gorm"
)

// LogMaxEntries 是持久化日志的条数上限，超出部分按时间先后裁剪。
const LogMaxEntries = 1000

// LogEntry 持久化被吞掉的采集 / 归档错误，便于在面板上排查。
type LogEntry struct {
	ID        uint   `gorm:"primaryKey"`
	Level     string `gorm:"size:16;not null;default:'error'"`
	Message   string `gorm:"type:text;not null"`
	CreatedAt int64  `gorm:"not null"`
}

// TableName 指定自定义表名。
func (LogEntry) TableName() string {
	return "logs"
}

// AppendLog 写入一条日志并裁剪超限的旧日志。
// 日志写入本身失败时只输出到进程日志，绝不向上传播。
func AppendLog(gdb *gorm.DB, level, message string) {
	if gdb == nil {
		log.Printf("[%s] %s", level, message)
		return
	}

	runes := []rune(message)
	if len(runes) > 2000 {
		message = string(runes[:2000])
	}

	entry := LogEntry{Level: level, Message: message, CreatedAt: time.Now().Unix()}
	if err := gdb.Create(&entry).Error; err != nil {
		log.Printf("append log failed: %v (original: [%s] %s)", err, level, message)
		return
	}

	gdb.Exec(
		"DELETE FROM logs WHERE id NOT IN (SELECT id FROM logs ORDER BY id DESC LIMIT ?)",
		LogMaxEntries,
	)
}
