package db

// AdminAuth 存储单一管理员的密码哈希及登录失败锁定状态。
type AdminAuth struct {
	ID             uint   `gorm:"primaryKey"`
	PasswordHash   string `gorm:"not null"`
	FailedAttempts int    `gorm:"not null;default:0"`
	LastFailedAt   *int64
	LockoutUntil   *int64
}

// TableName 指定自定义表名。
func (AdminAuth) TableName() string {
	return "admin_auth"
}
