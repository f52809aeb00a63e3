// Package domain 定义了应用程序的核心数据模型 (数据库模型)。
package domain

import "time"

// User 表示应用程序中的用户。
type User struct {
	ID        uint      `gorm:"primaryKey"` // 用户唯一标识符 (主键)
	Username  string    `gorm:"type:varchar(191);uniqueIndex:idx_username;not null"`
	Password  string    `gorm:"type:text"` // 哈希后的密码；纯社交登录用户可以为空
	Email     string    `gorm:"type:varchar(191);uniqueIndex:idx_email"`
	FirstName string    `gorm:"type:varchar(191)"` // 名字 (可由身份提供商填充)
	LastName  string    `gorm:"type:varchar(191)"` // 姓氏 (可由身份提供商填充)
	CreatedAt time.Time `gorm:"autoCreateTime"`    // 记录创建时间 (GORM 自动填充)
	UpdatedAt time.Time `gorm:"autoUpdateTime"`    // 记录最后更新时间 (GORM 自动填充)
}

// SocialAccount 表示用户与外部身份提供商账号的关联。
// 不变量：一个 (provider, uid) 组合最多映射到一个本地用户。
type SocialAccount struct {
	ID       uint   `gorm:"primaryKey"`
	UserID   uint   `gorm:"index;not null"` // 关联的本地用户 ID (外键到 User.ID)
	Provider string `gorm:"type:varchar(64);uniqueIndex:idx_provider_uid;not null"`
	// UID 是身份提供商为该账号分配的标识符
	UID       string    `gorm:"type:varchar(191);uniqueIndex:idx_provider_uid;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
