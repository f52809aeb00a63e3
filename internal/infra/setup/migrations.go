package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"polls-analytics/internal/domain"
)

// MigrateDB 自动迁移数据库模式。
// 用户名/邮箱和 (provider, uid) 的唯一索引在这里建立，社交登录的
// 用户名冲突重试依赖这些约束，而不是进程内检查。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	err := db.AutoMigrate(
		&domain.User{},
		&domain.SocialAccount{},
		&domain.Question{},
		&domain.Choice{},
	)
	if err != nil {
		logrus.Errorf("Failed to auto-migrate tables: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}
