package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"polls-analytics/internal/domain"
	"polls-analytics/internal/repository"
)

// GormSocialAccountRepository 是 SocialAccountRepository 接口的 GORM 实现
type GormSocialAccountRepository struct {
	db *gorm.DB
}

// NewGormSocialAccountRepository 创建 GormSocialAccountRepository 实例
func NewGormSocialAccountRepository(db *gorm.DB) *GormSocialAccountRepository {
	if db == nil {
		panic("database connection cannot be nil for GormSocialAccountRepository")
	}
	return &GormSocialAccountRepository{db: db}
}

// FindByProviderUID 实现根据 (provider, uid) 查找关联记录
func (r *GormSocialAccountRepository) FindByProviderUID(ctx context.Context, provider, uid string) (*domain.SocialAccount, error) {
	var account domain.SocialAccount
	err := r.db.WithContext(ctx).Where("provider = ? AND uid = ?", provider, uid).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSocialAccountNotFound
		}
		return nil, fmt.Errorf("gorm: find social account %s/%s: %w", provider, uid, err)
	}
	return &account, nil
}

// Save 实现保存关联记录（创建或更新）
func (r *GormSocialAccountRepository) Save(ctx context.Context, account *domain.SocialAccount) error {
	err := r.db.WithContext(ctx).Save(account).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save social account (provider: %s, uid: %s): %w", account.Provider, account.UID, err)
	}
	return nil
}
