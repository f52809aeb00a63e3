package repository

import (
	"context"

	"polls-analytics/internal/domain"
)

// UserRepository 定义了用户数据的存储和检索操作。
type UserRepository interface {
	// FindByUsername 根据用户名查找用户。
	// 如果用户不存在，应返回 repository.ErrUserNotFound。
	FindByUsername(ctx context.Context, username string) (*domain.User, error)

	// FindByEmail 根据邮箱查找用户。
	// 如果用户不存在，应返回 repository.ErrUserNotFound。
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// FindByID 根据用户 ID 查找用户。
	FindByID(ctx context.Context, id uint) (*domain.User, error)

	// IsUsernameExists 检查用户名是否已被占用。
	// 注意：该检查只用于减少冲突概率，最终一致性由存储层的唯一约束保证，
	// 调用方必须把 Save 返回的 ErrDuplicateEntry 作为重试信号处理。
	IsUsernameExists(ctx context.Context, username string) (bool, error)

	// Save 保存用户信息。
	// 如果用户已存在 (基于 ID)，则更新；否则创建新用户。
	// 违反唯一约束时返回 repository.ErrDuplicateEntry。
	Save(ctx context.Context, user *domain.User) error
}

// SocialAccountRepository 定义了外部身份账号关联的存储操作。
type SocialAccountRepository interface {
	// FindByProviderUID 根据 (provider, uid) 查找关联记录。
	// 如果不存在，应返回 repository.ErrSocialAccountNotFound。
	FindByProviderUID(ctx context.Context, provider, uid string) (*domain.SocialAccount, error)

	// Save 保存关联记录。违反 (provider, uid) 唯一约束时返回 ErrDuplicateEntry。
	Save(ctx context.Context, account *domain.SocialAccount) error
}
