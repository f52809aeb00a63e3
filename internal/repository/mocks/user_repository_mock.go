// Package mocks 提供仓库接口的 testify mock 实现，供服务层测试使用。
package mocks

import (
	"context"

	"polls-analytics/internal/domain"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository 是 repository.UserRepository 的 mock 实现
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) IsUsernameExists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) Save(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockSocialAccountRepository 是 repository.SocialAccountRepository 的 mock 实现
type MockSocialAccountRepository struct {
	mock.Mock
}

func (m *MockSocialAccountRepository) FindByProviderUID(ctx context.Context, provider, uid string) (*domain.SocialAccount, error) {
	args := m.Called(ctx, provider, uid)
	account, _ := args.Get(0).(*domain.SocialAccount)
	return account, args.Error(1)
}

func (m *MockSocialAccountRepository) Save(ctx context.Context, account *domain.SocialAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}
