package service

import (
	"context"
	"testing"

	"polls-analytics/internal/domain"
	"polls-analytics/internal/repository"
	"polls-analytics/internal/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSocialService(t *testing.T) (*SocialService, *mocks.MockUserRepository, *mocks.MockSocialAccountRepository) {
	t.Helper()
	userRepo := new(mocks.MockUserRepository)
	socialRepo := new(mocks.MockSocialAccountRepository)
	return NewSocialService(userRepo, socialRepo, nil), userRepo, socialRepo
}

func TestResolveLoginNewAccount(t *testing.T) {
	svc, _, socialRepo := newSocialService(t)

	socialRepo.On("FindByProviderUID", mock.Anything, "google", "uid-1").
		Return(nil, repository.ErrSocialAccountNotFound)

	login, err := svc.ResolveLogin(context.Background(), "google", "uid-1", map[string]string{"email": "a@b.com"})
	require.NoError(t, err)
	assert.False(t, login.IsExisting())
}

func TestResolveLoginExistingAccountLoadsUser(t *testing.T) {
	svc, userRepo, socialRepo := newSocialService(t)

	socialRepo.On("FindByProviderUID", mock.Anything, "google", "uid-1").
		Return(&domain.SocialAccount{UserID: 42, Provider: "google", UID: "uid-1"}, nil)
	userRepo.On("FindByID", mock.Anything, uint(42)).
		Return(&domain.User{ID: 42, Username: "jane"}, nil)

	login, err := svc.ResolveLogin(context.Background(), "google", "uid-1", nil)
	require.NoError(t, err)
	require.True(t, login.IsExisting())
	assert.Equal(t, "jane", login.User.Username)
}

func TestIsAutoSignupAllowedOnlyForRegisteredProviders(t *testing.T) {
	svc, _, _ := newSocialService(t)

	assert.True(t, svc.IsAutoSignupAllowed(&SocialLogin{Provider: "google"}))
	assert.False(t, svc.IsAutoSignupAllowed(&SocialLogin{Provider: "github"}))
}

func TestPreLoginConnectsAccountByEmail(t *testing.T) {
	svc, userRepo, socialRepo := newSocialService(t)

	existing := &domain.User{ID: 7, Username: "jane", Email: "jane@example.com"}
	userRepo.On("FindByEmail", mock.Anything, "jane@example.com").Return(existing, nil)
	socialRepo.On("Save", mock.Anything, mock.MatchedBy(func(a *domain.SocialAccount) bool {
		return a.UserID == 7 && a.Provider == "google" && a.UID == "uid-7"
	})).Return(nil)

	login := &SocialLogin{
		Provider:  "google",
		UID:       "uid-7",
		ExtraData: map[string]string{"email": "jane@example.com"},
	}
	notice, err := svc.PreLogin(context.Background(), login)
	require.NoError(t, err)

	assert.True(t, login.IsExisting())
	assert.Equal(t, existing, login.User)
	assert.Equal(t, "Your Google account has been connected to your existing account.", notice)
	socialRepo.AssertExpectations(t)
}

func TestPreLoginNoopWhenAlreadyLinked(t *testing.T) {
	svc, userRepo, socialRepo := newSocialService(t)

	login := &SocialLogin{
		Provider:  "google",
		UID:       "uid-7",
		ExtraData: map[string]string{"email": "jane@example.com"},
		User:      &domain.User{ID: 7},
	}
	notice, err := svc.PreLogin(context.Background(), login)
	require.NoError(t, err)
	assert.Empty(t, notice)

	// 已关联时不应有任何存储访问
	userRepo.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	socialRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPreLoginNoopWhenEmailUnknown(t *testing.T) {
	svc, userRepo, socialRepo := newSocialService(t)

	userRepo.On("FindByEmail", mock.Anything, "new@example.com").
		Return(nil, repository.ErrUserNotFound)

	login := &SocialLogin{
		Provider:  "google",
		UID:       "uid-9",
		ExtraData: map[string]string{"email": "new@example.com"},
	}
	notice, err := svc.PreLogin(context.Background(), login)
	require.NoError(t, err)
	assert.Empty(t, notice)
	assert.False(t, login.IsExisting())
	socialRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPopulateUserDerivesUsernameFromEmail(t *testing.T) {
	svc, userRepo, _ := newSocialService(t)

	userRepo.On("IsUsernameExists", mock.Anything, "janedoetag").Return(false, nil)

	login := &SocialLogin{Provider: "google", UID: "u"}
	user, err := svc.PopulateUser(context.Background(), login, map[string]string{"email": "jane.doe+tag@example.com"})
	require.NoError(t, err)

	// @ 前的部分去掉非字母数字下划线字符
	assert.Equal(t, "janedoetag", user.Username)
	assert.Equal(t, "jane.doe+tag@example.com", user.Email)
}

func TestPopulateUserAppendsSuffixOnCollision(t *testing.T) {
	svc, userRepo, _ := newSocialService(t)

	userRepo.On("IsUsernameExists", mock.Anything, "janedoe").Return(true, nil)
	userRepo.On("IsUsernameExists", mock.Anything, "janedoe1").Return(true, nil)
	userRepo.On("IsUsernameExists", mock.Anything, "janedoe2").Return(false, nil)

	login := &SocialLogin{Provider: "google", UID: "u"}
	user, err := svc.PopulateUser(context.Background(), login, map[string]string{"email": "janedoe@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "janedoe2", user.Username)
}

func TestPopulateUserPrefersExplicitUsername(t *testing.T) {
	svc, userRepo, _ := newSocialService(t)

	login := &SocialLogin{Provider: "google", UID: "u"}
	user, err := svc.PopulateUser(context.Background(), login, map[string]string{
		"username": "customname",
		"email":    "jane@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "customname", user.Username)
	userRepo.AssertNotCalled(t, "IsUsernameExists", mock.Anything, mock.Anything)
}

func TestSaveUserCreatesUserAndLink(t *testing.T) {
	svc, userRepo, socialRepo := newSocialService(t)

	userRepo.On("IsUsernameExists", mock.Anything, "jane").Return(false, nil)
	userRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) {
			u := args.Get(1).(*domain.User)
			if u.ID == 0 {
				u.ID = 11
			}
		}).Return(nil)
	socialRepo.On("Save", mock.Anything, mock.MatchedBy(func(a *domain.SocialAccount) bool {
		return a.UserID == 11 && a.Provider == "google" && a.UID == "uid-11"
	})).Return(nil)

	login := &SocialLogin{
		Provider: "google",
		UID:      "uid-11",
		ExtraData: map[string]string{
			"email":       "jane@example.com",
			"given_name":  "Jane",
			"family_name": "Doe",
		},
	}
	user, notice, err := svc.SaveUser(context.Background(), login, nil)
	require.NoError(t, err)

	assert.Equal(t, "jane", user.Username)
	assert.Equal(t, "Jane", user.FirstName)
	assert.Equal(t, "Doe", user.LastName)
	assert.Equal(t, "Welcome, jane! You have successfully signed in with Google.", notice)
	assert.True(t, login.IsExisting())
	socialRepo.AssertExpectations(t)
}

func TestSaveUserRetriesOnDuplicateUsername(t *testing.T) {
	svc, userRepo, socialRepo := newSocialService(t)

	// 进程内检查认为 jane 可用，但并发注册抢先占用了它
	userRepo.On("IsUsernameExists", mock.Anything, "jane").Return(false, nil)
	userRepo.On("IsUsernameExists", mock.Anything, "jane1").Return(false, nil)

	userRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.User")).
		Return(repository.ErrDuplicateEntry).Once()
	userRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.User).ID = 12
		}).Return(nil)
	socialRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.SocialAccount")).Return(nil)

	login := &SocialLogin{
		Provider:  "google",
		UID:       "uid-12",
		ExtraData: map[string]string{"email": "jane@example.com"},
	}
	user, _, err := svc.SaveUser(context.Background(), login, nil)
	require.NoError(t, err)
	assert.Equal(t, "jane1", user.Username)
}

func TestSaveUserGivesUpAfterMaxAttempts(t *testing.T) {
	svc, userRepo, socialRepo := newSocialService(t)

	userRepo.On("IsUsernameExists", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)
	userRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.User")).
		Return(repository.ErrDuplicateEntry)

	login := &SocialLogin{
		Provider:  "google",
		UID:       "uid-13",
		ExtraData: map[string]string{"email": "jane@example.com"},
	}
	_, _, err := svc.SaveUser(context.Background(), login, nil)
	assert.ErrorIs(t, err, ErrRegistrationFailed)
	socialRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSaveUserDoesNotOverwriteExistingNames(t *testing.T) {
	userRepo := new(mocks.MockUserRepository)
	socialRepo := new(mocks.MockSocialAccountRepository)
	svc := NewSocialService(userRepo, socialRepo, nil)

	// 表单指定了用户名，提供商返回的 given_name 不应覆盖已有 FirstName
	userRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) {
			u := args.Get(1).(*domain.User)
			u.ID = 14
			u.FirstName = "Existing" // 模拟默认创建流程填充了名字
		}).Return(nil).Once()
	userRepo.On("Save", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.FirstName == "Existing" && u.LastName == "Doe"
	})).Return(nil).Once()
	socialRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.SocialAccount")).Return(nil)

	login := &SocialLogin{
		Provider: "google",
		UID:      "uid-14",
		ExtraData: map[string]string{
			"email":       "jane@example.com",
			"given_name":  "Jane",
			"family_name": "Doe",
		},
	}
	user, _, err := svc.SaveUser(context.Background(), login, &SignupForm{Username: "picked"})
	require.NoError(t, err)
	assert.Equal(t, "Existing", user.FirstName)
	assert.Equal(t, "Doe", user.LastName)
	userRepo.AssertExpectations(t)
}
