package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"polls-analytics/internal/domain"
	"polls-analytics/internal/repository"

	"github.com/sirupsen/logrus"
)

// maxSaveAttempts 限制用户名冲突时的重建次数。
// 唯一约束冲突是重试信号而不是致命错误，但重试必须有界。
const maxSaveAttempts = 5

// ProviderProfile 描述一个身份提供商返回的 profile 字段名。
// 新增提供商时在注册表中加一条记录即可，不需要改动适配器逻辑。
type ProviderProfile struct {
	EmailField      string
	GivenNameField  string
	FamilyNameField string
}

// DefaultProviders 返回默认的提供商注册表。
// 默认只允许 Google；未注册的提供商一律拒绝自动注册 (fails closed)。
func DefaultProviders() map[string]ProviderProfile {
	return map[string]ProviderProfile{
		"google": {
			EmailField:      "email",
			GivenNameField:  "given_name",
			FamilyNameField: "family_name",
		},
	}
}

// SocialLogin 表示一次进行中的社交登录尝试。
type SocialLogin struct {
	Provider  string            // 提供商名称，例如 "google"
	UID       string            // 提供商分配的账号标识符
	ExtraData map[string]string // 提供商返回的 profile 字段
	User      *domain.User      // 已关联的本地用户；尚未关联时为 nil
}

// IsExisting 报告该社交账号是否已经关联到本地用户。
func (l *SocialLogin) IsExisting() bool {
	return l.User != nil
}

// SignupForm 表示注册表单对默认字段的覆盖 (可选)。
type SignupForm struct {
	Username string
	Email    string
}

// SocialService 负责把外部身份提供商的登录尝试与本地用户存储对账。
type SocialService struct {
	userRepo   repository.UserRepository
	socialRepo repository.SocialAccountRepository
	providers  map[string]ProviderProfile
}

// NewSocialService 创建 SocialService 实例。
// providers 为 nil 时使用默认注册表 (只含 Google)。
func NewSocialService(userRepo repository.UserRepository, socialRepo repository.SocialAccountRepository, providers map[string]ProviderProfile) *SocialService {
	if userRepo == nil {
		panic("UserRepository cannot be nil for SocialService")
	}
	if socialRepo == nil {
		panic("SocialAccountRepository cannot be nil for SocialService")
	}
	if providers == nil {
		providers = DefaultProviders()
	}
	return &SocialService{
		userRepo:   userRepo,
		socialRepo: socialRepo,
		providers:  providers,
	}
}

// ResolveLogin 根据提供商回调的数据构造登录尝试对象。
// 如果 (provider, uid) 已关联本地用户，则加载该用户，使 IsExisting 为真。
func (s *SocialService) ResolveLogin(ctx context.Context, provider, uid string, extraData map[string]string) (*SocialLogin, error) {
	login := &SocialLogin{Provider: provider, UID: uid, ExtraData: extraData}

	account, err := s.socialRepo.FindByProviderUID(ctx, provider, uid)
	if err != nil {
		if errors.Is(err, repository.ErrSocialAccountNotFound) {
			return login, nil // 首次登录
		}
		logrus.WithError(err).Error("ResolveLogin: database error looking up social account")
		return nil, ErrInternalServer
	}

	user, err := s.userRepo.FindByID(ctx, account.UserID)
	if err != nil {
		// 关联存在但用户缺失：数据不一致，按内部错误处理
		logrus.WithError(err).WithField("user_id", account.UserID).Error("ResolveLogin: linked user missing")
		return nil, ErrInternalServer
	}
	login.User = user
	return login, nil
}

// IsAutoSignupAllowed 报告该提供商是否允许自动创建账号。
// 只有注册表中的提供商允许，其余一律拒绝。
func (s *SocialService) IsAutoSignupAllowed(login *SocialLogin) bool {
	_, ok := s.providers[login.Provider]
	return ok
}

// PreLogin 在社交登录完成之前调用。
// 如果该社交账号尚未关联本地用户，且提供商返回的邮箱与某个已有用户
// 匹配，则把社交账号关联到该用户，并返回一条提示性通知。
// 返回的通知只是建议性消息，永远不是错误信号。
func (s *SocialService) PreLogin(ctx context.Context, login *SocialLogin) (string, error) {
	// 已关联的账号无需处理
	if login.IsExisting() {
		return "", nil
	}

	profile, ok := s.providers[login.Provider]
	if !ok {
		return "", nil
	}
	email := login.ExtraData[profile.EmailField]
	if email == "" {
		return "", nil
	}

	logCtx := logrus.WithFields(logrus.Fields{"provider": login.Provider, "email": email})

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// 新用户，后续由自动注册流程创建
			return "", nil
		}
		logCtx.WithError(err).Error("PreLogin: database error looking up user by email")
		return "", ErrInternalServer
	}

	// 邮箱匹配到已有用户：建立关联
	account := &domain.SocialAccount{
		UserID:   user.ID,
		Provider: login.Provider,
		UID:      login.UID,
	}
	if err := s.socialRepo.Save(ctx, account); err != nil {
		logCtx.WithError(err).Error("PreLogin: failed to persist social account link")
		return "", ErrInternalServer
	}
	login.User = user

	logCtx.WithField("user_id", user.ID).Info("Social account connected to existing user")
	notice := fmt.Sprintf("Your %s account has been connected to your existing account.", titleProvider(login.Provider))
	return notice, nil
}

// PopulateUser 根据提供商返回的数据构造候选用户。
// 默认用户名为空时，从邮箱 @ 前的部分推导：去掉所有非字母数字下划线
// 的字符，冲突时追加从 1 开始递增的整数后缀。
func (s *SocialService) PopulateUser(ctx context.Context, login *SocialLogin, data map[string]string) (*domain.User, error) {
	profile := s.providers[login.Provider]

	user := &domain.User{
		Username: data["username"],
		Email:    data[profile.EmailField],
	}
	if user.Email == "" {
		user.Email = data["email"]
	}

	if user.Username == "" {
		base := usernameBase(user.Email)
		username, _, err := s.nextFreeUsername(ctx, base, 0)
		if err != nil {
			return nil, err
		}
		user.Username = username
	}
	return user, nil
}

// SaveUser 完成社交登录的用户创建。
// 先走默认的用户创建流程，然后把提供商返回的名字/姓氏复制到用户上，
// 仅当对应字段当前为空时才复制，绝不覆盖已有值。成功时返回包含用户名的通知。
func (s *SocialService) SaveUser(ctx context.Context, login *SocialLogin, form *SignupForm) (*domain.User, string, error) {
	logCtx := logrus.WithFields(logrus.Fields{"provider": login.Provider, "uid": login.UID})

	data := login.ExtraData
	if form != nil {
		// 表单覆盖优先于提供商数据
		data = cloneData(data)
		if form.Username != "" {
			data["username"] = form.Username
		}
		if form.Email != "" {
			data["email"] = form.Email
		}
	}

	user, err := s.PopulateUser(ctx, login, data)
	if err != nil {
		logCtx.WithError(err).Error("SaveUser: failed to populate user")
		return nil, "", ErrInternalServer
	}

	// 进程内的用户名检查只是降低冲突概率；并发注册下真正的裁决者是
	// 存储层的唯一约束。命中约束时取下一个后缀重试，而不是报错。
	base := usernameBase(user.Email)
	counter := 0
	for attempt := 0; ; attempt++ {
		err = s.userRepo.Save(ctx, user)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Error("SaveUser: database error creating user")
			return nil, "", ErrInternalServer
		}
		if attempt+1 >= maxSaveAttempts {
			logCtx.Errorf("SaveUser: could not find a free username after %d attempts", maxSaveAttempts)
			return nil, "", ErrRegistrationFailed
		}
		var username string
		username, counter, err = s.nextFreeUsername(ctx, base, counter+1)
		if err != nil {
			return nil, "", ErrInternalServer
		}
		logCtx.WithField("username", username).Warn("SaveUser: username taken on insert, retrying with next suffix")
		user.Username = username
	}
	logCtx = logCtx.WithField("user_id", user.ID)

	// 提供商返回的名字只填充空字段
	if profile, ok := s.providers[login.Provider]; ok {
		changed := false
		if given := login.ExtraData[profile.GivenNameField]; given != "" && user.FirstName == "" {
			user.FirstName = given
			changed = true
		}
		if family := login.ExtraData[profile.FamilyNameField]; family != "" && user.LastName == "" {
			user.LastName = family
			changed = true
		}
		if changed {
			if err := s.userRepo.Save(ctx, user); err != nil {
				logCtx.WithError(err).Error("SaveUser: failed to persist provider name fields")
				return nil, "", ErrInternalServer
			}
		}
	}

	// 建立社交账号关联
	account := &domain.SocialAccount{
		UserID:   user.ID,
		Provider: login.Provider,
		UID:      login.UID,
	}
	if err := s.socialRepo.Save(ctx, account); err != nil {
		logCtx.WithError(err).Error("SaveUser: failed to persist social account link")
		return nil, "", ErrInternalServer
	}
	login.User = user

	logCtx.WithField("username", user.Username).Info("Social signup completed")
	notice := fmt.Sprintf("Welcome, %s! You have successfully signed in with %s.", user.Username, titleProvider(login.Provider))
	return user, notice, nil
}

// --- 私有辅助函数 ---

// nextFreeUsername 从指定的后缀计数开始，返回第一个未被占用的用户名。
// counter == 0 表示不带后缀的 base 本身。
func (s *SocialService) nextFreeUsername(ctx context.Context, base string, counter int) (string, int, error) {
	for {
		username := base
		if counter > 0 {
			username = base + strconv.Itoa(counter)
		}
		exists, err := s.userRepo.IsUsernameExists(ctx, username)
		if err != nil {
			logrus.WithError(err).WithField("username", username).Error("Database error checking username uniqueness")
			return "", 0, fmt.Errorf("database error checking username: %w", err)
		}
		if !exists {
			return username, counter, nil
		}
		counter++
	}
}

// usernameBase 从邮箱推导用户名基底：取第一个 @ 之前的部分，
// 去掉所有既不是字母数字也不是下划线的字符。邮箱为空时基底为空。
func usernameBase(email string) string {
	local := email
	if i := strings.IndexByte(email, '@'); i >= 0 {
		local = email[:i]
	}
	var b strings.Builder
	for _, c := range local {
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// titleProvider 将提供商名称首字母大写，用于面向用户的通知文本
func titleProvider(provider string) string {
	if provider == "" {
		return provider
	}
	return strings.ToUpper(provider[:1]) + provider[1:]
}

func cloneData(data map[string]string) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
