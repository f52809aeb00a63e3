package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"polls-analytics/internal/repository"
	"polls-analytics/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// OAuthProvider 描述一个 OAuth2 提供商的端点配置。
type OAuthProvider struct {
	Config      *oauth2.Config
	UserInfoURL string // 获取用户 profile 的端点
	UIDField    string // profile 中作为账号标识符的字段名
}

// SocialHandler 处理 OAuth2 登录跳转与回调。
type SocialHandler struct {
	socialService *service.SocialService
	authService   *service.AuthService
	stateRepo     repository.StateRepository
	providers     map[string]OAuthProvider
}

// NewSocialHandler 创建 SocialHandler 实例。
func NewSocialHandler(socialService *service.SocialService, authService *service.AuthService, stateRepo repository.StateRepository, providers map[string]OAuthProvider) *SocialHandler {
	if socialService == nil {
		panic("SocialService cannot be nil for SocialHandler")
	}
	if authService == nil {
		panic("AuthService cannot be nil for SocialHandler")
	}
	if stateRepo == nil {
		panic("StateRepository cannot be nil for SocialHandler")
	}
	return &SocialHandler{
		socialService: socialService,
		authService:   authService,
		stateRepo:     stateRepo,
		providers:     providers,
	}
}

// Login 把用户重定向到提供商的授权页面。
// state 是一次性的随机值，存入 Redis 带过期时间，回调时校验并消费。
func (h *SocialHandler) Login(c *gin.Context) {
	providerName := c.Param("provider")
	provider, ok := h.providers[providerName]
	if !ok {
		ErrorResponse(c, http.StatusNotFound, "Unknown provider")
		return
	}

	state := uuid.NewString()
	if err := h.stateRepo.StoreOAuthState(c.Request.Context(), state); err != nil {
		logrus.WithError(err).Error("SocialHandler.Login: failed to store OAuth state")
		ErrorResponse(c, http.StatusInternalServerError, "Could not start login flow")
		return
	}

	url := provider.Config.AuthCodeURL(state)
	c.Redirect(http.StatusTemporaryRedirect, url)
}

// Callback 处理提供商的授权回调。
// 流程：校验 state、换取 token、拉取 profile，然后交给 SocialService
// 完成本地账号的查找、关联或自动注册，最后签发本系统的 JWT。
func (h *SocialHandler) Callback(c *gin.Context) {
	providerName := c.Param("provider")
	provider, ok := h.providers[providerName]
	if !ok {
		ErrorResponse(c, http.StatusNotFound, "Unknown provider")
		return
	}
	logCtx := logrus.WithField("provider", providerName)

	state := c.Query("state")
	valid, err := h.stateRepo.ConsumeOAuthState(c.Request.Context(), state)
	if err != nil {
		logCtx.WithError(err).Error("SocialHandler.Callback: failed to verify OAuth state")
		ErrorResponse(c, http.StatusInternalServerError, "Could not complete login flow")
		return
	}
	if !valid {
		logCtx.Warn("SocialHandler.Callback: invalid or expired OAuth state")
		ErrorResponse(c, http.StatusBadRequest, "Invalid OAuth state")
		return
	}

	code := c.Query("code")
	if code == "" {
		ErrorResponse(c, http.StatusBadRequest, "Missing authorization code")
		return
	}
	token, err := provider.Config.Exchange(c.Request.Context(), code)
	if err != nil {
		logCtx.WithError(err).Warn("SocialHandler.Callback: code exchange failed")
		ErrorResponse(c, http.StatusBadGateway, "Authorization code exchange failed")
		return
	}

	uid, extraData, err := h.fetchProfile(c, provider, token)
	if err != nil {
		logCtx.WithError(err).Error("SocialHandler.Callback: failed to fetch user profile")
		ErrorResponse(c, http.StatusBadGateway, "Could not fetch user profile")
		return
	}
	logCtx = logCtx.WithField("uid", uid)

	login, err := h.socialService.ResolveLogin(c.Request.Context(), providerName, uid, extraData)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	var notices []string
	notice, err := h.socialService.PreLogin(c.Request.Context(), login)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	if notice != "" {
		notices = append(notices, notice)
	}

	if !login.IsExisting() {
		if !h.socialService.IsAutoSignupAllowed(login) {
			logCtx.Warn("SocialHandler.Callback: auto signup not allowed for provider")
			HandleServiceError(c, service.ErrAutoSignupNotAllowed)
			return
		}
		_, notice, err := h.socialService.SaveUser(c.Request.Context(), login, nil)
		if err != nil {
			HandleServiceError(c, err)
			return
		}
		if notice != "" {
			notices = append(notices, notice)
		}
	}

	jwtToken, err := h.authService.IssueToken(login.User.ID)
	if err != nil {
		logCtx.WithError(err).Error("SocialHandler.Callback: failed to issue token")
		ErrorResponse(c, http.StatusInternalServerError, "Could not issue session token")
		return
	}

	logCtx.WithField("user_id", login.User.ID).Info("Social login completed")
	c.JSON(http.StatusOK, gin.H{
		"message":  "Login successful",
		"token":    jwtToken,
		"username": login.User.Username,
		"notices":  notices,
	})
}

// fetchProfile 用换取到的 token 调用提供商的 userinfo 端点。
// 所有字段值统一转成字符串，供适配器按字段名取用。
func (h *SocialHandler) fetchProfile(c *gin.Context, provider OAuthProvider, token *oauth2.Token) (string, map[string]string, error) {
	client := provider.Config.Client(c.Request.Context(), token)
	resp, err := client.Get(provider.UserInfoURL)
	if err != nil {
		return "", nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("userinfo request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", nil, fmt.Errorf("reading userinfo response: %w", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", nil, fmt.Errorf("decoding userinfo response: %w", err)
	}

	extraData := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			extraData[k] = val
		case float64:
			extraData[k] = fmt.Sprintf("%v", val)
		case bool:
			extraData[k] = fmt.Sprintf("%t", val)
		}
	}

	uid := extraData[provider.UIDField]
	if uid == "" {
		return "", nil, fmt.Errorf("userinfo response missing %q field", provider.UIDField)
	}
	return uid, extraData, nil
}
