package bootstrap

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	httphandler "polls-analytics/internal/handler/http"
	wshandler "polls-analytics/internal/handler/websocket"
	gormrepo "polls-analytics/internal/infra/persistence/gorm"
	"polls-analytics/internal/infra/setup"
	redisstate "polls-analytics/internal/infra/state/redis"
	"polls-analytics/internal/hub"
	"polls-analytics/internal/middleware"
	"polls-analytics/internal/service"
	"polls-analytics/internal/tasks"
	"polls-analytics/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

// dashboardTemplate 是统计面板页面。前端只是一个查询入口，
// 所有数据都通过统计 API 和 WebSocket 获取。
const dashboardTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{ .title }}</title></head>
<body>
<h1>{{ .title }}</h1>
<p>Use <code>POST /statistics/question-filter/</code> to filter questions by publication date
and <code>GET /statistics/question-stats/:id/</code> for per-question results.</p>
<p>Live results are streamed on <code>/ws/results/:questionId</code>.</p>
</body>
</html>`

// App 聚合了应用的全部运行组件。
type App struct {
	cfg    *Config
	logger *logrus.Logger

	db          *gorm.DB
	redisClient *redis.Client

	hub          *hub.Hub
	workerServer *worker.WorkerServer
	scheduler    *asynq.Scheduler
	httpServer   *http.Server

	statsService *service.StatsService
	pollService  *service.PollService
}

// NewApp 组装应用：初始化基础设施、仓库、服务、Hub、Worker 和路由。
func NewApp(cfg *Config, logger *logrus.Logger) (*App, error) {
	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("redis init failed: %w", err)
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	// 仓库层
	userRepo := gormrepo.NewGormUserRepository(db)
	socialRepo := gormrepo.NewGormSocialAccountRepository(db)
	questionRepo := gormrepo.NewGormQuestionRepository(db)
	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)

	// 服务层
	authService, err := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("auth service init failed: %w", err)
	}
	socialService := service.NewSocialService(userRepo, socialRepo, nil)
	pollService := service.NewPollService(questionRepo, stateRepo)
	statsService := service.NewStatsService(questionRepo, location)

	// WebSocket Hub
	eventHub := hub.NewHub(redisClient, cfg.KeyPrefix)

	// 后台任务
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	workerServer := worker.NewWorkerServer(redisOpt, questionRepo, stateRepo, logger)
	scheduler, err := newScheduler(redisOpt, logger)
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		redisClient:  redisClient,
		hub:          eventHub,
		workerServer: workerServer,
		scheduler:    scheduler,
		statsService: statsService,
		pollService:  pollService,
	}

	router := app.buildRouter(authService, socialService, stateRepo)
	app.httpServer = &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}
	return app, nil
}

// newScheduler 创建周期性任务调度器并注册人气重建任务。
func newScheduler(redisOpt asynq.RedisClientOpt, logger *logrus.Logger) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger: logger,
	})

	payload, err := tasks.NewPopularityRebuildTask()
	if err != nil {
		return nil, fmt.Errorf("failed to build popularity rebuild payload: %w", err)
	}
	// 投票路径上的增量更新会产生漂移 (删除、手工修正)，周期性全量重建兜底
	if _, err := scheduler.Register("@every 5m", asynq.NewTask(tasks.TypePopularityRebuild, payload)); err != nil {
		return nil, fmt.Errorf("failed to register popularity rebuild schedule: %w", err)
	}
	return scheduler, nil
}

// buildRouter 配置 Gin 路由与中间件。
func (a *App) buildRouter(authService *service.AuthService, socialService *service.SocialService, stateRepo *redisstate.RedisStateRepository) *gin.Engine {
	router := gin.Default()
	router.Use(corsMiddleware())
	router.Use(middleware.RateLimit(a.redisClient, a.cfg.RateLimitMax, a.cfg.RateLimitWindow))
	router.SetHTMLTemplate(template.Must(template.New("dashboard.html").Parse(dashboardTemplate)))

	authHandler := httphandler.NewAuthHandler(authService)
	socialHandler := httphandler.NewSocialHandler(socialService, authService, stateRepo, a.oauthProviders())
	pollHandler := httphandler.NewPollHandler(a.pollService)
	statsHandler := httphandler.NewStatsHandler(a.statsService)
	wsHandler := wshandler.NewHandler(a.hub, a.pollService)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := router.Group("/api")
	{
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)

		api.GET("/polls", pollHandler.List)
		api.POST("/polls", middleware.Auth(a.cfg.JWTSecret), pollHandler.Create)
		api.POST("/polls/:id/vote", pollHandler.Vote)
	}

	oauth := router.Group("/auth")
	{
		oauth.GET("/:provider/login", socialHandler.Login)
		oauth.GET("/:provider/callback", socialHandler.Callback)
	}

	stats := router.Group("/statistics")
	{
		stats.GET("/", statsHandler.Dashboard)
		stats.POST("/question-filter/", statsHandler.FilterByDate)
		stats.GET("/question-stats/:id/", statsHandler.QuestionStats)
	}

	router.GET("/ws/results/:questionId", wsHandler.LiveResults)

	return router
}

// oauthProviders 根据配置构造 OAuth2 提供商注册表。
// 未配置凭据的提供商不注册，对应路由返回 404。
func (a *App) oauthProviders() map[string]httphandler.OAuthProvider {
	providers := make(map[string]httphandler.OAuthProvider)
	if a.cfg.GoogleClientID != "" && a.cfg.GoogleClientSecret != "" {
		providers["google"] = httphandler.OAuthProvider{
			Config: &oauth2.Config{
				ClientID:     a.cfg.GoogleClientID,
				ClientSecret: a.cfg.GoogleClientSecret,
				RedirectURL:  a.cfg.GoogleRedirectURL,
				Scopes:       []string{"openid", "email", "profile"},
				Endpoint:     google.Endpoint,
			},
			UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
			UIDField:    "id",
		}
	}
	return providers
}

// Run 启动所有组件并阻塞到 HTTP 服务器退出。
// Hub、Worker 和调度器在各自的 goroutine 中运行。
func (a *App) Run() error {
	go a.hub.Run()
	go a.workerServer.Start()
	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start task scheduler: %w", err)
	}

	a.logger.Infof("Server starting on :%s", a.cfg.ServerPort)
	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown 按依赖顺序优雅关闭：先停止接收新请求，再停后台组件，
// 最后关闭基础设施连接。
func (a *App) Shutdown(ctx context.Context) {
	a.logger.Info("Shutting down server...")

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Warn("HTTP server forced to shut down")
	}

	a.scheduler.Shutdown()
	a.workerServer.Shutdown()
	a.hub.StopAllSubscriptions()

	if err := a.redisClient.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close Redis client")
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close database connection")
		}
	}

	a.logger.Info("Server exited")
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
