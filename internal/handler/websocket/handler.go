// Package websocket 处理统计面板实时结果的 WebSocket 升级。
package websocket

import (
	"net/http"
	"strconv"

	"polls-analytics/internal/hub"
	"polls-analytics/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// upgrader 配置 WebSocket 升级参数
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: 生产环境应校验 Origin，当前允许所有来源以方便开发联调
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler 负责把观看者连接升级为 WebSocket 并注册到 Hub。
type Handler struct {
	hub         *hub.Hub
	pollService *service.PollService
}

// NewHandler 创建 WebSocket Handler 实例。
func NewHandler(h *hub.Hub, pollService *service.PollService) *Handler {
	if h == nil {
		panic("Hub cannot be nil for websocket Handler")
	}
	if pollService == nil {
		panic("PollService cannot be nil for websocket Handler")
	}
	return &Handler{hub: h, pollService: pollService}
}

// LiveResults 处理 GET /ws/results/:questionId 的升级请求。
// 升级之前先校验问题存在，避免为不存在的问题建立订阅。
func (h *Handler) LiveResults(c *gin.Context) {
	questionID64, err := strconv.ParseUint(c.Param("questionId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid question ID"})
		return
	}
	questionID := uint(questionID64)
	logCtx := logrus.WithField("question_id", questionID)

	if _, err := h.pollService.FindQuestionByID(c.Request.Context(), questionID); err != nil {
		if err == service.ErrQuestionNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		logCtx.WithError(err).Error("WebSocket: failed to validate question before upgrade")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时 gorilla 已经写入了响应
		logCtx.WithError(err).Warn("WebSocket: upgrade failed")
		return
	}

	client := hub.NewClient(h.hub, conn, questionID)
	registered := h.hub.QueueMessage(hub.HubMessage{
		Type:       "register",
		QuestionID: questionID,
		Client:     client,
	})
	if !registered {
		logCtx.Error("WebSocket: hub message channel full, rejecting viewer")
		client.CloseConn()
		return
	}

	logCtx.Info("WebSocket viewer connected")
	client.Run()
}
