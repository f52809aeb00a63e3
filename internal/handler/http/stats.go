package http

import (
	"net/http"

	"polls-analytics/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StatsHandler 处理统计面板与统计查询。
type StatsHandler struct {
	statsService *service.StatsService
}

// NewStatsHandler 创建 StatsHandler 实例。
func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	if statsService == nil {
		panic("StatsService cannot be nil for StatsHandler")
	}
	return &StatsHandler{statsService: statsService}
}

// Dashboard 返回统计面板页面。
func (h *StatsHandler) Dashboard(c *gin.Context) {
	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"title": "Polls Statistics",
	})
}

// DateFilterRequest 定义日期范围过滤请求的结构体。
// 字段名沿用既有的对外 JSON 契约。
type DateFilterRequest struct {
	PublicationDates struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"publication-dates"`
}

// FilterByDate 返回发布时间落在请求日期范围内的问题列表。
// 两个日期必须都提供且为 YYYY-MM-DD 格式，错误文本属于对外契约。
func (h *StatsHandler) FilterByDate(c *gin.Context) {
	var req DateFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.FilterByDate: Invalid input format")
		HandleServiceError(c, service.ErrDateRangeRequired)
		return
	}

	questions, err := h.statsService.FilterByDate(c.Request.Context(), req.PublicationDates.From, req.PublicationDates.To)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, gin.H{"questions": questions})
}

// QuestionStats 返回单个问题的统计记录 (含柱状图 SVG)。
func (h *StatsHandler) QuestionStats(c *gin.Context) {
	questionID, err := parseIDParam(c, "id")
	if err != nil {
		// 无法解析的 ID 等价于不存在的问题
		HandleServiceError(c, service.ErrQuestionNotFound)
		return
	}

	stats, err := h.statsService.QuestionStats(c.Request.Context(), questionID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, stats)
}
