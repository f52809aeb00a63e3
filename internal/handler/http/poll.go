package http

import (
	"net/http"
	"strconv"

	"polls-analytics/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PollHandler 处理问题的创建、投票与列表。
type PollHandler struct {
	pollService *service.PollService
}

// NewPollHandler 创建 PollHandler 实例。
func NewPollHandler(pollService *service.PollService) *PollHandler {
	if pollService == nil {
		panic("PollService cannot be nil for PollHandler")
	}
	return &PollHandler{pollService: pollService}
}

// CreateQuestionRequest 定义创建问题请求的结构体
type CreateQuestionRequest struct {
	QuestionText string   `json:"question_text" binding:"required"`
	Choices      []string `json:"choices" binding:"required,min=2"`
}

// List 返回问题列表。
// sort=popularity 时按人气排序，默认按发布时间降序。
func (h *PollHandler) List(c *gin.Context) {
	sortBy := c.DefaultQuery("sort", "date")

	questions, err := h.pollService.ListQuestions(c.Request.Context(), sortBy)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"questions": questions})
}

// Create 处理创建问题请求 (需要认证)。
func (h *PollHandler) Create(c *gin.Context) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	userID, ok := userIDVal.(uint)
	if !ok {
		logrus.Errorf("Handler.Create: invalid user_id type in context: %T", userIDVal)
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	var req CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.Create: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: question_text and at least 2 choices required")
		return
	}

	question, err := h.pollService.CreateQuestion(c.Request.Context(), userID, req.QuestionText, req.Choices)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":     "Question created successfully",
		"question_id": question.ID,
	})
}

// VoteRequest 定义投票请求的结构体
type VoteRequest struct {
	ChoiceID uint `json:"choice_id" binding:"required"`
}

// Vote 处理对某个问题选项的投票。
func (h *PollHandler) Vote(c *gin.Context) {
	questionID, err := parseIDParam(c, "id")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid question ID")
		return
	}

	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.Vote: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: choice_id required")
		return
	}

	if err := h.pollService.Vote(c.Request.Context(), questionID, req.ChoiceID); err != nil {
		HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Vote recorded"})
}

// parseIDParam 从路径参数中解析正整数 ID。
func parseIDParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
