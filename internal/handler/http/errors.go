package http

import (
	"errors"
	"net/http"

	"polls-analytics/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HandleServiceError 将服务层业务错误映射为 HTTP 响应。
// 错误文本直接作为响应体的 error 字段 (部分文本属于对外契约)。
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAuthenticationFailed):
		ErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrAutoSignupNotAllowed):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrQuestionNotFound),
		errors.Is(err, service.ErrChoiceNotFound),
		errors.Is(err, service.ErrUserNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrRegistrationFailed),
		errors.Is(err, service.ErrInvalidQuestion),
		errors.Is(err, service.ErrChoiceMismatch),
		errors.Is(err, service.ErrDateRangeRequired),
		errors.Is(err, service.ErrInvalidDateFormat):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	default:
		// Log the internal error for debugging
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
