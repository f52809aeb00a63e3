package service

import "errors"

// 服务层业务错误。
// ErrQuestionNotFound / ErrDateRangeRequired / ErrInvalidDateFormat 的文本
// 会原样出现在 HTTP 错误响应体中，属于对外契约，不要随意改动。
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrQuestionNotFound     = errors.New("Question not found")
	ErrChoiceNotFound       = errors.New("choice not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: username or email already exists")
	ErrInternalServer       = errors.New("internal server error")

	ErrDateRangeRequired = errors.New("Both 'from' and 'to' dates must be provided")
	ErrInvalidDateFormat = errors.New("Invalid date format (YYYY-MM-DD expected).")

	ErrInvalidQuestion      = errors.New("a question requires text and at least two choices")
	ErrChoiceMismatch       = errors.New("choice does not belong to the question")
	ErrAutoSignupNotAllowed = errors.New("automatic signup is not allowed for this provider")
)
