package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"polls-analytics/internal/domain"
	"polls-analytics/internal/repository"
	"polls-analytics/internal/repository/mocks"
	"polls-analytics/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupStatsRouter(t *testing.T) (*gin.Engine, *mocks.MockQuestionRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	questionRepo := new(mocks.MockQuestionRepository)
	statsService := service.NewStatsService(questionRepo, time.UTC)
	handler := NewStatsHandler(statsService)

	router := gin.New()
	stats := router.Group("/statistics")
	{
		stats.POST("/question-filter/", handler.FilterByDate)
		stats.GET("/question-stats/:id/", handler.QuestionStats)
	}
	return router, questionRepo
}

func TestQuestionStatsEndpoint(t *testing.T) {
	router, questionRepo := setupStatsRouter(t)

	question := &domain.Question{ID: 1, QuestionText: "Favorite language?"}
	choices := []domain.Choice{
		{ID: 1, QuestionID: 1, ChoiceText: "Go", Votes: 3},
		{ID: 2, QuestionID: 1, ChoiceText: "Python", Votes: 1},
	}
	questionRepo.On("FindByID", mock.Anything, uint(1)).Return(question, nil)
	questionRepo.On("ChoicesForQuestion", mock.Anything, uint(1)).Return(choices, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/statistics/question-stats/1/", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		QuestionText string `json:"question_text"`
		TotalVotes   int    `json:"total_votes"`
		Choices      []struct {
			ChoiceText string  `json:"choice_text"`
			Votes      int     `json:"votes"`
			Percentage float64 `json:"percentage"`
		} `json:"choices"`
		MostPopularChoice  *string `json:"most_popular_choice"`
		LeastPopularChoice *string `json:"least_popular_choice"`
		HistogramSVG       string  `json:"histogram_svg"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "Favorite language?", body.QuestionText)
	assert.Equal(t, 4, body.TotalVotes)
	require.Len(t, body.Choices, 2)
	assert.Equal(t, 75.0, body.Choices[0].Percentage)
	assert.Equal(t, 25.0, body.Choices[1].Percentage)
	require.NotNil(t, body.MostPopularChoice)
	assert.Equal(t, "Go", *body.MostPopularChoice)
	require.NotNil(t, body.LeastPopularChoice)
	assert.Equal(t, "Python", *body.LeastPopularChoice)
	assert.True(t, strings.HasPrefix(body.HistogramSVG, "<svg"))
}

func TestQuestionStatsEndpointNotFound(t *testing.T) {
	router, questionRepo := setupStatsRouter(t)

	questionRepo.On("FindByID", mock.Anything, uint(42)).
		Return(nil, repository.ErrQuestionNotFound)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/statistics/question-stats/42/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error": "Question not found"}`, w.Body.String())
}

func TestQuestionStatsEndpointBadID(t *testing.T) {
	router, _ := setupStatsRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/statistics/question-stats/abc/", nil)
	router.ServeHTTP(w, req)

	// 无法解析的 ID 按不存在的问题处理
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error": "Question not found"}`, w.Body.String())
}

func TestQuestionFilterEndpoint(t *testing.T) {
	router, questionRepo := setupStatsRouter(t)

	expectedFrom := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	expectedTo := time.Date(2023, 1, 6, 0, 0, 0, 0, time.UTC)
	questionRepo.On("FindByPubDateRange", mock.Anything, expectedFrom, expectedTo).
		Return([]domain.Question{{ID: 2, QuestionText: "In range"}}, nil)

	w := httptest.NewRecorder()
	payload := `{"publication-dates": {"from": "2023-01-01", "to": "2023-01-05"}}`
	req, _ := http.NewRequest(http.MethodPost, "/statistics/question-filter/", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Questions []struct {
			ID           uint   `json:"id"`
			QuestionText string `json:"question_text"`
		} `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Questions, 1)
	assert.Equal(t, "In range", body.Questions[0].QuestionText)
	questionRepo.AssertExpectations(t)
}

func TestQuestionFilterEndpointMissingDates(t *testing.T) {
	router, _ := setupStatsRouter(t)

	w := httptest.NewRecorder()
	payload := `{"publication-dates": {"from": "2023-01-01"}}`
	req, _ := http.NewRequest(http.MethodPost, "/statistics/question-filter/", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "Both 'from' and 'to' dates must be provided"}`, w.Body.String())
}

func TestQuestionFilterEndpointBadFormat(t *testing.T) {
	router, _ := setupStatsRouter(t)

	w := httptest.NewRecorder()
	payload := `{"publication-dates": {"from": "01/02/2023", "to": "2023-01-05"}}`
	req, _ := http.NewRequest(http.MethodPost, "/statistics/question-filter/", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "Invalid date format (YYYY-MM-DD expected)."}`, w.Body.String())
}
