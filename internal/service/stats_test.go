package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"polls-analytics/internal/domain"
	"polls-analytics/internal/repository"
	"polls-analytics/internal/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newStatsService(t *testing.T) (*StatsService, *mocks.MockQuestionRepository) {
	t.Helper()
	questionRepo := new(mocks.MockQuestionRepository)
	return NewStatsService(questionRepo, time.UTC), questionRepo
}

func TestQuestionStatsComputesPercentagesAndExtremes(t *testing.T) {
	svc, questionRepo := newStatsService(t)

	question := &domain.Question{ID: 1, QuestionText: "Favorite language?"}
	choices := []domain.Choice{
		{ID: 1, QuestionID: 1, ChoiceText: "Go", Votes: 10},
		{ID: 2, QuestionID: 1, ChoiceText: "Python", Votes: 10},
		{ID: 3, QuestionID: 1, ChoiceText: "Rust", Votes: 5},
	}
	questionRepo.On("FindByID", mock.Anything, uint(1)).Return(question, nil)
	questionRepo.On("ChoicesForQuestion", mock.Anything, uint(1)).Return(choices, nil)

	stats, err := svc.QuestionStats(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "Favorite language?", stats.QuestionText)
	assert.Equal(t, 25, stats.TotalVotes)
	require.Len(t, stats.Choices, 3)
	assert.Equal(t, 40.0, stats.Choices[0].Percentage)
	assert.Equal(t, 40.0, stats.Choices[1].Percentage)
	assert.Equal(t, 20.0, stats.Choices[2].Percentage)

	// 并列时最热选项判给先遇到的那个
	require.NotNil(t, stats.MostPopularChoice)
	assert.Equal(t, "Go", *stats.MostPopularChoice)
	require.NotNil(t, stats.LeastPopularChoice)
	assert.Equal(t, "Rust", *stats.LeastPopularChoice)

	assert.True(t, strings.HasPrefix(stats.HistogramSVG, "<svg"))
	assert.Contains(t, stats.HistogramSVG, "Favorite language?")
}

func TestQuestionStatsRoundsPercentagesToTwoDecimals(t *testing.T) {
	svc, questionRepo := newStatsService(t)

	question := &domain.Question{ID: 2, QuestionText: "Q"}
	choices := []domain.Choice{
		{ID: 1, QuestionID: 2, ChoiceText: "A", Votes: 1},
		{ID: 2, QuestionID: 2, ChoiceText: "B", Votes: 2},
	}
	questionRepo.On("FindByID", mock.Anything, uint(2)).Return(question, nil)
	questionRepo.On("ChoicesForQuestion", mock.Anything, uint(2)).Return(choices, nil)

	stats, err := svc.QuestionStats(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 33.33, stats.Choices[0].Percentage)
	assert.Equal(t, 66.67, stats.Choices[1].Percentage)
}

func TestQuestionStatsZeroVotes(t *testing.T) {
	svc, questionRepo := newStatsService(t)

	question := &domain.Question{ID: 3, QuestionText: "Q"}
	choices := []domain.Choice{
		{ID: 1, QuestionID: 3, ChoiceText: "A", Votes: 0},
		{ID: 2, QuestionID: 3, ChoiceText: "B", Votes: 0},
	}
	questionRepo.On("FindByID", mock.Anything, uint(3)).Return(question, nil)
	questionRepo.On("ChoicesForQuestion", mock.Anything, uint(3)).Return(choices, nil)

	stats, err := svc.QuestionStats(context.Background(), 3)
	require.NoError(t, err)

	// 零票时百分比为 0 而不是 NaN，两个极值都判给第一个选项
	assert.Equal(t, 0, stats.TotalVotes)
	assert.Equal(t, 0.0, stats.Choices[0].Percentage)
	assert.Equal(t, 0.0, stats.Choices[1].Percentage)
	require.NotNil(t, stats.MostPopularChoice)
	assert.Equal(t, "A", *stats.MostPopularChoice)
	require.NotNil(t, stats.LeastPopularChoice)
	assert.Equal(t, "A", *stats.LeastPopularChoice)
}

func TestQuestionStatsNoChoices(t *testing.T) {
	svc, questionRepo := newStatsService(t)

	question := &domain.Question{ID: 4, QuestionText: "Q"}
	questionRepo.On("FindByID", mock.Anything, uint(4)).Return(question, nil)
	questionRepo.On("ChoicesForQuestion", mock.Anything, uint(4)).Return([]domain.Choice{}, nil)

	stats, err := svc.QuestionStats(context.Background(), 4)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.TotalVotes)
	assert.Empty(t, stats.Choices)
	assert.Nil(t, stats.MostPopularChoice)
	assert.Nil(t, stats.LeastPopularChoice)
	assert.NotEmpty(t, stats.HistogramSVG)
}

func TestQuestionStatsNotFound(t *testing.T) {
	svc, questionRepo := newStatsService(t)

	questionRepo.On("FindByID", mock.Anything, uint(99)).Return(nil, repository.ErrQuestionNotFound)

	_, err := svc.QuestionStats(context.Background(), 99)
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestFilterByDateRequiresBothDates(t *testing.T) {
	svc, _ := newStatsService(t)

	_, err := svc.FilterByDate(context.Background(), "", "2023-01-01")
	assert.ErrorIs(t, err, ErrDateRangeRequired)

	_, err = svc.FilterByDate(context.Background(), "2023-01-01", "")
	assert.ErrorIs(t, err, ErrDateRangeRequired)
}

func TestFilterByDateRejectsBadFormat(t *testing.T) {
	svc, _ := newStatsService(t)

	_, err := svc.FilterByDate(context.Background(), "01/02/2023", "2023-01-05")
	assert.ErrorIs(t, err, ErrInvalidDateFormat)

	_, err = svc.FilterByDate(context.Background(), "2023-01-01", "not-a-date")
	assert.ErrorIs(t, err, ErrInvalidDateFormat)
}

func TestFilterByDateWindowIncludesEndDay(t *testing.T) {
	svc, questionRepo := newStatsService(t)

	expectedFrom := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	// 上界是 to 的次日零点，包含结束日的全部时间
	expectedTo := time.Date(2023, 1, 11, 0, 0, 0, 0, time.UTC)

	found := []domain.Question{{ID: 7, QuestionText: "In range"}}
	questionRepo.On("FindByPubDateRange", mock.Anything, expectedFrom, expectedTo).Return(found, nil)

	questions, err := svc.FilterByDate(context.Background(), "2023-01-01", "2023-01-10")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, uint(7), questions[0].ID)
	questionRepo.AssertExpectations(t)
}

func TestFilterByDateUsesConfiguredLocation(t *testing.T) {
	questionRepo := new(mocks.MockQuestionRepository)
	loc := time.FixedZone("UTC+3", 3*60*60)
	svc := NewStatsService(questionRepo, loc)

	expectedFrom := time.Date(2023, 6, 1, 0, 0, 0, 0, loc)
	expectedTo := time.Date(2023, 6, 2, 0, 0, 0, 0, loc)
	questionRepo.On("FindByPubDateRange", mock.Anything, expectedFrom, expectedTo).Return([]domain.Question{}, nil)

	_, err := svc.FilterByDate(context.Background(), "2023-06-01", "2023-06-01")
	require.NoError(t, err)
	questionRepo.AssertExpectations(t)
}
