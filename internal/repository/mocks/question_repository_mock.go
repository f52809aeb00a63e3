package mocks

import (
	"context"
	"time"

	"polls-analytics/internal/domain"

	"github.com/stretchr/testify/mock"
)

// MockQuestionRepository 是 repository.QuestionRepository 的 mock 实现
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) FindByID(ctx context.Context, id uint) (*domain.Question, error) {
	args := m.Called(ctx, id)
	question, _ := args.Get(0).(*domain.Question)
	return question, args.Error(1)
}

func (m *MockQuestionRepository) FindAll(ctx context.Context) ([]domain.Question, error) {
	args := m.Called(ctx)
	questions, _ := args.Get(0).([]domain.Question)
	return questions, args.Error(1)
}

func (m *MockQuestionRepository) FindByPubDateRange(ctx context.Context, from, to time.Time) ([]domain.Question, error) {
	args := m.Called(ctx, from, to)
	questions, _ := args.Get(0).([]domain.Question)
	return questions, args.Error(1)
}

func (m *MockQuestionRepository) ChoicesForQuestion(ctx context.Context, questionID uint) ([]domain.Choice, error) {
	args := m.Called(ctx, questionID)
	choices, _ := args.Get(0).([]domain.Choice)
	return choices, args.Error(1)
}

func (m *MockQuestionRepository) FindChoice(ctx context.Context, choiceID uint) (*domain.Choice, error) {
	args := m.Called(ctx, choiceID)
	choice, _ := args.Get(0).(*domain.Choice)
	return choice, args.Error(1)
}

func (m *MockQuestionRepository) Save(ctx context.Context, question *domain.Question) error {
	args := m.Called(ctx, question)
	return args.Error(0)
}

func (m *MockQuestionRepository) IncrementVote(ctx context.Context, choiceID uint) error {
	args := m.Called(ctx, choiceID)
	return args.Error(0)
}

func (m *MockQuestionRepository) VoteTotals(ctx context.Context) (map[uint]int64, error) {
	args := m.Called(ctx)
	totals, _ := args.Get(0).(map[uint]int64)
	return totals, args.Error(1)
}
