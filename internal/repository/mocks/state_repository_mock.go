package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStateRepository 是 repository.StateRepository 的 mock 实现
type MockStateRepository struct {
	mock.Mock
}

func (m *MockStateRepository) RebuildPopularity(ctx context.Context, totals map[uint]int64) error {
	args := m.Called(ctx, totals)
	return args.Error(0)
}

func (m *MockStateRepository) IncrementPopularity(ctx context.Context, questionID uint) error {
	args := m.Called(ctx, questionID)
	return args.Error(0)
}

func (m *MockStateRepository) TopQuestions(ctx context.Context, limit int64) ([]uint, error) {
	args := m.Called(ctx, limit)
	ids, _ := args.Get(0).([]uint)
	return ids, args.Error(1)
}

func (m *MockStateRepository) PublishVoteEvent(ctx context.Context, questionID uint, payload []byte) error {
	args := m.Called(ctx, questionID, payload)
	return args.Error(0)
}

func (m *MockStateRepository) StoreOAuthState(ctx context.Context, state string) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockStateRepository) ConsumeOAuthState(ctx context.Context, state string) (bool, error) {
	args := m.Called(ctx, state)
	return args.Bool(0), args.Error(1)
}
