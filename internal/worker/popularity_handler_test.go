package worker

import (
	"context"
	"errors"
	"testing"

	"polls-analytics/internal/repository/mocks"
	"polls-analytics/internal/tasks"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newRebuildTask(t *testing.T) *asynq.Task {
	t.Helper()
	payload, err := tasks.NewPopularityRebuildTask()
	require.NoError(t, err)
	return asynq.NewTask(tasks.TypePopularityRebuild, payload)
}

func TestPopularityRebuild(t *testing.T) {
	questionRepo := new(mocks.MockQuestionRepository)
	stateRepo := new(mocks.MockStateRepository)
	handler := NewPopularityRebuildHandler(questionRepo, stateRepo)

	totals := map[uint]int64{1: 10, 2: 5}
	questionRepo.On("VoteTotals", mock.Anything).Return(totals, nil)
	stateRepo.On("RebuildPopularity", mock.Anything, totals).Return(nil)

	err := handler.ProcessTask(context.Background(), newRebuildTask(t))
	assert.NoError(t, err)
	stateRepo.AssertExpectations(t)
}

func TestPopularityRebuildReturnsErrorForRetry(t *testing.T) {
	questionRepo := new(mocks.MockQuestionRepository)
	stateRepo := new(mocks.MockStateRepository)
	handler := NewPopularityRebuildHandler(questionRepo, stateRepo)

	questionRepo.On("VoteTotals", mock.Anything).Return(nil, errors.New("db down"))

	// 聚合失败必须把错误返回给 Asynq 以触发重试
	err := handler.ProcessTask(context.Background(), newRebuildTask(t))
	assert.Error(t, err)
	stateRepo.AssertNotCalled(t, "RebuildPopularity", mock.Anything, mock.Anything)
}
