package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"polls-analytics/internal/repository"
)

// PopularityRebuildHandler 处理周期性的人气排行重建任务。
// 投票路径上的增量更新可能因 Redis 短暂不可用而丢失；
// 周期性地从投票存储整体重建可以修复这种漂移。
type PopularityRebuildHandler struct {
	questionRepo repository.QuestionRepository
	stateRepo    repository.StateRepository
}

// NewPopularityRebuildHandler 创建 Handler 实例
func NewPopularityRebuildHandler(questionRepo repository.QuestionRepository, stateRepo repository.StateRepository) *PopularityRebuildHandler {
	if questionRepo == nil {
		panic("QuestionRepository cannot be nil for PopularityRebuildHandler")
	}
	if stateRepo == nil {
		panic("StateRepository cannot be nil for PopularityRebuildHandler")
	}
	return &PopularityRebuildHandler{
		questionRepo: questionRepo,
		stateRepo:    stateRepo,
	}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *PopularityRebuildHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())
	logCtx.Info("Processing popularity rebuild task...")

	// 使用带超时的 context，避免任务卡死
	rebuildCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	totals, err := h.questionRepo.VoteTotals(rebuildCtx)
	if err != nil {
		logCtx.WithError(err).Error("Popularity rebuild: failed to aggregate vote totals")
		return err // 让 Asynq 按配置重试
	}

	if err := h.stateRepo.RebuildPopularity(rebuildCtx, totals); err != nil {
		logCtx.WithError(err).Error("Popularity rebuild: failed to write ranking")
		return err
	}

	logCtx.WithField("questions", len(totals)).Info("Popularity ranking rebuilt")
	return nil
}
