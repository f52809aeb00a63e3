package repository

import "context"

// StateRepository 定义了易失性状态 (缓存、事件) 的存储操作，当前由 Redis 实现。
type StateRepository interface {
	// RebuildPopularity 用给定的聚合结果整体重建人气排行。
	RebuildPopularity(ctx context.Context, totals map[uint]int64) error

	// IncrementPopularity 将指定问题的人气计数加一 (投票路径上的增量更新)。
	IncrementPopularity(ctx context.Context, questionID uint) error

	// TopQuestions 返回按人气降序排列的问题 ID 列表。
	// 排行不存在 (缓存为空) 时返回空切片，不视为错误。
	TopQuestions(ctx context.Context, limit int64) ([]uint, error)

	// PublishVoteEvent 向指定问题的事件通道发布一条投票事件。
	PublishVoteEvent(ctx context.Context, questionID uint, payload []byte) error

	// StoreOAuthState 保存一次性的 OAuth state 随机值，带过期时间。
	StoreOAuthState(ctx context.Context, state string) error

	// ConsumeOAuthState 校验并删除 OAuth state。返回该值此前是否存在。
	ConsumeOAuthState(ctx context.Context, state string) (bool, error)
}
