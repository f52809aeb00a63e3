// Package redisstate 包含 StateRepository 接口的 Redis 实现。
package redisstate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// oauthStateTTL 是一次性 OAuth state 的有效期
const oauthStateTTL = 10 * time.Minute

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client *redis.Client // 依赖 Redis 客户端
	// keyPrefix 用于隔离不同部署的 key 空间
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "polls:" // 默认前缀
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---

func (r *RedisStateRepository) popularityKey() string {
	return r.keyPrefix + "popularity"
}

func (r *RedisStateRepository) questionEventChannel(questionID uint) string {
	return fmt.Sprintf("%squestion:%d:events", r.keyPrefix, questionID)
}

func (r *RedisStateRepository) oauthStateKey(state string) string {
	return r.keyPrefix + "oauth:state:" + state
}

// --- StateRepository Interface Implementation ---

// RebuildPopularity 用聚合结果整体重建人气 ZSET。
// 先写入临时 key 再 RENAME，避免重建期间排行短暂为空。
func (r *RedisStateRepository) RebuildPopularity(ctx context.Context, totals map[uint]int64) error {
	key := r.popularityKey()
	tmpKey := key + ":rebuild"

	if len(totals) == 0 {
		// 没有任何问题，直接清空排行
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis: failed to clear popularity ranking: %w", err)
		}
		return nil
	}

	members := make([]*redis.Z, 0, len(totals))
	for questionID, total := range totals {
		members = append(members, &redis.Z{
			Score:  float64(total),
			Member: strconv.FormatUint(uint64(questionID), 10),
		})
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, tmpKey)
	pipe.ZAdd(ctx, tmpKey, members...)
	pipe.Rename(ctx, tmpKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to rebuild popularity ranking: %w", err)
	}
	return nil
}

// IncrementPopularity 将指定问题的人气计数加一
func (r *RedisStateRepository) IncrementPopularity(ctx context.Context, questionID uint) error {
	member := strconv.FormatUint(uint64(questionID), 10)
	if err := r.client.ZIncrBy(ctx, r.popularityKey(), 1, member).Err(); err != nil {
		return fmt.Errorf("redis: failed to increment popularity for question %d: %w", questionID, err)
	}
	return nil
}

// TopQuestions 返回按人气降序排列的问题 ID 列表
func (r *RedisStateRepository) TopQuestions(ctx context.Context, limit int64) ([]uint, error) {
	if limit <= 0 {
		limit = -1 // Redis 语义：-1 表示取到末尾
	} else {
		limit = limit - 1
	}
	members, err := r.client.ZRevRange(ctx, r.popularityKey(), 0, limit).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to read popularity ranking: %w", err)
	}
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		id, parseErr := strconv.ParseUint(m, 10, 64)
		if parseErr != nil {
			// 排行中出现无法解析的成员，跳过并记录，不让整个查询失败
			logrus.Warnf("redis: skipping malformed popularity member '%s'", m)
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// PublishVoteEvent 向指定问题的事件通道发布一条投票事件
func (r *RedisStateRepository) PublishVoteEvent(ctx context.Context, questionID uint, payload []byte) error {
	channel := r.questionEventChannel(questionID)
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: failed to publish vote event for question %d: %w", questionID, err)
	}
	return nil
}

// StoreOAuthState 保存一次性的 OAuth state，带过期时间
func (r *RedisStateRepository) StoreOAuthState(ctx context.Context, state string) error {
	key := r.oauthStateKey(state)
	if err := r.client.Set(ctx, key, "1", oauthStateTTL).Err(); err != nil {
		return fmt.Errorf("redis: failed to store oauth state: %w", err)
	}
	return nil
}

// ConsumeOAuthState 校验并删除 OAuth state。
// 用 DEL 的返回值判断存在性，保证每个 state 只能使用一次。
func (r *RedisStateRepository) ConsumeOAuthState(ctx context.Context, state string) (bool, error) {
	key := r.oauthStateKey(state)
	deleted, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to consume oauth state: %w", err)
	}
	return deleted > 0, nil
}
