// Package tasks 定义了后台任务的类型常量和 payload 构造函数。
package tasks

import (
	"encoding/json"
	"time"
)

// 任务类型常量
const (
	// TypePopularityRebuild 周期性重建人气排行的任务类型
	TypePopularityRebuild = "popularity:rebuild"
)

// PopularityRebuildPayload 定义了人气重建任务的数据结构
type PopularityRebuildPayload struct {
	// RequestedAt 记录任务入队时间，用于日志排查
	RequestedAt time.Time `json:"requested_at"`
}

// NewPopularityRebuildTask 创建一个新的人气重建任务 payload
func NewPopularityRebuildTask() ([]byte, error) {
	payload := PopularityRebuildPayload{RequestedAt: time.Now()}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return payloadBytes, nil
}
