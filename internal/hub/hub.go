// Package hub 维护统计面板的 WebSocket 观看者，并把 Redis 上的
// 投票事件转发给正在观看对应问题的客户端。
package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type       string  // "register", "unregister"
	QuestionID uint    // 客户端观看的问题 ID
	Client     *Client
}

// Hub 维护活跃观看者集合，并按问题管理 Redis 订阅。
// 观看者是只读的：Hub 只向外广播，从不处理客户端发来的业务消息。
type Hub struct {
	messageChan chan HubMessage

	// 观看者集合，按问题 ID 组织
	questions   map[uint]map[*Client]bool
	questionsMu sync.RWMutex

	// 每个被观看问题的 Redis 订阅
	subs   map[uint]*redis.PubSub
	subsMu sync.Mutex

	redisClient *redis.Client
	keyPrefix   string

	// 订阅 goroutine 的生命周期控制
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(redisClient *redis.Client, keyPrefix string) *Hub {
	if redisClient == nil {
		panic("redis client cannot be nil for Hub")
	}
	if keyPrefix == "" {
		keyPrefix = "polls:"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		messageChan: make(chan HubMessage, 256),
		questions:   make(map[uint]map[*Client]bool),
		subs:        make(map[uint]*redis.PubSub),
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// QueueMessage 非阻塞地向 Hub 投递一条消息。
// 通道已满时返回 false，调用方自行决定如何处理。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		return false
	}
}

// Run 启动 Hub 的主事件处理循环。
// 它应该在一个单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		default:
			log.Warnf("Hub: Received unknown message type: %s", msg.Type)
		}
	}
	log.Info("Hub is shutting down...")
}

// registerClient 处理观看者注册逻辑
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	questionID := client.QuestionID()
	logCtx := logrus.WithFields(logrus.Fields{"question_id": questionID, "action": "registerClient"})

	h.questionsMu.Lock()
	first := false
	if _, ok := h.questions[questionID]; !ok {
		h.questions[questionID] = make(map[*Client]bool)
		first = true
	}
	h.questions[questionID][client] = true
	h.questionsMu.Unlock()
	logCtx.Info("Viewer registered to Hub")

	// 第一个观看者到来时才开始订阅该问题的事件通道
	if first {
		h.startSubscription(questionID)
	}
}

// unregisterClient 处理观看者注销逻辑
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	questionID := client.QuestionID()
	logCtx := logrus.WithFields(logrus.Fields{"question_id": questionID, "action": "unregisterClient"})

	h.questionsMu.Lock()
	last := false
	if viewers, ok := h.questions[questionID]; ok {
		if _, ok := viewers[client]; ok {
			delete(viewers, client)
			close(client.send)
		}
		if len(viewers) == 0 {
			delete(h.questions, questionID)
			last = true
		}
	}
	h.questionsMu.Unlock()
	logCtx.Info("Viewer unregistered from Hub")

	// 最后一个观看者离开后停止订阅，释放 Redis 连接
	if last {
		h.stopSubscription(questionID)
	}
}

// startSubscription 订阅问题的事件通道并启动转发 goroutine
func (h *Hub) startSubscription(questionID uint) {
	channel := fmt.Sprintf("%squestion:%d:events", h.keyPrefix, questionID)
	logCtx := logrus.WithFields(logrus.Fields{"question_id": questionID, "channel": channel})

	pubsub := h.redisClient.Subscribe(h.ctx, channel)

	h.subsMu.Lock()
	if _, ok := h.subs[questionID]; ok {
		// 已有订阅 (注销和注册交错时可能发生)，关闭多余的
		h.subsMu.Unlock()
		_ = pubsub.Close()
		return
	}
	h.subs[questionID] = pubsub
	h.subsMu.Unlock()
	logCtx.Info("Subscribed to question event channel")

	go func() {
		for msg := range pubsub.Channel() {
			h.broadcast(questionID, []byte(msg.Payload))
		}
		logCtx.Debug("Event channel subscription closed")
	}()
}

// stopSubscription 取消订阅问题的事件通道
func (h *Hub) stopSubscription(questionID uint) {
	h.subsMu.Lock()
	pubsub, ok := h.subs[questionID]
	if ok {
		delete(h.subs, questionID)
	}
	h.subsMu.Unlock()
	if ok {
		if err := pubsub.Close(); err != nil {
			logrus.WithError(err).WithField("question_id", questionID).Warn("Failed to close pubsub subscription")
		}
	}
}

// broadcast 将事件发送给观看该问题的所有客户端
func (h *Hub) broadcast(questionID uint, payload []byte) {
	h.questionsMu.RLock()
	defer h.questionsMu.RUnlock()
	for client := range h.questions[questionID] {
		select {
		case client.send <- payload:
		default:
			// 客户端发送缓冲已满，丢弃消息而不是阻塞 Hub
			logrus.WithField("question_id", questionID).Warn("Viewer send buffer full, dropping event")
		}
	}
}

// StopAllSubscriptions 停止所有 Redis 订阅 (优雅关闭时调用)
func (h *Hub) StopAllSubscriptions() {
	h.cancel()
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	for questionID, pubsub := range h.subs {
		if err := pubsub.Close(); err != nil {
			logrus.WithError(err).WithField("question_id", questionID).Warn("Failed to close pubsub subscription")
		}
		delete(h.subs, questionID)
	}
	logrus.Info("All hub subscriptions stopped")
}
