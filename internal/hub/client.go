package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个观看统计面板的 WebSocket 客户端。
// 观看者是只读的：入站帧只用于保活，内容一律丢弃。
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	questionID uint        // 观看的问题 ID
	send       chan []byte // 向此客户端发送事件的缓冲通道
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, questionID uint) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		questionID: questionID,
		send:       make(chan []byte, 64),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// QuestionID 返回该客户端观看的问题 ID
func (c *Client) QuestionID() uint { return c.questionID }

// CloseConn 关闭底层 WebSocket 连接
func (c *Client) CloseConn() {
	_ = c.conn.Close()
}

// ReadPump 消费入站帧直到连接关闭，然后请求 Hub 注销此客户端。
// 它在自己的 goroutine 中运行。
func (c *Client) ReadPump() {
	defer func() {
		unregisterMsg := HubMessage{Type: "unregister", Client: c}
		select {
		case c.hub.messageChan <- unregisterMsg:
		case <-time.After(1 * time.Second):
			logrus.WithField("question_id", c.questionID).Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		logrus.WithField("question_id", c.questionID).Info("readPump exited, unregistered viewer")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait)) // 收到 Pong 后重置读取超时
		return nil
	})

	for {
		// 观看者不发送业务消息；读取只为检测关闭和处理控制帧
		if _, _, err := c.conn.ReadMessage(); err != nil {
			logCtx := logrus.WithField("question_id", c.questionID)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			break
		}
	}
}

// WritePump 将事件从 send 通道泵送到 WebSocket 连接，并周期性发送 Ping。
// 它在自己的 goroutine 中运行。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logrus.WithField("question_id", c.questionID).Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道被 Hub 关闭了 (注销时)
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithField("question_id", c.questionID).WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithField("question_id", c.questionID).WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}
