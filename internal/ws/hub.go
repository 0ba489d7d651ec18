// Package ws 向浏览器推送视图模型更新
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xilian/telemetry-dashboard/internal/config"
)

// Hub 维护 websocket 客户端集合并广播消息
type Hub struct {
	config  config.WebSocketConfig
	logger  *zap.Logger
	clients sync.Map // map[string]*Client
	count   int64
	// 连接数变化回调（挂接指标）
	onCountChange func(int64)
}

// NewHub 创建推送中枢
func NewHub(cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	return &Hub{
		config: cfg,
		logger: logger,
	}
}

// OnCountChange 设置连接数变化回调
func (h *Hub) OnCountChange(fn func(int64)) {
	h.onCountChange = fn
}

// Run 周期清理失联客户端直至上下文取消
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.cleanStale()
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		}
	}
}

// HandleConnection 接管一条已升级的连接
func (h *Hub) HandleConnection(conn *websocket.Conn) {
	client := &Client{
		ID:       uuid.New().String(),
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, h.config.MessageBufferSize),
		lastPong: time.Now(),
	}

	h.clients.Store(client.ID, client)
	h.countChanged(atomic.AddInt64(&h.count, 1))
	h.logger.Debug("WebSocket client connected", zap.String("client_id", client.ID))

	go client.writePump()
	go client.readPump()
}

// Broadcast 向全部客户端广播一条 JSON 消息
// 发送缓冲打满的客户端视为落后，直接断开
func (h *Hub) Broadcast(message interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Broadcast marshal failed", zap.Error(err))
		return
	}

	h.clients.Range(func(_, value interface{}) bool {
		client := value.(*Client)
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("Client send buffer full, disconnecting",
				zap.String("client_id", client.ID),
			)
			h.drop(client)
		}
		return true
	})
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int64 {
	return atomic.LoadInt64(&h.count)
}

// drop 注销客户端
// 只关连接不关发送通道，读写泵随连接关闭自行退出，避免并发广播写已关通道
func (h *Hub) drop(client *Client) {
	if _, loaded := h.clients.LoadAndDelete(client.ID); !loaded {
		return
	}
	_ = client.conn.Close()
	h.countChanged(atomic.AddInt64(&h.count, -1))
	h.logger.Debug("WebSocket client dropped", zap.String("client_id", client.ID))
}

// cleanStale 清理超过 pong 超时的客户端
func (h *Hub) cleanStale() {
	cutoff := time.Now().Add(-h.config.PongTimeout)

	h.clients.Range(func(_, value interface{}) bool {
		client := value.(*Client)
		if client.pongBefore(cutoff) {
			h.logger.Debug("Stale websocket client removed",
				zap.String("client_id", client.ID),
			)
			h.drop(client)
		}
		return true
	})
}

// closeAll 停机时关闭全部客户端
func (h *Hub) closeAll() {
	h.clients.Range(func(_, value interface{}) bool {
		h.drop(value.(*Client))
		return true
	})
}

func (h *Hub) countChanged(count int64) {
	if h.onCountChange != nil {
		h.onCountChange(count)
	}
}
