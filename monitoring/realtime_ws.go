// Package monitoring 提供实时推送与运行指标收集功能
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cardioscope/heart"
)

// MessageType 消息类型
type MessageType string

const (
	PredictionEvent MessageType = "prediction"
	ModelStatus     MessageType = "model_status"
	Heartbeat       MessageType = "heartbeat"
)

// Message 推送消息信封
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	ID        string          `json:"id"`
}

// Client WebSocket客户端
type Client struct {
	conn          *websocket.Conn
	send          chan []byte
	clientID      string
	subscriptions map[string]bool // 订阅的消息类型，为空表示全部接收
}

func (c *Client) wants(msgType MessageType) bool {
	if len(c.subscriptions) == 0 {
		return true
	}
	return c.subscriptions[string(msgType)]
}

type outbound struct {
	msgType MessageType
	payload []byte
}

// WebSocketHub WebSocket中心
type WebSocketHub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewWebSocketHub 创建WebSocket中心
func NewWebSocketHub() *WebSocketHub {
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketHub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动WebSocket中心
func (h *WebSocketHub) Start() {
	defer func() {
		zap.L().Info("websocket hub stopped")
	}()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			zap.L().Info("dashboard client connected",
				zap.String("client", client.clientID),
				zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			zap.L().Info("dashboard client disconnected",
				zap.String("client", client.clientID),
				zap.Int("total", total))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(message.msgType) {
					continue
				}
				select {
				case client.send <- message.payload:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop 停止WebSocket中心
func (h *WebSocketHub) Stop() {
	h.cancel()
}

// ClientCount 当前连接数
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket 处理WebSocket连接
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:          conn,
		send:          make(chan []byte, 256),
		clientID:      generateClientID(),
		subscriptions: make(map[string]bool),
	}

	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

// Broadcast 广播消息，队列满时丢弃
func (h *WebSocketHub) Broadcast(msgType MessageType, payload []byte) {
	select {
	case h.broadcast <- outbound{msgType: msgType, payload: payload}:
	default:
		zap.L().Warn("websocket broadcast queue full, dropping message",
			zap.String("type", string(msgType)))
	}
}

// writePump WebSocket写入泵
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				zap.L().Debug("websocket write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump WebSocket读取泵
func (c *Client) readPump(h *WebSocketHub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		_, messageData, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.L().Debug("websocket read error", zap.Error(err))
			}
			break
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(messageData, &clientMsg); err != nil {
			zap.L().Debug("unparseable client message", zap.Error(err))
			continue
		}
		c.handleClientMessage(clientMsg)
	}
}

// handleClientMessage 处理客户端的订阅指令
func (c *Client) handleClientMessage(msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		c.subscriptions[msg.Topic] = true
	case "unsubscribe":
		delete(c.subscriptions, msg.Topic)
	case "ping":
	}
}

// DashboardMonitor 仪表盘实时推送器
type DashboardMonitor struct {
	hub     *WebSocketHub
	mu      sync.RWMutex
	running bool
	stats   *MonitorStats
}

// MonitorStats 推送统计
type MonitorStats struct {
	ConnectedClients int64         `json:"connected_clients"`
	MessagesSent     int64         `json:"messages_sent"`
	StartTime        time.Time     `json:"start_time"`
	LastMessageTime  time.Time     `json:"last_message_time"`
	Uptime           time.Duration `json:"uptime"`
}

// NewDashboardMonitor 创建仪表盘推送器
func NewDashboardMonitor() *DashboardMonitor {
	return &DashboardMonitor{
		hub: NewWebSocketHub(),
		stats: &MonitorStats{
			StartTime: time.Now(),
		},
	}
}

// Start 启动推送器
func (d *DashboardMonitor) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("monitor is already running")
	}

	go d.hub.Start()
	d.running = true
	d.stats.StartTime = time.Now()

	zap.L().Info("dashboard monitor started")
	return nil
}

// Stop 停止推送器
func (d *DashboardMonitor) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return fmt.Errorf("monitor is not running")
	}

	d.running = false
	d.hub.Stop()

	zap.L().Info("dashboard monitor stopped")
	return nil
}

// SendPrediction 推送一次完成的风险评估，仅包含结论字段
func (d *DashboardMonitor) SendPrediction(pred heart.Prediction) error {
	return d.publish(PredictionEvent, PredictionMessage{
		ID:          pred.ID,
		Diagnosis:   pred.Diagnosis,
		Risk:        string(pred.Risk),
		Confidence:  pred.Confidence,
		HealthyProb: pred.HealthyProb,
		DiseaseProb: pred.DiseaseProb,
		ModelSource: pred.ModelSource,
		Timestamp:   pred.Timestamp,
	})
}

// SendModelStatus 推送模型状态
func (d *DashboardMonitor) SendModelStatus(status ModelStatusMessage) error {
	return d.publish(ModelStatus, status)
}

// SendHeartbeat 推送心跳
func (d *DashboardMonitor) SendHeartbeat() error {
	return d.publish(Heartbeat, HeartbeatMessage{
		Timestamp: time.Now().UTC(),
		Status:    "alive",
	})
}

func (d *DashboardMonitor) publish(msgType MessageType, payload interface{}) error {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()
	if !running {
		return fmt.Errorf("monitor is not running")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %v", msgType, err)
	}
	envelope, err := json.Marshal(Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      data,
		ID:        generateMessageID(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %v", err)
	}

	d.hub.Broadcast(msgType, envelope)

	d.mu.Lock()
	d.stats.MessagesSent++
	d.stats.LastMessageTime = time.Now()
	d.mu.Unlock()
	return nil
}

// GetStats 获取推送统计
func (d *DashboardMonitor) GetStats() *MonitorStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := *d.stats
	if d.running {
		stats.Uptime = time.Since(d.stats.StartTime)
	}
	stats.ConnectedClients = int64(d.hub.ClientCount())
	return &stats
}

// GetWebSocketHub 获取WebSocket中心
func (d *DashboardMonitor) GetWebSocketHub() *WebSocketHub {
	return d.hub
}

// 消息结构体定义

// PredictionMessage 预测事件消息
type PredictionMessage struct {
	ID          string    `json:"id"`
	Diagnosis   string    `json:"diagnosis"`
	Risk        string    `json:"risk"`
	Confidence  float64   `json:"confidence"`
	HealthyProb float64   `json:"healthy_prob"`
	DiseaseProb float64   `json:"disease_prob"`
	ModelSource string    `json:"model_source"`
	Timestamp   time.Time `json:"timestamp"`
}

// ModelStatusMessage 模型状态消息
type ModelStatusMessage struct {
	Source    string    `json:"source"`
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	Rows      int       `json:"rows"`
	TrainedAt time.Time `json:"trained_at"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// HeartbeatMessage 心跳消息
type HeartbeatMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// ClientMessage 客户端消息
type ClientMessage struct {
	Type  string `json:"type"` // subscribe, unsubscribe, ping
	Topic string `json:"topic"`
}

func generateClientID() string {
	return fmt.Sprintf("client_%d", time.Now().UnixNano())
}

func generateMessageID() string {
	return fmt.Sprintf("msg_%d", time.Now().UnixNano())
}
