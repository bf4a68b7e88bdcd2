// Package handlers 实现模拟Live2D前端宿主的HTTP和WebSocket处理器
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"live2d_bridge/internal/config"
	"live2d_bridge/internal/models"
)

// FrontendHandler 模拟前端宿主：
// 把/broadcast收到的事件分发给所有观众连接，
// 把观众发来的麦克风音频中继给后端采集连接
type FrontendHandler struct {
	upgrader websocket.Upgrader

	mu       sync.Mutex
	viewers  map[string]*websocket.Conn // /client-ws 观众连接
	backends map[string]*websocket.Conn // /server-ws 后端采集连接
}

// NewFrontendHandler 创建新的前端处理器实例
func NewFrontendHandler(cfg config.WebSocketConfig) *FrontendHandler {
	return &FrontendHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		viewers:  make(map[string]*websocket.Conn),
		backends: make(map[string]*websocket.Conn),
	}
}

// RegisterRoutes 注册路由
func (h *FrontendHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/broadcast", h.HandleBroadcast)
	r.GET("/client-ws", h.HandleClientWS)
	r.GET("/server-ws", h.HandleServerWS)
}

// HandleBroadcast 处理广播请求，把事件转发给所有观众连接
func (h *FrontendHandler) HandleBroadcast(c *gin.Context) {
	var envelope models.BroadcastEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的广播请求"})
		return
	}

	// message字段本身是JSON编码的事件，校验后原样转发
	var message models.BroadcastMessage
	if err := json.Unmarshal([]byte(envelope.Message), &message); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的广播事件"})
		return
	}

	count := h.fanOut([]byte(envelope.Message))
	log.Printf("广播事件 %s 已转发给 %d 个观众", message.Type, count)

	c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": count})
}

// fanOut 把消息发送到所有观众连接
func (h *FrontendHandler) fanOut(message []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := 0
	for sessionID, conn := range h.viewers {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("向观众 %s 转发失败: %v", sessionID, err)
			conn.Close()
			delete(h.viewers, sessionID)
			continue
		}
		count++
	}
	return count
}

// HandleClientWS 处理观众连接，中继麦克风音频到后端
func (h *FrontendHandler) HandleClientWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("升级观众连接失败: %v", err)
		return
	}

	sessionID := uuid.NewString()
	h.mu.Lock()
	h.viewers[sessionID] = conn
	h.mu.Unlock()
	log.Printf("观众已连接: %s", sessionID)

	defer func() {
		h.mu.Lock()
		delete(h.viewers, sessionID)
		h.mu.Unlock()
		conn.Close()
		log.Printf("观众已断开: %s", sessionID)
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("读取观众消息失败: %v", err)
			}
			return
		}

		var msg models.MicAudioMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("解析观众消息失败: %v", err)
			continue
		}

		// 只中继麦克风音频消息
		switch msg.Type {
		case models.MessageTypeMicAudio, models.MessageTypeMicAudioEnd:
			h.relayToBackends(message)
		}
	}
}

// relayToBackends 把音频消息中继给所有后端采集连接
func (h *FrontendHandler) relayToBackends(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sessionID, conn := range h.backends {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("向后端 %s 中继失败: %v", sessionID, err)
			conn.Close()
			delete(h.backends, sessionID)
		}
	}
}

// HandleServerWS 处理后端采集连接
func (h *FrontendHandler) HandleServerWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("升级后端连接失败: %v", err)
		return
	}

	sessionID := uuid.NewString()
	h.mu.Lock()
	h.backends[sessionID] = conn
	h.mu.Unlock()
	log.Printf("后端已连接: %s", sessionID)

	defer func() {
		h.mu.Lock()
		delete(h.backends, sessionID)
		h.mu.Unlock()
		conn.Close()
		log.Printf("后端已断开: %s", sessionID)
	}()

	// 后端连接只接收中继数据，读循环用于感知断开
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
