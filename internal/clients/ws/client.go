// Package ws 提供通用的WebSocket客户端实现
package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MessageHandler 消息处理函数类型
type MessageHandler func(message []byte) error

// Config WebSocket客户端配置
type Config struct {
	URL               string            // WebSocket服务器地址
	Headers           map[string]string // 自定义请求头
	ReconnectInterval time.Duration     // 重连间隔
	MaxRetries        int               // 最大重试次数，0表示断开后不重连
	HeartbeatInterval time.Duration     // 心跳间隔，0表示不发送心跳
	HeartbeatMessage  []byte            // 心跳消息内容
}

// Client WebSocket客户端基类
type Client struct {
	config Config

	conn     *websocket.Conn
	connLock sync.Mutex

	currentRetries int
	lastPong       time.Time

	handlers map[string]MessageHandler
	onClose  func()

	done     chan struct{}
	doneOnce sync.Once
}

// NewClient 创建新的WebSocket客户端
func NewClient(config Config) *Client {
	return &Client{
		config:   config,
		handlers: make(map[string]MessageHandler),
		done:     make(chan struct{}),
	}
}

// RegisterHandler 注册指定消息类型的处理器
func (c *Client) RegisterHandler(messageType string, handler MessageHandler) {
	c.handlers[messageType] = handler
}

// SetCloseHandler 设置连接结束回调，连接关闭且不再重连时调用一次。
// 回调执行完毕后Done通道才会关闭，依赖Done的调用方可以放心做收尾
func (c *Client) SetCloseHandler(handler func()) {
	c.onClose = handler
}

// Done 返回连接结束通知通道
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Connect 连接到WebSocket服务器
func (c *Client) Connect() error {
	c.connLock.Lock()
	defer c.connLock.Unlock()

	log.Printf("正在连接WebSocket服务器: %s", c.config.URL)

	header := http.Header{}
	for key, value := range c.config.Headers {
		header.Set(key, value)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.Dial(c.config.URL, header)
	if err != nil {
		return fmt.Errorf("连接WebSocket失败: %v", err)
	}

	c.conn = conn
	c.currentRetries = 0
	c.lastPong = time.Now()

	// Pong回调在接收协程中触发，lastPong的读写都由connLock保护
	c.conn.SetPongHandler(func(string) error {
		c.connLock.Lock()
		c.lastPong = time.Now()
		c.connLock.Unlock()
		return nil
	})

	if c.config.HeartbeatInterval > 0 {
		go c.heartbeatLoop(conn)
	}
	go c.receiveLoop(conn)

	log.Printf("已成功连接到WebSocket服务器: %s", c.config.URL)
	return nil
}

// Close 主动关闭WebSocket连接
func (c *Client) Close() error {
	c.connLock.Lock()
	defer c.connLock.Unlock()

	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	c.finish()
	return err
}

// SendMessage 发送JSON消息到服务器
func (c *Client) SendMessage(message interface{}) error {
	c.connLock.Lock()
	defer c.connLock.Unlock()

	if c.conn == nil {
		return fmt.Errorf("WebSocket未连接")
	}

	if err := c.conn.WriteJSON(message); err != nil {
		return fmt.Errorf("消息发送失败: %v", err)
	}
	return nil
}

// heartbeatLoop 心跳循环
func (c *Client) heartbeatLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connLock.Lock()
			if c.conn != conn {
				c.connLock.Unlock()
				return
			}
			err := conn.WriteMessage(websocket.PingMessage, c.config.HeartbeatMessage)
			timedOut := time.Since(c.lastPong) > c.config.HeartbeatInterval*2
			c.connLock.Unlock()

			if err != nil {
				log.Printf("发送心跳失败: %v", err)
				c.handleConnectionError(conn)
				return
			}
			if timedOut {
				log.Printf("心跳超时，准备重连")
				c.handleConnectionError(conn)
				return
			}
		}
	}
}

// receiveLoop 接收消息循环
func (c *Client) receiveLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("读取消息失败: %v", err)
			}
			c.handleConnectionError(conn)
			return
		}

		if err := c.dispatchMessage(message); err != nil {
			log.Printf("处理消息失败: %v", err)
		}
	}
}

// dispatchMessage 按消息类型分发到已注册的处理器
func (c *Client) dispatchMessage(message []byte) error {
	messageType, err := messageTypeOf(message)
	if err != nil {
		return err
	}

	if handler, ok := c.handlers[messageType]; ok {
		return handler(message)
	}
	return nil
}

// handleConnectionError 处理连接错误，按配置重连或结束
func (c *Client) handleConnectionError(conn *websocket.Conn) {
	c.connLock.Lock()

	// 连接已被替换或主动关闭时不再处理
	if c.conn != conn {
		c.connLock.Unlock()
		return
	}
	c.conn.Close()
	c.conn = nil

	if c.currentRetries >= c.config.MaxRetries {
		if c.config.MaxRetries > 0 {
			log.Printf("重试次数超过最大限制，停止重连")
		}
		c.finish()
		c.connLock.Unlock()
		return
	}
	c.currentRetries++
	retries := c.currentRetries
	c.connLock.Unlock()

	time.Sleep(c.config.ReconnectInterval)
	log.Printf("正在尝试重新连接 (第 %d 次)", retries)
	if err := c.Connect(); err != nil {
		log.Printf("重新连接失败: %v", err)
		c.connLock.Lock()
		c.finish()
		c.connLock.Unlock()
	}
}

// messageTypeOf 解析消息中的type字段
func messageTypeOf(message []byte) (string, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &head); err != nil {
		return "", fmt.Errorf("解析消息失败: %v", err)
	}
	if head.Type == "" {
		return "", fmt.Errorf("消息类型无效")
	}
	return head.Type, nil
}

// finish 标记客户端结束，只触发一次。
// 结束回调在独立协程中执行（调用方可能持有connLock），
// 回调返回后才关闭done通道
func (c *Client) finish() {
	c.doneOnce.Do(func() {
		handler := c.onClose
		if handler == nil {
			close(c.done)
			return
		}
		go func() {
			handler()
			close(c.done)
		}()
	})
}
