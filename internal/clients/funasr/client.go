// Package funasr 实现与FunASR运行时服务的WebSocket通信
package funasr

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"live2d_bridge/internal/utils"
)

const (
	// frameSize 每帧发送的PCM字节数
	frameSize = 3200

	defaultTimeout = 60 * time.Second
)

// Config FunASR客户端配置
type Config struct {
	ServerURL  string        // FunASR WebSocket服务地址
	SampleRate int           // 采样率
	Language   string        // 识别语言，auto为自动检测
	UseITN     bool          // 是否启用逆文本规整
	Timeout    time.Duration // 等待识别结果的超时时间
}

// Client FunASR离线识别客户端。
// 每次识别建立一次连接，调用方负责串行访问。
type Client struct {
	config Config
	mu     sync.Mutex
}

// NewClient 创建新的FunASR客户端
func NewClient(config Config) *Client {
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return &Client{config: config}
}

// Transcribe 识别一段float32 PCM采样，返回模型输出的原始文本
func (c *Client) Transcribe(samples []float32) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.Dial(c.config.ServerURL, nil)
	if err != nil {
		return "", fmt.Errorf("连接FunASR服务失败: %v", err)
	}
	defer conn.Close()

	// 起始帧：离线模式，参数一次性下发
	start := startFrame{
		Mode:          "offline",
		ChunkSize:     []int{5, 10, 5},
		ChunkInterval: 10,
		WavName:       "live2d_bridge",
		WavFormat:     "pcm",
		AudioFs:       c.config.SampleRate,
		IsSpeaking:    true,
		ITN:           c.config.UseITN,
	}
	if c.config.Language != "" && c.config.Language != "auto" {
		start.SvsLang = c.config.Language
	}
	if err := conn.WriteJSON(start); err != nil {
		return "", fmt.Errorf("发送起始帧失败: %v", err)
	}

	// 音频数据按固定帧长分段发送
	pcm := utils.Float32ToPCM16Bytes(samples)
	for offset := 0; offset < len(pcm); offset += frameSize {
		end := offset + frameSize
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[offset:end]); err != nil {
			return "", fmt.Errorf("发送音频数据失败: %v", err)
		}
	}

	// 结束帧
	if err := conn.WriteJSON(endFrame{IsSpeaking: false}); err != nil {
		return "", fmt.Errorf("发送结束帧失败: %v", err)
	}

	return c.readResult(conn)
}

// readResult 阻塞等待最终识别结果
func (c *Client) readResult(conn *websocket.Conn) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(c.config.Timeout)); err != nil {
		return "", fmt.Errorf("设置读取超时失败: %v", err)
	}

	for {
		var result resultFrame
		if err := conn.ReadJSON(&result); err != nil {
			return "", fmt.Errorf("读取识别结果失败: %v", err)
		}

		if result.Message != "" {
			return "", fmt.Errorf("FunASR服务返回错误: %s", result.Message)
		}

		// 离线模式只关心最终结果
		if result.IsFinal || result.Mode == "offline" {
			log.Printf("收到识别结果: wav_name=%s, 长度=%d", result.WavName, len(result.Text))
			return result.Text, nil
		}
	}
}

// Close 释放客户端资源，当前实现按次建连，无需清理
func (c *Client) Close() error {
	return nil
}
