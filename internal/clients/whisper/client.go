// Package whisper 通过OpenAI兼容接口调用Whisper模型进行识别
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"live2d_bridge/internal/utils"
)

const defaultTimeout = 60 * time.Second

// Config Whisper客户端配置
type Config struct {
	APIKey     string        // API密钥
	BaseURL    string        // 服务地址，空则使用官方接口
	Model      string        // 模型名称
	SampleRate int           // 采样率
	Language   string        // 识别语言，auto为自动检测
	Timeout    time.Duration // 请求超时时间
}

// Client Whisper识别客户端
type Client struct {
	config Config
	client openai.Client
	mu     sync.Mutex
}

// NewClient 创建新的Whisper客户端
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = "whisper-1"
	}
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &Client{
		config: config,
		client: openai.NewClient(options...),
	}
}

// Transcribe 将采样编码为WAV后提交识别
func (c *Client) Transcribe(samples []float32) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wav, err := utils.Float32ToWAV(samples, c.config.SampleRate)
	if err != nil {
		return "", fmt.Errorf("编码WAV失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: openai.AudioModel(c.config.Model),
	}
	if c.config.Language != "" && c.config.Language != "auto" {
		params.Language = openai.String(c.config.Language)
	}

	result, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("请求识别接口失败: %v", err)
	}

	return result.Text, nil
}

// Close 释放客户端资源
func (c *Client) Close() error {
	return nil
}
