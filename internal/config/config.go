// Package config 提供配置加载和管理功能
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用程序配置结构
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Live2D    Live2DConfig    `yaml:"live2d"`
	ASR       ASRConfig       `yaml:"asr"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// ServerConfig 前端模拟服务器配置
type ServerConfig struct {
	Host string `yaml:"host"` // 服务器监听地址
	Port int    `yaml:"port"` // 服务器监听端口
}

// Live2DConfig Live2D前端桥接配置
type Live2DConfig struct {
	BaseURL         string `yaml:"base_url"`         // 前端服务器基础URL
	ModelDict       string `yaml:"model_dict"`       // 模型字典文件路径
	Model           string `yaml:"model"`            // 启动时选择的模型名称
	ExpressionDelay int    `yaml:"expression_delay"` // 表情切换间隔（秒）
}

// ASRConfig 语音识别配置
type ASRConfig struct {
	Provider   string           `yaml:"provider"`    // 识别后端: funasr 或 whisper
	SampleRate int              `yaml:"sample_rate"` // 采样率
	Language   string           `yaml:"language"`    // 识别语言，auto为自动检测
	UseITN     bool             `yaml:"use_itn"`     // 是否启用逆文本规整
	FunASR     FunASRConfig     `yaml:"funasr"`      // FunASR服务配置
	SenseVoice SenseVoiceConfig `yaml:"sensevoice"`  // SenseVoice输出清理配置
	Whisper    WhisperConfig    `yaml:"whisper"`     // Whisper API配置
}

// FunASRConfig FunASR运行时服务配置
type FunASRConfig struct {
	ServerURL string `yaml:"server_url"` // FunASR WebSocket服务地址
}

// SenseVoiceConfig SenseVoice模型输出清理配置
type SenseVoiceConfig struct {
	ExtraTagPatterns []string `yaml:"extra_tag_patterns"` // 追加的标签清理正则
}

// WhisperConfig OpenAI兼容Whisper接口配置
type WhisperConfig struct {
	APIKey  string `yaml:"api_key"`  // API密钥
	BaseURL string `yaml:"base_url"` // 服务地址，空则使用官方接口
	Model   string `yaml:"model"`    // 模型名称
}

// Duration 时间配置字段，支持"30s"、"1m"等Go时间格式
type Duration time.Duration

// UnmarshalYAML 按time.ParseDuration解析时间配置
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("解析时间配置失败 %q: %v", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// WebSocketConfig WebSocket配置
type WebSocketConfig struct {
	ReadBufferSize    int      `yaml:"read_buffer_size"`   // 读缓冲区大小
	WriteBufferSize   int      `yaml:"write_buffer_size"`  // 写缓冲区大小
	PingPeriod        Duration `yaml:"ping_period"`        // 心跳间隔
	PongWait          Duration `yaml:"pong_wait"`          // 等待Pong响应的超时时间
	ReconnectInterval Duration `yaml:"reconnect_interval"` // 重连间隔
	MaxRetries        int      `yaml:"max_retries"`        // 最大重试次数
}

// Load 从文件加载配置
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	// 设置默认值
	applyDefaults(&config)

	// 验证配置
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// applyDefaults 填充缺省配置
func applyDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "127.0.0.1"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8000
	}
	if config.Live2D.BaseURL == "" {
		config.Live2D.BaseURL = "http://127.0.0.1:8000"
	}
	if config.Live2D.ModelDict == "" {
		config.Live2D.ModelDict = "model_dict.json"
	}
	if config.Live2D.ExpressionDelay <= 0 {
		config.Live2D.ExpressionDelay = 3
	}
	if config.ASR.Provider == "" {
		config.ASR.Provider = "funasr"
	}
	if config.ASR.SampleRate <= 0 {
		config.ASR.SampleRate = 16000
	}
	if config.ASR.Language == "" {
		config.ASR.Language = "auto"
	}
	if config.ASR.Whisper.Model == "" {
		config.ASR.Whisper.Model = "whisper-1"
	}
	if config.WebSocket.ReadBufferSize == 0 {
		config.WebSocket.ReadBufferSize = 1024
	}
	if config.WebSocket.WriteBufferSize == 0 {
		config.WebSocket.WriteBufferSize = 1024
	}
	if config.WebSocket.PingPeriod == 0 {
		config.WebSocket.PingPeriod = Duration(30 * time.Second)
	}
	if config.WebSocket.PongWait == 0 {
		config.WebSocket.PongWait = Duration(60 * time.Second)
	}
	if config.WebSocket.ReconnectInterval == 0 {
		config.WebSocket.ReconnectInterval = Duration(5 * time.Second)
	}
	if config.WebSocket.MaxRetries == 0 {
		config.WebSocket.MaxRetries = 3
	}
}

// validateConfig 验证配置是否有效
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 {
		return ErrInvalidServerPort
	}
	if config.Live2D.Model == "" {
		return ErrEmptyModelName
	}

	switch config.ASR.Provider {
	case "funasr":
		if config.ASR.FunASR.ServerURL == "" {
			return ErrEmptyFunASRURL
		}
	case "whisper":
		if config.ASR.Whisper.APIKey == "" {
			return ErrEmptyWhisperKey
		}
	default:
		return fmt.Errorf("不支持的识别后端: %s", config.ASR.Provider)
	}

	return nil
}
