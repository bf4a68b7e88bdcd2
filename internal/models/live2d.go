// Package models 定义各服务共享的数据结构和接口
package models

import "encoding/json"

// 广播事件类型
const (
	MessageTypeSetModel   = "set-model"
	MessageTypeExpression = "expression"
	MessageTypeControl    = "control"
	MessageTypeFullText   = "full-text"
)

// 控制事件内容
const (
	ControlSpeakingStart = "speaking-start"
	ControlSpeakingStop  = "speaking-stop"
)

// 麦克风音频消息类型
const (
	MessageTypeMicAudio    = "mic-audio"
	MessageTypeMicAudioEnd = "mic-audio-end"
)

// ModelDescriptor Live2D模型描述记录
type ModelDescriptor struct {
	Name       string         `json:"name"`       // 模型名称
	URL        string         `json:"url"`        // 模型资源地址
	EmotionMap map[string]any `json:"emotionMap"` // 情绪关键词到表情标识的映射
}

// BroadcastMessage 发往前端的广播事件
type BroadcastMessage struct {
	Type string `json:"type"` // 事件类型
	Text any    `json:"text"` // 事件内容
}

// BroadcastEnvelope /broadcast 请求体，message字段为JSON编码后的事件
type BroadcastEnvelope struct {
	Message string `json:"message"`
}

// MicAudioMessage 前端发来的麦克风音频消息
type MicAudioMessage struct {
	Type  string          `json:"type"`            // mic-audio 或 mic-audio-end
	Audio json.RawMessage `json:"audio,omitempty"` // 采样数据，数组或下标到采样值的对象
}
