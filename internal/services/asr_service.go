// Package services 实现语音识别适配与Live2D前端桥接
package services

import (
	"fmt"
	"regexp"
	"strings"

	"live2d_bridge/internal/config"
	"live2d_bridge/internal/models"
)

// SenseVoice系列模型会在输出中夹带标签，
// 例如 '<|zh|><|NEUTRAL|><|Speech|><|woitn|>欢迎'，
// 也可能输出分词后的变体 '< | en | > < | EMO _ UNKNOWN | >'，需要全部清理
var defaultTagPatterns = []string{
	`<\|.*?\|>`,
	`< \|.*?\| >`,
}

// AudioSource 音频采集来源
type AudioSource interface {
	// CaptureMicAudio 阻塞采集一段麦克风音频
	CaptureMicAudio() ([]float32, error)
}

// ASRService 语音识别适配器，调用外部识别后端并清理输出文本
type ASRService struct {
	provider models.ASRProvider
	patterns []*regexp.Regexp
}

// NewASRService 创建新的ASR服务实例。
// 标签语法随模型不同而变化，除内置模式外可通过配置追加清理正则。
func NewASRService(provider models.ASRProvider, cfg config.SenseVoiceConfig) (*ASRService, error) {
	raw := make([]string, 0, len(defaultTagPatterns)+len(cfg.ExtraTagPatterns))
	raw = append(raw, defaultTagPatterns...)
	raw = append(raw, cfg.ExtraTagPatterns...)

	patterns := make([]*regexp.Regexp, 0, len(raw))
	for _, pattern := range raw {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("编译标签清理正则失败 %q: %v", pattern, err)
		}
		patterns = append(patterns, compiled)
	}

	return &ASRService{
		provider: provider,
		patterns: patterns,
	}, nil
}

// Transcribe 识别音频并返回清理后的文本，推理错误原样上抛
func (s *ASRService) Transcribe(samples []float32) (string, error) {
	text, err := s.provider.Transcribe(samples)
	if err != nil {
		return "", err
	}
	return s.cleanText(text), nil
}

// TranscribeFromSource 从音频来源采集一段音频并识别，
// 采集由来源自身的断句逻辑决定何时结束
func (s *ASRService) TranscribeFromSource(source AudioSource) (string, error) {
	samples, err := source.CaptureMicAudio()
	if err != nil {
		return "", fmt.Errorf("采集音频失败: %v", err)
	}
	return s.Transcribe(samples)
}

// cleanText 移除模型输出中的标签并修剪首尾空白
func (s *ASRService) cleanText(text string) string {
	for _, pattern := range s.patterns {
		text = pattern.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// Close 释放识别后端资源
func (s *ASRService) Close() error {
	return s.provider.Close()
}
