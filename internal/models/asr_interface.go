package models

// ASRProvider 语音识别后端接口
type ASRProvider interface {
	// Transcribe 识别单声道float32 PCM采样并返回原始文本
	Transcribe(samples []float32) (string, error)

	// Close 释放后端持有的资源
	Close() error
}
