package config

import "errors"

// 配置相关错误
var (
	ErrInvalidServerPort = errors.New("服务器端口必须大于0")
	ErrEmptyModelName    = errors.New("Live2D模型名称不能为空")
	ErrEmptyFunASRURL    = errors.New("FunASR服务地址不能为空")
	ErrEmptyWhisperKey   = errors.New("Whisper API密钥不能为空")
)
