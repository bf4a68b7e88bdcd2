package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTempConfig 写入临时配置文件
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, `
live2d:
  base_url: http://127.0.0.1:8000
  model: shizuku-local
asr:
  provider: funasr
  funasr:
    server_url: ws://127.0.0.1:10095
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "shizuku-local", cfg.Live2D.Model)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.Live2D.BaseURL)
	assert.Equal(t, "ws://127.0.0.1:10095", cfg.ASR.FunASR.ServerURL)

	// 默认值
	assert.Equal(t, "model_dict.json", cfg.Live2D.ModelDict)
	assert.Equal(t, 3, cfg.Live2D.ExpressionDelay)
	assert.Equal(t, 16000, cfg.ASR.SampleRate)
	assert.Equal(t, "auto", cfg.ASR.Language)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, Duration(30*time.Second), cfg.WebSocket.PingPeriod)
	assert.Equal(t, 3, cfg.WebSocket.MaxRetries)
}

func TestLoadDurationSyntax(t *testing.T) {
	path := writeTempConfig(t, `
live2d:
  model: shizuku-local
asr:
  funasr:
    server_url: ws://127.0.0.1:10095
websocket:
  ping_period: 45s
  reconnect_interval: 1m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Duration(45*time.Second), cfg.WebSocket.PingPeriod)
	assert.Equal(t, Duration(time.Minute), cfg.WebSocket.ReconnectInterval)
	// 未配置的时间项仍取默认值
	assert.Equal(t, Duration(60*time.Second), cfg.WebSocket.PongWait)
}

func TestLoadInvalidDuration(t *testing.T) {
	path := writeTempConfig(t, `
live2d:
  model: shizuku-local
asr:
  funasr:
    server_url: ws://127.0.0.1:10095
websocket:
  ping_period: 三十秒
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "不存在.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeTempConfig(t, "live2d: [不是映射")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingModelName(t *testing.T) {
	path := writeTempConfig(t, `
asr:
  funasr:
    server_url: ws://127.0.0.1:10095
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyModelName)
}

func TestLoadWhisperProviderNeedsKey(t *testing.T) {
	path := writeTempConfig(t, `
live2d:
  model: shizuku-local
asr:
  provider: whisper
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyWhisperKey)
}

func TestLoadUnknownProvider(t *testing.T) {
	path := writeTempConfig(t, `
live2d:
  model: shizuku-local
asr:
  provider: vosk
`)
	_, err := Load(path)
	assert.Error(t, err)
}
