package funasr

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newFakeServer 启动一个脚本化的FunASR模拟服务
func newFakeServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestTranscribe(t *testing.T) {
	var gotStart startFrame
	var audioBytes int

	url := newFakeServer(t, func(conn *websocket.Conn) {
		require.NoError(t, conn.ReadJSON(&gotStart))

		// 读取音频帧直到结束帧
		for {
			messageType, message, err := conn.ReadMessage()
			require.NoError(t, err)
			if messageType == websocket.BinaryMessage {
				audioBytes += len(message)
				continue
			}
			break
		}

		require.NoError(t, conn.WriteJSON(resultFrame{
			Mode:    "offline",
			WavName: "live2d_bridge",
			Text:    "<|zh|><|NEUTRAL|>欢迎",
			IsFinal: true,
		}))
	})

	client := NewClient(Config{
		ServerURL:  url,
		SampleRate: 16000,
		Language:   "zh",
		UseITN:     true,
		Timeout:    5 * time.Second,
	})

	samples := make([]float32, 4000)
	text, err := client.Transcribe(samples)
	require.NoError(t, err)

	// 原始文本原样返回，标签清理在上层适配器完成
	assert.Equal(t, "<|zh|><|NEUTRAL|>欢迎", text)
	assert.Equal(t, len(samples)*2, audioBytes)

	assert.Equal(t, "offline", gotStart.Mode)
	assert.Equal(t, "pcm", gotStart.WavFormat)
	assert.Equal(t, 16000, gotStart.AudioFs)
	assert.True(t, gotStart.IsSpeaking)
	assert.True(t, gotStart.ITN)
	assert.Equal(t, "zh", gotStart.SvsLang)
}

func TestTranscribeServerError(t *testing.T) {
	url := newFakeServer(t, func(conn *websocket.Conn) {
		var start startFrame
		require.NoError(t, conn.ReadJSON(&start))
		for {
			messageType, _, err := conn.ReadMessage()
			require.NoError(t, err)
			if messageType != websocket.BinaryMessage {
				break
			}
		}
		require.NoError(t, conn.WriteJSON(resultFrame{Message: "模型加载失败"}))
	})

	client := NewClient(Config{ServerURL: url, Timeout: 5 * time.Second})
	_, err := client.Transcribe([]float32{0.1, 0.2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "模型加载失败")
}

func TestTranscribeDialFailure(t *testing.T) {
	client := NewClient(Config{ServerURL: "ws://127.0.0.1:1", Timeout: time.Second})
	_, err := client.Transcribe([]float32{0})
	assert.Error(t, err)
}
