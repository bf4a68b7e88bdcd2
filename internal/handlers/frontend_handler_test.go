package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live2d_bridge/internal/config"
	"live2d_bridge/internal/models"
)

// newStubServer 启动模拟前端服务器
func newStubServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	handler := NewFrontendHandler(config.WebSocketConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	})
	handler.RegisterRoutes(r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server.URL
}

// dialWS 建立到指定路径的WebSocket连接
func dialWS(t *testing.T, baseURL, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// postBroadcast 发送广播请求
func postBroadcast(t *testing.T, baseURL string, message models.BroadcastMessage) *http.Response {
	t.Helper()
	payload, err := json.Marshal(message)
	require.NoError(t, err)
	body, err := json.Marshal(models.BroadcastEnvelope{Message: string(payload)})
	require.NoError(t, err)

	resp, err := http.Post(baseURL+"/broadcast", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestBroadcastWithoutViewers(t *testing.T) {
	baseURL := newStubServer(t)

	resp := postBroadcast(t, baseURL, models.BroadcastMessage{
		Type: models.MessageTypeFullText,
		Text: "没有观众",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, 0, result.Clients)
}

func TestBroadcastFansOutToViewers(t *testing.T) {
	baseURL := newStubServer(t)
	viewer := dialWS(t, baseURL, "/client-ws")

	// 等待连接注册完成
	time.Sleep(50 * time.Millisecond)

	resp := postBroadcast(t, baseURL, models.BroadcastMessage{
		Type: models.MessageTypeExpression,
		Text: 3,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	viewer.SetReadDeadline(time.Now().Add(2 * time.Second))
	var message models.BroadcastMessage
	require.NoError(t, viewer.ReadJSON(&message))
	assert.Equal(t, models.MessageTypeExpression, message.Type)
	assert.Equal(t, float64(3), message.Text)
}

func TestBroadcastRejectsInvalidBody(t *testing.T) {
	baseURL := newStubServer(t)

	resp, err := http.Post(baseURL+"/broadcast", "application/json",
		bytes.NewReader([]byte("不是JSON")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBroadcastRejectsInvalidInnerMessage(t *testing.T) {
	baseURL := newStubServer(t)

	body, err := json.Marshal(models.BroadcastEnvelope{Message: "不是JSON事件"})
	require.NoError(t, err)
	resp, err := http.Post(baseURL+"/broadcast", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMicAudioRelay(t *testing.T) {
	baseURL := newStubServer(t)
	backend := dialWS(t, baseURL, "/server-ws")
	viewer := dialWS(t, baseURL, "/client-ws")

	time.Sleep(50 * time.Millisecond)

	// 观众发送音频数据和结束消息
	require.NoError(t, viewer.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"mic-audio","audio":[0.1,0.2]}`)))
	// 非音频消息不中继
	require.NoError(t, viewer.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"chat","text":"忽略我"}`)))
	require.NoError(t, viewer.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"mic-audio-end"}`)))

	backend.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first models.MicAudioMessage
	require.NoError(t, backend.ReadJSON(&first))
	assert.Equal(t, models.MessageTypeMicAudio, first.Type)

	var second models.MicAudioMessage
	require.NoError(t, backend.ReadJSON(&second))
	assert.Equal(t, models.MessageTypeMicAudioEnd, second.Type)
}
