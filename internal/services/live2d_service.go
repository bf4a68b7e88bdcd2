package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"live2d_bridge/internal/clients/ws"
	"live2d_bridge/internal/config"
	"live2d_bridge/internal/models"
	"live2d_bridge/internal/utils"
)

// Live2D桥接相关错误
var (
	// ErrModelNotFound 模型字典中没有匹配的模型。缺失模型会让整个会话失去意义，
	// 是否终止进程由组合根决定
	ErrModelNotFound = errors.New("未找到指定的Live2D模型")

	// ErrExpressionNotFound 情绪映射中没有匹配的表情关键词
	ErrExpressionNotFound = errors.New("未找到指定的表情")
)

// Live2DService Live2D前端桥接服务。
// 持有当前模型、情绪映射和表情任务队列，单个实例对应一个会话，
// 方法应由同一个调用方协程串行使用。
type Live2DService struct {
	baseURL    string
	modelDict  string
	wsConfig   config.WebSocketConfig
	httpClient *http.Client

	modelInfo *models.ModelDescriptor
	emoMap    map[string]any

	queue           *utils.TaskQueue
	expressionDelay time.Duration
}

// NewLive2DService 创建桥接服务并选择启动模型。
// 模型不存在时返回ErrModelNotFound。
func NewLive2DService(cfg *config.Config) (*Live2DService, error) {
	s := &Live2DService{
		baseURL:         strings.TrimRight(cfg.Live2D.BaseURL, "/"),
		modelDict:       cfg.Live2D.ModelDict,
		wsConfig:        cfg.WebSocket,
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		queue:           utils.NewTaskQueue(64),
		expressionDelay: time.Duration(cfg.Live2D.ExpressionDelay) * time.Second,
	}

	if _, err := s.SelectModel(cfg.Live2D.Model); err != nil {
		s.queue.Close()
		return nil, err
	}
	return s, nil
}

// SelectModel 从模型字典中按名称选择模型，
// 归一化资源地址并向前端广播set-model事件
func (s *Live2DService) SelectModel(name string) (*models.ModelDescriptor, error) {
	dict, err := s.loadModelDict()
	if err != nil {
		return nil, err
	}

	var matched *models.ModelDescriptor
	for i := range dict {
		if dict[i].Name == name {
			matched = &dict[i]
			break
		}
	}
	if matched == nil {
		log.Printf("模型字典中没有找到模型: %s", name)
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}

	// 相对地址补全为绝对地址，只补一次
	if strings.HasPrefix(matched.URL, "/") {
		matched.URL = s.baseURL + matched.URL
	}

	// 情绪关键词统一小写，查找不区分大小写
	emoMap := make(map[string]any, len(matched.EmotionMap))
	for key, value := range matched.EmotionMap {
		emoMap[strings.ToLower(key)] = value
	}

	s.modelInfo = matched
	s.emoMap = emoMap

	log.Printf("模型设置为: %s", matched.Name)
	log.Printf("模型地址: %s", matched.URL)

	s.broadcast(models.BroadcastMessage{Type: models.MessageTypeSetModel, Text: matched})
	return matched, nil
}

// loadModelDict 加载模型字典文件
func (s *Live2DService) loadModelDict() ([]models.ModelDescriptor, error) {
	data, err := os.ReadFile(s.modelDict)
	if err != nil {
		log.Printf("读取模型字典文件失败 %s: %v", s.modelDict, err)
		return nil, fmt.Errorf("读取模型字典文件失败: %v", err)
	}

	var dict []models.ModelDescriptor
	if err := json.Unmarshal(data, &dict); err != nil {
		log.Printf("解析模型字典文件失败 %s: %v", s.modelDict, err)
		return nil, fmt.Errorf("解析模型字典文件失败: %v", err)
	}
	return dict, nil
}

// ModelInfo 返回当前模型描述
func (s *Live2DService) ModelInfo() *models.ModelDescriptor {
	return s.modelInfo
}

// EmotionMapKeys 返回情绪关键词列表字符串，供提示词拼接使用，
// 形如 "[fear], [anger], [joy],"
func (s *Live2DService) EmotionMapKeys() string {
	keys := make([]string, 0, len(s.emoMap))
	for key := range s.emoMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("[%s],", key))
	}
	return strings.Join(parts, " ")
}

// SetExpression 设置Live2D模型表情，关键词不区分大小写
func (s *Live2DService) SetExpression(key string) error {
	id, ok := s.emoMap[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrExpressionNotFound, key)
	}

	log.Printf(">>>>>> 设置表情 (%v): %s", id, key)
	s.broadcast(models.BroadcastMessage{Type: models.MessageTypeExpression, Text: id})
	return nil
}

// SendExpressionsFromText 扫描文本中出现的情绪关键词，
// 逐个入队表情切换任务，由工作协程按入队顺序执行，
// 每次切换后等待delay，避免表情刷屏
func (s *Live2DService) SendExpressionsFromText(text string, delay time.Duration) {
	lower := strings.ToLower(text)
	for key := range s.emoMap {
		if !strings.Contains(lower, "["+key+"]") {
			continue
		}

		key := key
		err := s.queue.Add(utils.Task{
			Run: func() {
				if err := s.SetExpression(key); err != nil {
					log.Printf("设置表情失败: %v", err)
				}
			},
			Delay: delay,
		})
		if err != nil {
			log.Printf("表情任务入队失败: %v", err)
		}
	}
}

// ExtractExpressionIDs 返回文本中出现的情绪关键词对应的表情标识，
// 同一个关键词出现多次只计一次
func (s *Live2DService) ExtractExpressionIDs(text string) []any {
	lower := strings.ToLower(text)
	var ids []any
	for key, id := range s.emoMap {
		if strings.Contains(lower, "["+key+"]") {
			ids = append(ids, id)
		}
	}
	return ids
}

// StripExpressionMarkers 移除文本中所有情绪关键词标记，
// 不区分大小写，重复出现的标记全部移除，其余内容保持原样。
// 小写副本和原文的字节长度可能不同（如İ、K等字符），
// 匹配位置必须经过偏移映射换算回原文
func (s *Live2DService) StripExpressionMarkers(text string) string {
	for key := range s.emoMap {
		marker := "[" + key + "]"
		for {
			lower, offsets := lowerWithOffsets(text)
			index := strings.Index(lower, marker)
			if index < 0 {
				break
			}
			text = text[:offsets[index]] + text[offsets[index+len(marker)]:]
		}
	}
	return text
}

// lowerWithOffsets 返回文本的小写副本，以及小写副本每个字节位置
// 对应的原文字节位置，末尾额外一项指向原文结尾
func lowerWithOffsets(text string) (string, []int) {
	var builder strings.Builder
	builder.Grow(len(text))
	offsets := make([]int, 0, len(text)+1)

	for index, r := range text {
		lowered := unicode.ToLower(r)
		for i := 0; i < utf8.RuneLen(lowered); i++ {
			offsets = append(offsets, index)
		}
		builder.WriteRune(lowered)
	}
	offsets = append(offsets, len(text))
	return builder.String(), offsets
}

// ExpressionDelay 返回配置的表情切换间隔
func (s *Live2DService) ExpressionDelay() time.Duration {
	return s.expressionDelay
}

// StartSpeaking 通知前端开始说话
func (s *Live2DService) StartSpeaking() {
	s.broadcast(models.BroadcastMessage{Type: models.MessageTypeControl, Text: models.ControlSpeakingStart})
}

// StopSpeaking 通知前端停止说话
func (s *Live2DService) StopSpeaking() {
	s.broadcast(models.BroadcastMessage{Type: models.MessageTypeControl, Text: models.ControlSpeakingStop})
}

// SendText 向前端发送完整字幕文本
func (s *Live2DService) SendText(text string) {
	s.broadcast(models.BroadcastMessage{Type: models.MessageTypeFullText, Text: text})
}

// broadcast 向前端广播事件。
// 广播是尽力而为的投递：响应状态只用于记录日志，失败不上抛
func (s *Live2DService) broadcast(message models.BroadcastMessage) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("序列化广播事件失败: %v", err)
		return
	}

	body, err := json.Marshal(models.BroadcastEnvelope{Message: string(payload)})
	if err != nil {
		log.Printf("序列化广播请求失败: %v", err)
		return
	}

	resp, err := s.httpClient.Post(s.baseURL+"/broadcast", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("发送广播请求失败: %v", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("广播请求返回异常状态: %d", resp.StatusCode)
	}
}

// CaptureMicAudio 从前端采集麦克风音频。
// 阻塞直到收到mic-audio-end或连接关闭，返回本次会话累积的全部采样。
// 采样缓冲归当前会话所有，调用返回后即为新会话做好准备。
func (s *Live2DService) CaptureMicAudio() ([]float32, error) {
	wsURL, err := micCaptureURL(s.baseURL)
	if err != nil {
		return nil, err
	}

	client := ws.NewClient(ws.Config{
		URL:               wsURL,
		HeartbeatInterval: time.Duration(s.wsConfig.PingPeriod),
		// 采集会话断开即结束，不重连
		MaxRetries: 0,
	})

	// 缓冲只在接收协程中写入，会话结束后才交还给调用方
	var samples []float32

	client.RegisterHandler(models.MessageTypeMicAudio, func(message []byte) error {
		var msg models.MicAudioMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return fmt.Errorf("解析音频消息失败: %v", err)
		}
		chunk, err := utils.DecodeSampleChunk(msg.Audio)
		if err != nil {
			return err
		}
		samples = append(samples, chunk...)
		return nil
	})
	client.RegisterHandler(models.MessageTypeMicAudioEnd, func(message []byte) error {
		log.Printf("前端音频数据接收完毕")
		return client.Close()
	})

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("连接音频采集端点失败: %v", err)
	}

	log.Printf("开始等待前端音频数据...")
	<-client.Done()

	log.Printf("本次采集共收到 %d 个采样", len(samples))
	return samples, nil
}

// Close 关闭桥接服务，等待排队中的表情任务执行完毕
func (s *Live2DService) Close() {
	s.queue.Close()
}

// micCaptureURL 由前端基础URL推导音频采集WebSocket地址
func micCaptureURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("解析前端地址失败: %v", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/server-ws"
	return u.String(), nil
}
