package utils

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"live2d_bridge/internal/models"
)

// PCAPReader 从抓包文件中提取录制的麦克风音频会话，用于离线回放调试
type PCAPReader struct {
	filename string
}

// NewPCAPReader 创建新的PCAP读取器
func NewPCAPReader(filename string) (*PCAPReader, error) {
	handle, err := pcap.OpenOffline(filename)
	if err != nil {
		return nil, fmt.Errorf("打开PCAP文件失败: %v", err)
	}
	handle.Close()

	return &PCAPReader{filename: filename}, nil
}

// ReadMicAudioSamples 提取抓包中所有mic-audio消息的采样数据，
// 按抓包顺序拼接，遇到mic-audio-end结束
func (r *PCAPReader) ReadMicAudioSamples() ([]float32, error) {
	frames, err := r.readTextFrames()
	if err != nil {
		return nil, err
	}

	var samples []float32
	for _, frame := range frames {
		var msg models.MicAudioMessage
		if err := json.Unmarshal(frame, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case models.MessageTypeMicAudio:
			chunk, err := DecodeSampleChunk(msg.Audio)
			if err != nil {
				return nil, fmt.Errorf("解码音频帧失败: %v", err)
			}
			samples = append(samples, chunk...)
		case models.MessageTypeMicAudioEnd:
			return samples, nil
		}
	}

	return samples, nil
}

// readTextFrames 从TCP负载中扫描WebSocket文本帧
func (r *PCAPReader) readTextFrames() ([][]byte, error) {
	handle, err := pcap.OpenOffline(r.filename)
	if err != nil {
		return nil, fmt.Errorf("打开PCAP文件失败: %v", err)
	}
	defer handle.Close()

	var frames [][]byte
	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())

	for packet := range packetSource.Packets() {
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil {
			continue
		}
		tcp, ok := tcpLayer.(*layers.TCP)
		if !ok || len(tcp.Payload) == 0 {
			continue
		}
		frames = append(frames, scanTextFrames(tcp.Payload)...)
	}

	return frames, nil
}

// scanTextFrames 在一段字节流中查找WebSocket文本帧并解码负载
func scanTextFrames(data []byte) [][]byte {
	var frames [][]byte

	for i := 0; i+2 <= len(data); i++ {
		// FIN位为1、RSV位为0、opcode为文本帧
		if data[i]&0x80 == 0 || data[i]&0x70 != 0 || data[i]&0x0F != 0x1 {
			continue
		}

		payloadLen := int(data[i+1] & 0x7F)
		headerLen := 2

		// 扩展长度
		if payloadLen == 126 {
			if len(data) < i+4 {
				continue
			}
			payloadLen = int(data[i+2])<<8 | int(data[i+3])
			headerLen += 2
		} else if payloadLen == 127 {
			if len(data) < i+10 {
				continue
			}
			payloadLen = 0
			for j := 0; j < 8; j++ {
				payloadLen = payloadLen<<8 | int(data[i+2+j])
			}
			headerLen += 8
		}

		if payloadLen <= 0 || payloadLen > 1<<24 {
			continue
		}

		masked := data[i+1]&0x80 != 0
		if masked {
			headerLen += 4
		}
		if len(data) < i+headerLen+payloadLen {
			continue
		}

		frame := make([]byte, payloadLen)
		copy(frame, data[i+headerLen:i+headerLen+payloadLen])

		// 客户端到服务器的帧带掩码
		if masked {
			maskKey := data[i+headerLen-4 : i+headerLen]
			for j := range frame {
				frame[j] ^= maskKey[j%4]
			}
		}

		if !utf8.Valid(frame) {
			continue
		}

		frames = append(frames, frame)
		i += headerLen + payloadLen - 1
	}

	return frames
}
