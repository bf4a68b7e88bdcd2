package utils

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Float32ToPCM16Bytes 将float32采样转换为小端PCM16字节流
func Float32ToPCM16Bytes(samples []float32) []byte {
	data := make([]byte, len(samples)*2)
	for i, sample := range samples {
		// 限幅防止溢出
		if sample > 1.0 {
			sample = 1.0
		} else if sample < -1.0 {
			sample = -1.0
		}
		value := int16(sample * math.MaxInt16)
		binary.LittleEndian.PutUint16(data[i*2:], uint16(value))
	}
	return data
}

// Float32ToWAV 将float32采样编码为单声道PCM16 WAV文件内容
func Float32ToWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("无效的采样率: %d", sampleRate)
	}

	pcm := Float32ToPCM16Bytes(samples)

	var buf bytes.Buffer
	dataLen := uint32(len(pcm))

	// RIFF头
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	// fmt块: PCM、单声道
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	// data块
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// DecodeSampleChunk 解码一段音频采样。
// 优先按有序JSON数组解析；兼容旧版前端发送的下标到采样值的对象，
// 按下标数值排序还原采样顺序。
func DecodeSampleChunk(raw json.RawMessage) ([]float32, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var asArray []float32
	if err := json.Unmarshal(raw, &asArray); err == nil {
		return asArray, nil
	}

	var asObject map[string]float32
	if err := json.Unmarshal(raw, &asObject); err != nil {
		return nil, fmt.Errorf("解析音频数据失败: %v", err)
	}

	indexes := make([]int, 0, len(asObject))
	values := make(map[int]float32, len(asObject))
	for key, value := range asObject {
		index, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("音频数据下标无效: %s", key)
		}
		indexes = append(indexes, index)
		values[index] = value
	}
	sort.Ints(indexes)

	samples := make([]float32, 0, len(indexes))
	for _, index := range indexes {
		samples = append(samples, values[index])
	}
	return samples, nil
}
