package utils

import (
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat32ToPCM16Bytes(t *testing.T) {
	data := Float32ToPCM16Bytes([]float32{0, 1.0, -1.0, 2.0})
	require.Len(t, data, 8)

	assert.Equal(t, int16(0), int16(binary.LittleEndian.Uint16(data[0:])))
	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(data[2:])))
	assert.Equal(t, int16(-32767), int16(binary.LittleEndian.Uint16(data[4:])))
	// 超出范围的采样被限幅
	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(data[6:])))
}

func TestFloat32ToWAV(t *testing.T) {
	samples := []float32{0.1, -0.1, 0.5}
	data, err := Float32ToWAV(samples, 16000)
	require.NoError(t, err)

	// 44字节头 + PCM数据
	require.Len(t, data, 44+len(samples)*2)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "fmt ", string(data[12:16]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, "data", string(data[36:40]))
	assert.Equal(t, uint32(len(samples)*2), binary.LittleEndian.Uint32(data[40:44]))
}

func TestFloat32ToWAVInvalidRate(t *testing.T) {
	_, err := Float32ToWAV([]float32{0}, 0)
	assert.Error(t, err)
}

func TestDecodeSampleChunkArray(t *testing.T) {
	samples, err := DecodeSampleChunk(json.RawMessage(`[0.1, 0.2, 0.3]`))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, samples)
}

func TestDecodeSampleChunkIndexedObject(t *testing.T) {
	// 旧版前端以下标对象发送，键序不保证，按下标排序还原
	samples, err := DecodeSampleChunk(json.RawMessage(`{"2": 0.3, "0": 0.1, "10": 0.5, "1": 0.2}`))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.5}, samples)
}

func TestDecodeSampleChunkInvalid(t *testing.T) {
	_, err := DecodeSampleChunk(json.RawMessage(`{"abc": 0.1}`))
	assert.Error(t, err)

	_, err = DecodeSampleChunk(json.RawMessage(`"不是音频"`))
	assert.Error(t, err)
}

func TestDecodeSampleChunkEmpty(t *testing.T) {
	samples, err := DecodeSampleChunk(nil)
	require.NoError(t, err)
	assert.Empty(t, samples)
}
