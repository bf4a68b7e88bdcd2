package funasr

// startFrame 识别会话起始帧，携带模式与音频参数
type startFrame struct {
	Mode          string `json:"mode"`
	ChunkSize     []int  `json:"chunk_size"`
	ChunkInterval int    `json:"chunk_interval"`
	WavName       string `json:"wav_name"`
	WavFormat     string `json:"wav_format"`
	AudioFs       int    `json:"audio_fs"`
	IsSpeaking    bool   `json:"is_speaking"`
	ITN           bool   `json:"itn"`
	SvsLang       string `json:"svs_lang,omitempty"`
}

// endFrame 识别会话结束帧
type endFrame struct {
	IsSpeaking bool `json:"is_speaking"`
}

// resultFrame 服务端返回的识别结果
type resultFrame struct {
	Mode    string `json:"mode"`
	WavName string `json:"wav_name"`
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
	Message string `json:"message,omitempty"`
}
