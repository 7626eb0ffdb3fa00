package transcriber

const (
	eventTranscript = "transcript"
	eventError      = "error"
	eventTerminate  = "terminate"
)

type configMessage struct {
	APIKey            string `json:"x_api_key"`
	Encoding          string `json:"encoding"`
	SampleRate        int    `json:"sample_rate"`
	LanguageBehaviour string `json:"language_behaviour"`
	Language          string `json:"language"`
	FramesFormat      string `json:"frames_format"`
	ModelType         string `json:"model_type"`
	AudioEnhancer     bool   `json:"audio_enhancer"`
	Endpointing       int64  `json:"endpointing"`
	TranscriptionHint string `json:"transcription_hint"`
}

type controlMessage struct {
	Event string `json:"event"`
}

type inboundMessage struct {
	Event         string  `json:"event"`
	Transcription *string `json:"transcription"`
	Message       string  `json:"message"`
}
