package protocol

// Inbound message types (client -> server).
const (
	TypeStartTranscription = "start_transcription"
	TypeStopTranscription  = "stop_transcription"
	TypeTextInput          = "text_input"
	TypeCodeInput          = "code_input"
	TypeCodeKeystroke      = "code_keystroke"
	TypePlaybackFinished   = "audio_playback_finished"
	TypeStageChange        = "stage_change"
	TypeSetResumePath      = "set_resume_path"
)

// Outbound message types (server -> client).
const (
	TypeConnected            = "connected"
	TypeProcessing           = "processing"
	TypeProcessingFinished   = "processing_finished"
	TypeStageChanged         = "stage_changed"
	TypeAgentResponse        = "agent_response"
	TypeCodingStarted        = "coding_started"
	TypeScoringResult        = "scoring_result"
	TypeRecommendationResult = "recommendation_result"
	TypeGeneratingAudio      = "generating_audio"
	TypeAudioResponse        = "audio_response"
	TypePlaybackStarted      = "audio_playback_started"
	TypeMicrophoneEnabled    = "microphone_enabled"
	TypeServerError          = "server_error"
	TypeFinalTranscript      = "final_transcript"
	TypePartialTranscript    = "partial_transcript"
)

// Message is the single JSON frame format shared by both directions.
// Fields are optional depending on Type; binary audio from the client
// travels as raw WebSocket binary frames, not as Messages.
type Message struct {
	Type          string `json:"type"`
	SessionID     string `json:"sessionId,omitempty"`
	Text          string `json:"text,omitempty"`
	Code          string `json:"code,omitempty"`
	Language      string `json:"language,omitempty"`
	Explanation   string `json:"explanation,omitempty"`
	Stage         string `json:"stage,omitempty"`
	PreviousStage string `json:"previousStage,omitempty"`
	NewStage      string `json:"newStage,omitempty"`
	Path          string `json:"path,omitempty"`
	Message       string `json:"message,omitempty"`
	StarterCode   string `json:"starterCode,omitempty"`
	Audio         []byte `json:"audio,omitempty"`
}

// Sender delivers outbound messages to one connected client. Implementations
// must be safe for concurrent use; timers and invocation goroutines send from
// outside the connection's read loop.
type Sender interface {
	Send(msg Message) error
}
