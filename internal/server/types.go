package server

// AuthRequest exchanges the shared secret for an API token.
type AuthRequest struct {
	Secret string `json:"secret"`
}

// AuthResponse carries an issued API token.
type AuthResponse struct {
	Token string `json:"token"`
}

// CreateJobRequest submits a media file for transcription.
type CreateJobRequest struct {
	SourcePath  string `json:"source_path"`
	AudioOutput string `json:"audio_output,omitempty"`
	Force       bool   `json:"force,omitempty"`
	KeepAudio   bool   `json:"keep_audio,omitempty"`
	KeepChunks  bool   `json:"keep_chunks,omitempty"`
	Diarize     bool   `json:"diarize,omitempty"`
	TargetLang  string `json:"target_lang,omitempty"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
