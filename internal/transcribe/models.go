package transcribe

// TranscriptionRequest represents a request to the transcription server
type TranscriptionRequest struct {
	AudioPath string        `json:"audio_path"`
	Model     string        `json:"model"`
	Speakers  []SpeakerHint `json:"speakers,omitempty"`
}

// SpeakerHint tells the diarizer which participants to expect
type SpeakerHint struct {
	Number int    `json:"number"`
	Name   string `json:"name,omitempty"`
}

// TranscriptionResponse is the completed transcription result
type TranscriptionResponse struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// Segment is one diarized, timestamped portion of the audio
type Segment struct {
	Speaker int     `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// ReadyResponse reports model load state from the server
type ReadyResponse struct {
	Ready bool   `json:"ready"`
	Model string `json:"model,omitempty"`
	Error string `json:"error,omitempty"`
}
