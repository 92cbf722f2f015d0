package summarize

import "time"

// ChatRequest is an OpenAI-compatible chat completion request
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// ChatMessage is one turn in a chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is an OpenAI-compatible chat completion response
type ChatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *APIError `json:"error,omitempty"`
}

// APIError is the error envelope returned by the LLM API
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// TaskItem is one action item returned by task extraction
type TaskItem struct {
	Description   string     `json:"description"`
	SpeakerNumber *int       `json:"speaker_number,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	Priority      string     `json:"priority,omitempty"`
	SourceQuote   string     `json:"source_quote,omitempty"`
}
