package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// RecordingStatus represents pipeline progress for a recording
type RecordingStatus string

const (
	RecordingStatusPending      RecordingStatus = "pending"
	RecordingStatusTranscribing RecordingStatus = "transcribing"
	RecordingStatusSummarizing  RecordingStatus = "summarizing"
	RecordingStatusComplete     RecordingStatus = "complete"
	RecordingStatusFailed       RecordingStatus = "failed"
)

// Recording represents one captured audio session
type Recording struct {
	ID              string          `json:"id" db:"id"`
	Status          RecordingStatus `json:"status" db:"status"`
	FilePath        string          `json:"file_path" db:"file_path"`
	RetryCount      int             `json:"retry_count" db:"retry_count"`
	ErrorMessage    *string         `json:"error_message,omitempty" db:"error_message"`
	RecordingTypeID *string         `json:"recording_type_id,omitempty" db:"recording_type_id"`
	Context         *string         `json:"context,omitempty" db:"context"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// RecordingType is the prompt-template configuration used for summarization
type RecordingType struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	PromptTemplate string    `json:"prompt_template" db:"prompt_template"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Speaker represents one expected participant of a recording
type Speaker struct {
	ID            string  `json:"id" db:"id"`
	RecordingID   string  `json:"recording_id" db:"recording_id"`
	SpeakerNumber int     `json:"speaker_number" db:"speaker_number"`
	Name          string  `json:"name" db:"name"`
	ContactID     *string `json:"contact_id,omitempty" db:"contact_id"`
}

// TranscriptSegment is one timestamped speaker turn
type TranscriptSegment struct {
	SpeakerNumber int     `json:"speaker_number"`
	StartSeconds  float64 `json:"start_seconds"`
	EndSeconds    float64 `json:"end_seconds"`
	Text          string  `json:"text"`
}

// SegmentList is a JSONB column of transcript segments
type SegmentList []TranscriptSegment

// Value implements the driver.Valuer interface
func (s SegmentList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface
func (s *SegmentList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, s)
}

// Transcript is the transcription output for a recording, created once
type Transcript struct {
	ID          string      `json:"id" db:"id"`
	RecordingID string      `json:"recording_id" db:"recording_id"`
	FullText    string      `json:"full_text" db:"full_text"`
	Segments    SegmentList `json:"segments" db:"segments"`
	Embedding   []float32   `json:"embedding,omitempty" db:"embedding"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// Summary is the summarization output for a recording, created once
type Summary struct {
	ID             string    `json:"id" db:"id"`
	RecordingID    string    `json:"recording_id" db:"recording_id"`
	Text           string    `json:"text" db:"text"`
	PromptTemplate string    `json:"prompt_template" db:"prompt_template"`
	Embedding      []float32 `json:"embedding,omitempty" db:"embedding"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ExtractedTask is one action item pulled out of a transcript
type ExtractedTask struct {
	ID          string     `json:"id" db:"id"`
	RecordingID string     `json:"recording_id" db:"recording_id"`
	Description string     `json:"description" db:"description"`
	ContactID   *string    `json:"contact_id,omitempty" db:"contact_id"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	Priority    string     `json:"priority" db:"priority"`
	SourceQuote string     `json:"source_quote" db:"source_quote"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// IsTerminal returns true if the recording is in a final state
func (r *Recording) IsTerminal() bool {
	return r.Status == RecordingStatusComplete || r.Status == RecordingStatusFailed
}

// SetFailed sets the recording status to failed with error message
func (r *Recording) SetFailed(errorMessage string) {
	r.Status = RecordingStatusFailed
	r.ErrorMessage = &errorMessage
	r.UpdatedAt = time.Now()
}

// SetComplete sets the recording status to complete and clears the error
func (r *Recording) SetComplete() {
	r.Status = RecordingStatusComplete
	r.ErrorMessage = nil
	r.UpdatedAt = time.Now()
}

// ResetForRetry returns a failed recording to pending for manual retry
func (r *Recording) ResetForRetry() {
	r.Status = RecordingStatusPending
	r.ErrorMessage = nil
	r.RetryCount = 0
	r.UpdatedAt = time.Now()
}

// IncrementRetryCount increases the persisted attempt counter
func (r *Recording) IncrementRetryCount() {
	r.RetryCount++
	r.UpdatedAt = time.Now()
}
