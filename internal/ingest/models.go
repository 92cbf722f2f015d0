package ingest

import "time"

// EnqueueRequest asks the worker to process one recording
type EnqueueRequest struct {
	RecordingID string    `json:"recording_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// CompletionEvent announces a recording reaching a terminal state
type CompletionEvent struct {
	RecordingID string    `json:"recording_id"`
	Status      string    `json:"status"`
	OccurredAt  time.Time `json:"occurred_at"`
}
