package pipeline

import (
	"context"

	"recap/internal/transcribe"
	"recap/pkg/model"
)

// RecordingStore is the persistence contract the pipeline drives.
// Fetch methods return (nil, nil) when the row does not exist.
type RecordingStore interface {
	FetchRecording(ctx context.Context, id string) (*model.Recording, error)
	UpdateStatus(ctx context.Context, id string, status model.RecordingStatus, errorMessage *string) error
	IncrementRetryCount(ctx context.Context, id string) error
	ResetRetryCount(ctx context.Context, id string) error
	FetchPendingRecordings(ctx context.Context) ([]*model.Recording, error)
	FetchTranscript(ctx context.Context, recordingID string) (*model.Transcript, error)
	CreateTranscript(ctx context.Context, transcript *model.Transcript) error
	FetchSummary(ctx context.Context, recordingID string) (*model.Summary, error)
	CreateSummary(ctx context.Context, summary *model.Summary) error
	CreateTask(ctx context.Context, task *model.ExtractedTask) error
	FetchRecordingType(ctx context.Context, id string) (*model.RecordingType, error)
	FetchSpeakers(ctx context.Context, recordingID string) ([]*model.Speaker, error)
	SaveTranscriptEmbedding(ctx context.Context, recordingID string, embedding []float32) error
	SaveSummaryEmbedding(ctx context.Context, recordingID string, embedding []float32) error
}

// Transcriber converts audio into text with speaker segments
type Transcriber interface {
	EnsureReady(ctx context.Context) error
	Transcribe(ctx context.Context, audioPath string, speakers []*model.Speaker) (*transcribe.TranscriptionResponse, error)
}

// Summarizer produces summaries and extracts action items from transcripts
type Summarizer interface {
	Summarize(ctx context.Context, transcript string, recordingType *model.RecordingType, userContext *string) (string, error)
	ExtractTasks(ctx context.Context, transcript string, speakerContacts map[int]string) ([]*model.ExtractedTask, error)
}

// Embedder generates embedding vectors for text
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// AudioFetcher resolves a recording's file path to a local audio file.
// The returned cleanup releases any temp file.
type AudioFetcher interface {
	Fetch(ctx context.Context, filePath string) (string, func(), error)
}

// Runner is the unit of work the queue hands each job to
type Runner interface {
	Process(ctx context.Context, recordingID string) error
}
