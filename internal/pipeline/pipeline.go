package pipeline

import (
	"context"
	"fmt"
	"time"

	"recap/pkg/cache"
	"recap/pkg/logger"
	"recap/pkg/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const activeMarkerTTL = 2 * time.Hour

// Pipeline drives one recording through transcription, summarization with
// task extraction, and embedding generation. Every stage checks the store
// for existing output first, so an interrupted job resumes where it left
// off instead of redoing completed work.
type Pipeline struct {
	store       RecordingStore
	transcriber Transcriber
	summarizer  Summarizer
	embedder    Embedder
	audio       AudioFetcher
	cache       cache.Cache
}

// NewPipeline creates a stage pipeline. audio and c are optional; a nil
// audio fetcher uses file paths as-is and a nil cache disables markers.
func NewPipeline(
	store RecordingStore,
	transcriber Transcriber,
	summarizer Summarizer,
	embedder Embedder,
	audio AudioFetcher,
	c cache.Cache,
) *Pipeline {
	return &Pipeline{
		store:       store,
		transcriber: transcriber,
		summarizer:  summarizer,
		embedder:    embedder,
		audio:       audio,
		cache:       c,
	}
}

// Process runs the recording through all stages. Any error aborts the job
// and bubbles up to the queue's failure handler untouched.
func (p *Pipeline) Process(ctx context.Context, recordingID string) error {
	rec, err := p.store.FetchRecording(ctx, recordingID)
	if err != nil {
		return fmt.Errorf("failed to fetch recording: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrRecordingNotFound, recordingID)
	}

	p.markActive(ctx, rec.ID)
	defer p.clearActive(rec.ID)

	transcript, err := p.runTranscription(ctx, rec)
	if err != nil {
		return err
	}

	summary, err := p.runSummarization(ctx, rec, transcript)
	if err != nil {
		return err
	}

	if err := p.runEmbedding(ctx, rec, transcript, summary); err != nil {
		return err
	}

	if err := p.store.UpdateStatus(ctx, rec.ID, model.RecordingStatusComplete, nil); err != nil {
		return fmt.Errorf("failed to mark recording complete: %w", err)
	}

	logger.Info("Recording processing complete", zap.String("recording_id", rec.ID))

	return nil
}

// Stage 1: transcription, skipped when a transcript already exists
func (p *Pipeline) runTranscription(ctx context.Context, rec *model.Recording) (*model.Transcript, error) {
	transcript, err := p.store.FetchTranscript(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transcript: %w", err)
	}

	decision := transcriptionDecision(transcript)
	if decision.Action == StageSkip {
		logger.Info("Transcript exists, skipping transcription",
			zap.String("recording_id", rec.ID))
		return transcript, nil
	}

	if err := p.store.UpdateStatus(ctx, rec.ID, model.RecordingStatusTranscribing, nil); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	if err := p.transcriber.EnsureReady(ctx); err != nil {
		return nil, fmt.Errorf("transcription provider not ready: %w", err)
	}

	speakers, err := p.store.FetchSpeakers(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch speakers: %w", err)
	}

	audioPath, cleanup, err := p.resolveAudio(ctx, rec.FilePath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	result, err := p.transcriber.Transcribe(ctx, audioPath, speakers)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	segments := make(model.SegmentList, 0, len(result.Segments))
	for _, seg := range result.Segments {
		segments = append(segments, model.TranscriptSegment{
			SpeakerNumber: seg.Speaker,
			StartSeconds:  seg.Start,
			EndSeconds:    seg.End,
			Text:          seg.Text,
		})
	}

	transcript = &model.Transcript{
		ID:          uuid.New().String(),
		RecordingID: rec.ID,
		FullText:    result.Text,
		Segments:    segments,
		CreatedAt:   time.Now(),
	}

	if err := p.store.CreateTranscript(ctx, transcript); err != nil {
		return nil, fmt.Errorf("failed to save transcript: %w", err)
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, cache.TranscriptKey(rec.ID), transcript.FullText); err != nil {
			logger.Warn("Failed to cache transcript", zap.Error(err))
		}
	}

	logger.Info("Transcript created",
		zap.String("recording_id", rec.ID),
		zap.Int("segments", len(segments)))

	return transcript, nil
}

// Stage 2: summarization plus task extraction. Extraction always runs, even
// on resume with an existing summary; the store does not deduplicate tasks.
func (p *Pipeline) runSummarization(ctx context.Context, rec *model.Recording, transcript *model.Transcript) (*model.Summary, error) {
	if err := p.store.UpdateStatus(ctx, rec.ID, model.RecordingStatusSummarizing, nil); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	recordingType, err := p.resolveRecordingType(ctx, rec)
	if err != nil {
		return nil, err
	}

	decision := summarizationDecision(transcript, recordingType)
	if decision.Action == StageFail {
		return nil, decision.Err
	}

	summary, err := p.store.FetchSummary(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch summary: %w", err)
	}

	if summary == nil {
		text, err := p.summarizer.Summarize(ctx, transcript.FullText, recordingType, rec.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to generate summary: %w", err)
		}

		summary = &model.Summary{
			ID:             uuid.New().String(),
			RecordingID:    rec.ID,
			Text:           text,
			PromptTemplate: recordingType.PromptTemplate,
			CreatedAt:      time.Now(),
		}

		if err := p.store.CreateSummary(ctx, summary); err != nil {
			return nil, fmt.Errorf("failed to save summary: %w", err)
		}
	} else {
		logger.Info("Summary exists, skipping summarization",
			zap.String("recording_id", rec.ID))
	}

	if err := p.extractTasks(ctx, rec, transcript); err != nil {
		return nil, err
	}

	return summary, nil
}

func (p *Pipeline) extractTasks(ctx context.Context, rec *model.Recording, transcript *model.Transcript) error {
	speakers, err := p.store.FetchSpeakers(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch speakers: %w", err)
	}

	speakerContacts := make(map[int]string)
	for _, sp := range speakers {
		if sp.ContactID != nil {
			speakerContacts[sp.SpeakerNumber] = *sp.ContactID
		}
	}

	tasks, err := p.summarizer.ExtractTasks(ctx, transcript.FullText, speakerContacts)
	if err != nil {
		return fmt.Errorf("failed to extract tasks: %w", err)
	}

	// Saves are not transactional: a failure aborts the remaining saves but
	// keeps the tasks already written.
	for _, task := range tasks {
		task.ID = uuid.New().String()
		task.RecordingID = rec.ID
		task.CreatedAt = time.Now()

		if err := p.store.CreateTask(ctx, task); err != nil {
			return fmt.Errorf("failed to save task %q: %w", task.Description, err)
		}
	}

	logger.Info("Tasks saved",
		zap.String("recording_id", rec.ID),
		zap.Int("count", len(tasks)))

	return nil
}

// Stage 3: embed transcript and summary text concurrently. Both calls must
// succeed before either vector is persisted.
func (p *Pipeline) runEmbedding(ctx context.Context, rec *model.Recording, transcript *model.Transcript, summary *model.Summary) error {
	decision := embeddingDecision(transcript, summary)
	if decision.Action == StageFail {
		return decision.Err
	}

	type embedResult struct {
		vector []float32
		err    error
	}

	transcriptCh := make(chan embedResult, 1)
	summaryCh := make(chan embedResult, 1)

	go func() {
		vec, err := p.embedder.Embed(ctx, transcript.FullText)
		transcriptCh <- embedResult{vector: vec, err: err}
	}()
	go func() {
		vec, err := p.embedder.Embed(ctx, summary.Text)
		summaryCh <- embedResult{vector: vec, err: err}
	}()

	transcriptRes := <-transcriptCh
	summaryRes := <-summaryCh

	if transcriptRes.err != nil {
		return fmt.Errorf("transcript embedding failed: %w", transcriptRes.err)
	}
	if summaryRes.err != nil {
		return fmt.Errorf("summary embedding failed: %w", summaryRes.err)
	}

	if err := p.store.SaveTranscriptEmbedding(ctx, rec.ID, transcriptRes.vector); err != nil {
		return fmt.Errorf("failed to save transcript embedding: %w", err)
	}
	if err := p.store.SaveSummaryEmbedding(ctx, rec.ID, summaryRes.vector); err != nil {
		return fmt.Errorf("failed to save summary embedding: %w", err)
	}

	logger.Info("Embeddings saved", zap.String("recording_id", rec.ID))

	return nil
}

func (p *Pipeline) resolveRecordingType(ctx context.Context, rec *model.Recording) (*model.RecordingType, error) {
	if rec.RecordingTypeID == nil {
		return nil, nil
	}

	recordingType, err := p.store.FetchRecordingType(ctx, *rec.RecordingTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recording type: %w", err)
	}

	return recordingType, nil
}

func (p *Pipeline) resolveAudio(ctx context.Context, filePath string) (string, func(), error) {
	if p.audio == nil {
		return filePath, func() {}, nil
	}

	path, cleanup, err := p.audio.Fetch(ctx, filePath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve audio: %w", err)
	}

	return path, cleanup, nil
}

func (p *Pipeline) markActive(ctx context.Context, recordingID string) {
	if p.cache == nil {
		return
	}
	if err := p.cache.SetWithTTL(ctx, cache.ActiveRecordingKey(recordingID), true, activeMarkerTTL); err != nil {
		logger.Warn("Failed to mark recording active", zap.Error(err))
	}
}

func (p *Pipeline) clearActive(recordingID string) {
	if p.cache == nil {
		return
	}
	// Best effort with a fresh context so shutdown cancellation does not
	// leave the marker behind.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.cache.Delete(ctx, cache.ActiveRecordingKey(recordingID)); err != nil {
		logger.Warn("Failed to clear active marker", zap.Error(err))
	}
}
