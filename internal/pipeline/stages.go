package pipeline

import (
	"errors"
	"fmt"

	"recap/pkg/model"
)

var (
	// ErrRecordingNotFound is returned when the queued recording id has no row
	ErrRecordingNotFound = errors.New("recording not found")

	// ErrRecordingTypeMissing is returned when summarization has no prompt
	// template to work from. Fatal for the job but consumes retry attempts
	// like any other failure; fixing the configuration and retrying manually
	// is the recovery path.
	ErrRecordingTypeMissing = errors.New("recording type not configured")

	// ErrTranscriptMissing is returned when a later stage finds no transcript
	ErrTranscriptMissing = errors.New("transcript missing")
)

// StageAction is the outcome of a stage precondition check
type StageAction int

const (
	StageRun StageAction = iota
	StageSkip
	StageFail
)

// StageDecision carries the action plus a failure reason for StageFail
type StageDecision struct {
	Action StageAction
	Err    error
}

func runStage() StageDecision  { return StageDecision{Action: StageRun} }
func skipStage() StageDecision { return StageDecision{Action: StageSkip} }
func failStage(err error) StageDecision {
	return StageDecision{Action: StageFail, Err: err}
}

// transcriptionDecision skips transcription when a transcript already exists
func transcriptionDecision(transcript *model.Transcript) StageDecision {
	if transcript != nil {
		return skipStage()
	}
	return runStage()
}

// summarizationDecision gates the summarization+extraction stage. The stage
// runs even when a summary exists, because extraction always re-runs; the
// existing summary only suppresses the summarize call itself.
func summarizationDecision(transcript *model.Transcript, recordingType *model.RecordingType) StageDecision {
	if transcript == nil {
		return failStage(ErrTranscriptMissing)
	}
	if recordingType == nil {
		return failStage(ErrRecordingTypeMissing)
	}
	return runStage()
}

// embeddingDecision requires both texts before the fan-out
func embeddingDecision(transcript *model.Transcript, summary *model.Summary) StageDecision {
	if transcript == nil {
		return failStage(ErrTranscriptMissing)
	}
	if summary == nil {
		return failStage(fmt.Errorf("summary missing"))
	}
	return runStage()
}
