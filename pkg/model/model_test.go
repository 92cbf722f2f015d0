package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingIsTerminal(t *testing.T) {
	r := &Recording{Status: RecordingStatusPending}
	assert.False(t, r.IsTerminal())

	r.Status = RecordingStatusTranscribing
	assert.False(t, r.IsTerminal())

	r.Status = RecordingStatusSummarizing
	assert.False(t, r.IsTerminal())

	r.Status = RecordingStatusComplete
	assert.True(t, r.IsTerminal())

	r.Status = RecordingStatusFailed
	assert.True(t, r.IsTerminal())
}

func TestRecordingSetFailed(t *testing.T) {
	r := &Recording{Status: RecordingStatusTranscribing}

	r.SetFailed("transcription provider unavailable")

	assert.Equal(t, RecordingStatusFailed, r.Status)
	require.NotNil(t, r.ErrorMessage)
	assert.Equal(t, "transcription provider unavailable", *r.ErrorMessage)
}

func TestRecordingSetComplete(t *testing.T) {
	msg := "stale error"
	r := &Recording{Status: RecordingStatusSummarizing, ErrorMessage: &msg}

	r.SetComplete()

	assert.Equal(t, RecordingStatusComplete, r.Status)
	assert.Nil(t, r.ErrorMessage)
}

func TestRecordingResetForRetry(t *testing.T) {
	msg := "provider down"
	r := &Recording{Status: RecordingStatusFailed, ErrorMessage: &msg, RetryCount: 3}

	r.ResetForRetry()

	assert.Equal(t, RecordingStatusPending, r.Status)
	assert.Nil(t, r.ErrorMessage)
	assert.Equal(t, 0, r.RetryCount)
}

func TestSegmentListValueScan(t *testing.T) {
	segments := SegmentList{
		{SpeakerNumber: 1, StartSeconds: 0, EndSeconds: 2.5, Text: "Hello"},
		{SpeakerNumber: 2, StartSeconds: 2.5, EndSeconds: 4.0, Text: "world"},
	}

	value, err := segments.Value()
	require.NoError(t, err)

	var decoded SegmentList
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, segments, decoded)
}

func TestSegmentListNil(t *testing.T) {
	var segments SegmentList

	value, err := segments.Value()
	require.NoError(t, err)
	assert.Nil(t, value)

	var decoded SegmentList
	require.NoError(t, decoded.Scan(nil))
	assert.Nil(t, decoded)
}
