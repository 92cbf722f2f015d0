package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"recap/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func waitSignal(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal(msg)
	}
}

func TestQueue_ProcessesEnqueuedJob(t *testing.T) {
	runner := new(MockRunner)
	store := new(MockStore)

	done := make(chan struct{})
	runner.On("Process", mock.Anything, "rec-1").
		Run(func(mock.Arguments) { close(done) }).
		Return(nil)

	q := NewQueue(runner, store, DefaultPolicy())
	assert.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	q.Enqueue("rec-1")

	waitSignal(t, done, "job was never processed")
	runner.AssertExpectations(t)
}

func TestQueue_RetriesUntilTerminalFailure(t *testing.T) {
	runner := new(MockRunner)
	store := new(MockStore)

	policy := Policy{
		Schedule:    []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond},
		MaxAttempts: 3,
	}

	runner.On("Process", mock.Anything, "rec-1").Return(errors.New("provider down"))
	store.On("IncrementRetryCount", mock.Anything, "rec-1").Return(nil)

	failed := make(chan struct{})
	var errorMessage *string
	store.On("UpdateStatus", mock.Anything, "rec-1", model.RecordingStatusFailed, mock.Anything).
		Run(func(args mock.Arguments) {
			errorMessage = args.Get(3).(*string)
			close(failed)
		}).
		Return(nil)

	q := NewQueue(runner, store, policy)
	assert.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	q.Enqueue("rec-1")

	waitSignal(t, failed, "recording never reached terminal failure")

	// No further automatic retries after the terminal failure
	time.Sleep(50 * time.Millisecond)
	runner.AssertNumberOfCalls(t, "Process", 3)
	store.AssertNumberOfCalls(t, "IncrementRetryCount", 3)
	assert.Equal(t, 0, q.PendingJobs())

	assert.NotNil(t, errorMessage)
	assert.Contains(t, *errorMessage, "provider down")
}

func TestQueue_HandleFailureSchedulesBackoff(t *testing.T) {
	runner := new(MockRunner)
	store := new(MockStore)

	store.On("IncrementRetryCount", mock.Anything, "rec-1").Return(nil)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := NewQueue(runner, store, DefaultPolicy())
	q.now = func() time.Time { return base }

	procErr := errors.New("transient failure")

	q.handleFailure(context.Background(), job{recordingID: "rec-1", attempt: 0}, procErr)
	q.handleFailure(context.Background(), job{recordingID: "rec-1", attempt: 1}, procErr)

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Len(t, q.jobs, 2)
	assert.Equal(t, 1, q.jobs[0].attempt)
	assert.Equal(t, base.Add(1*time.Second), q.jobs[0].scheduledAt)
	assert.Equal(t, 2, q.jobs[1].attempt)
	assert.Equal(t, base.Add(5*time.Second), q.jobs[1].scheduledAt)
}

func TestQueue_HandleFailureTerminal(t *testing.T) {
	runner := new(MockRunner)
	store := new(MockStore)

	store.On("IncrementRetryCount", mock.Anything, "rec-1").Return(nil)
	store.On("UpdateStatus", mock.Anything, "rec-1", model.RecordingStatusFailed, mock.Anything).Return(nil)

	q := NewQueue(runner, store, DefaultPolicy())

	q.handleFailure(context.Background(), job{recordingID: "rec-1", attempt: 2}, errors.New("still broken"))

	assert.Equal(t, 0, q.PendingJobs())
	store.AssertCalled(t, "UpdateStatus", mock.Anything, "rec-1", model.RecordingStatusFailed, mock.Anything)
}

func TestQueue_RetryFailedResetsRecording(t *testing.T) {
	runner := new(MockRunner)
	store := new(MockStore)

	store.On("UpdateStatus", mock.Anything, "rec-1", model.RecordingStatusPending, (*string)(nil)).Return(nil)
	store.On("ResetRetryCount", mock.Anything, "rec-1").Return(nil)

	q := NewQueue(runner, store, DefaultPolicy())

	err := q.RetryFailed(context.Background(), "rec-1")

	assert.NoError(t, err)
	assert.Equal(t, 1, q.PendingJobs())

	q.mu.Lock()
	assert.Equal(t, 0, q.jobs[0].attempt)
	q.mu.Unlock()

	store.AssertExpectations(t)
}

func TestQueue_RecoverPending(t *testing.T) {
	runner := new(MockRunner)
	store := new(MockStore)

	pending := []*model.Recording{
		{ID: "rec-1", Status: model.RecordingStatusPending},
		{ID: "rec-2", Status: model.RecordingStatusTranscribing},
		{ID: "rec-3", Status: model.RecordingStatusSummarizing},
	}
	store.On("FetchPendingRecordings", mock.Anything).Return(pending, nil)

	q := NewQueue(runner, store, DefaultPolicy())

	count, err := q.RecoverPending(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, q.PendingJobs())
}

func TestQueue_DuplicateEnqueueNotDeduplicated(t *testing.T) {
	q := NewQueue(new(MockRunner), new(MockStore), DefaultPolicy())

	q.Enqueue("rec-1")
	q.Enqueue("rec-1")

	assert.Equal(t, 2, q.PendingJobs())
}

func TestQueue_PopDueOrdersByScheduledAt(t *testing.T) {
	q := NewQueue(new(MockRunner), new(MockStore), DefaultPolicy())

	base := time.Now().Add(-time.Minute)
	q.add(job{recordingID: "later", scheduledAt: base.Add(10 * time.Second)})
	q.add(job{recordingID: "earliest", scheduledAt: base})
	q.add(job{recordingID: "middle", scheduledAt: base.Add(5 * time.Second)})

	j, _, ok := q.popDue()
	assert.True(t, ok)
	assert.Equal(t, "earliest", j.recordingID)

	j, _, ok = q.popDue()
	assert.True(t, ok)
	assert.Equal(t, "middle", j.recordingID)
}

func TestQueue_PopDueWaitsForScheduledJob(t *testing.T) {
	q := NewQueue(new(MockRunner), new(MockStore), DefaultPolicy())

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return base }

	q.add(job{recordingID: "rec-1", scheduledAt: base.Add(3 * time.Second)})

	_, wait, ok := q.popDue()
	assert.False(t, ok)
	assert.Equal(t, 3*time.Second, wait)
	assert.Equal(t, 1, q.PendingJobs())
}

type serializingRunner struct {
	mu        sync.Mutex
	active    int
	maxActive int
	processed int
	done      chan struct{}
	total     int
}

func (r *serializingRunner) Process(ctx context.Context, recordingID string) error {
	r.mu.Lock()
	r.active++
	if r.active > r.maxActive {
		r.maxActive = r.active
	}
	r.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	r.mu.Lock()
	r.active--
	r.processed++
	if r.processed == r.total {
		close(r.done)
	}
	r.mu.Unlock()

	return nil
}

func TestQueue_RunsOneJobAtATime(t *testing.T) {
	runner := &serializingRunner{done: make(chan struct{}), total: 3}

	q := NewQueue(runner, new(MockStore), DefaultPolicy())
	assert.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	q.Enqueue("rec-1")
	q.Enqueue("rec-2")
	q.Enqueue("rec-3")

	waitSignal(t, runner.done, "jobs were never drained")

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, 3, runner.processed)
	assert.Equal(t, 1, runner.maxActive)
}

func TestQueue_StartTwiceFails(t *testing.T) {
	q := NewQueue(new(MockRunner), new(MockStore), DefaultPolicy())

	assert.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	assert.Error(t, q.Start(context.Background()))
}

func TestQueue_OnTerminalNotifications(t *testing.T) {
	runner := new(MockRunner)
	store := new(MockStore)

	policy := Policy{
		Schedule:    []time.Duration{time.Millisecond},
		MaxAttempts: 1,
	}

	runner.On("Process", mock.Anything, "rec-ok").Return(nil)
	runner.On("Process", mock.Anything, "rec-bad").Return(errors.New("broken"))
	store.On("IncrementRetryCount", mock.Anything, "rec-bad").Return(nil)
	store.On("UpdateStatus", mock.Anything, "rec-bad", model.RecordingStatusFailed, mock.Anything).Return(nil)

	var mu sync.Mutex
	outcomes := make(map[string]model.RecordingStatus)
	seen := make(chan struct{}, 2)

	q := NewQueue(runner, store, policy)
	q.OnTerminal(func(recordingID string, status model.RecordingStatus) {
		mu.Lock()
		outcomes[recordingID] = status
		mu.Unlock()
		seen <- struct{}{}
	})

	assert.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	q.Enqueue("rec-ok")
	q.Enqueue("rec-bad")

	for i := 0; i < 2; i++ {
		waitSignal(t, seen, "terminal callback never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, model.RecordingStatusComplete, outcomes["rec-ok"])
	assert.Equal(t, model.RecordingStatusFailed, outcomes["rec-bad"])
}
