package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"recap/pkg/logger"
	"recap/pkg/model"

	"go.uber.org/zap"
)

// job is one queued unit of work. Jobs for the same recording may exist
// serially across retries; the single worker never runs two at once.
type job struct {
	recordingID string
	attempt     int
	scheduledAt time.Time
}

// Queue accepts recording ids and drives each through the pipeline with a
// single worker goroutine. External providers are treated as one shared
// non-reentrant resource, so jobs execute strictly one at a time in due
// order. Duplicate enqueues are not deduplicated; callers own that.
type Queue struct {
	runner Runner
	store  RecordingStore
	policy Policy

	mu   sync.Mutex
	jobs []job

	wake chan struct{}

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Called after a job reaches a terminal outcome, if set
	onTerminal func(recordingID string, status model.RecordingStatus)

	// Overridable in tests
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewQueue creates a processing queue
func NewQueue(runner Runner, store RecordingStore, policy Policy) *Queue {
	return &Queue{
		runner: runner,
		store:  store,
		policy: policy,
		wake:   make(chan struct{}, 1),
		now:    time.Now,
		after:  time.After,
	}
}

// OnTerminal registers a callback invoked after a job completes or fails
// permanently. Set before Start.
func (q *Queue) OnTerminal(fn func(recordingID string, status model.RecordingStatus)) {
	q.onTerminal = fn
}

// Start begins the worker goroutine
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return errors.New("queue already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	q.running = true
	q.cancel = cancel
	q.wg.Add(1)
	q.mu.Unlock()

	go q.run(runCtx)

	return nil
}

// Stop terminates the worker and waits for the in-flight job to unwind
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	cancel := q.cancel
	q.running = false
	q.cancel = nil
	q.mu.Unlock()

	cancel()
	q.wg.Wait()
}

// Enqueue submits a recording for processing
func (q *Queue) Enqueue(recordingID string) {
	q.add(job{
		recordingID: recordingID,
		attempt:     0,
		scheduledAt: q.now(),
	})

	logger.Info("Recording enqueued", zap.String("recording_id", recordingID))
}

// RetryFailed resets a failed recording and submits a fresh job with the
// attempt counter back at zero.
func (q *Queue) RetryFailed(ctx context.Context, recordingID string) error {
	if err := q.store.UpdateStatus(ctx, recordingID, model.RecordingStatusPending, nil); err != nil {
		return fmt.Errorf("failed to reset recording status: %w", err)
	}
	if err := q.store.ResetRetryCount(ctx, recordingID); err != nil {
		return fmt.Errorf("failed to reset retry count: %w", err)
	}

	q.Enqueue(recordingID)

	logger.Info("Manual retry requested", zap.String("recording_id", recordingID))

	return nil
}

// RecoverPending enqueues every recording that is not in a terminal state.
// Called at startup; stage-level resumption skips work already done.
func (q *Queue) RecoverPending(ctx context.Context) (int, error) {
	recordings, err := q.store.FetchPendingRecordings(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending recordings: %w", err)
	}

	for _, rec := range recordings {
		q.Enqueue(rec.ID)
	}

	logger.Info("Pending recordings recovered", zap.Int("count", len(recordings)))

	return len(recordings), nil
}

func (q *Queue) add(j job) {
	q.mu.Lock()
	q.jobs = append(q.jobs, j)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// PendingJobs reports how many jobs are waiting, for status surfaces
func (q *Queue) PendingJobs() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		j, wait, ok := q.popDue()
		if ok {
			q.runJob(ctx, j)
			continue
		}

		// Idle until a new enqueue or until the earliest scheduled job
		// becomes due. A nil timer channel blocks forever.
		var timer <-chan time.Time
		if wait > 0 {
			timer = q.after(wait)
		}

		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		case <-timer:
		}
	}
}

// popDue removes and returns the earliest due job. When nothing is due it
// returns the wait until the earliest scheduled job, or zero if the queue
// is empty.
func (q *Queue) popDue() (job, time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return job{}, 0, false
	}

	idx := 0
	for i := range q.jobs {
		if q.jobs[i].scheduledAt.Before(q.jobs[idx].scheduledAt) {
			idx = i
		}
	}

	earliest := q.jobs[idx]
	now := q.now()
	if earliest.scheduledAt.After(now) {
		return job{}, earliest.scheduledAt.Sub(now), false
	}

	q.jobs = append(q.jobs[:idx], q.jobs[idx+1:]...)
	return earliest, 0, true
}

func (q *Queue) runJob(ctx context.Context, j job) {
	logger.Info("Processing recording",
		zap.String("recording_id", j.recordingID),
		zap.Int("attempt", j.attempt+1))

	err := q.runner.Process(ctx, j.recordingID)
	if err == nil {
		logger.Info("Recording processed",
			zap.String("recording_id", j.recordingID))
		if q.onTerminal != nil {
			q.onTerminal(j.recordingID, model.RecordingStatusComplete)
		}
		return
	}

	if errors.Is(err, context.Canceled) {
		// Shutdown took the job down with it; the startup recovery sweep
		// will resubmit it.
		logger.Warn("Job interrupted by shutdown",
			zap.String("recording_id", j.recordingID))
		return
	}

	q.handleFailure(ctx, j, err)
}

// handleFailure is the single place retry-vs-terminal decisions are made
func (q *Queue) handleFailure(ctx context.Context, j job, procErr error) {
	attempt := j.attempt + 1

	if err := q.store.IncrementRetryCount(ctx, j.recordingID); err != nil {
		logger.Error("Failed to increment retry count",
			zap.String("recording_id", j.recordingID),
			zap.Error(err))
	}

	if !q.policy.Exhausted(attempt) {
		delay := q.policy.DelayFor(attempt)
		q.add(job{
			recordingID: j.recordingID,
			attempt:     attempt,
			scheduledAt: q.now().Add(delay),
		})

		logger.Warn("Processing failed, retry scheduled",
			zap.String("recording_id", j.recordingID),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(procErr))
		return
	}

	errorMessage := procErr.Error()
	if err := q.store.UpdateStatus(ctx, j.recordingID, model.RecordingStatusFailed, &errorMessage); err != nil {
		logger.Error("Failed to persist terminal failure",
			zap.String("recording_id", j.recordingID),
			zap.Error(err))
	}

	logger.Error("Recording failed permanently",
		zap.String("recording_id", j.recordingID),
		zap.Int("attempts", attempt),
		zap.Error(procErr))

	if q.onTerminal != nil {
		q.onTerminal(j.recordingID, model.RecordingStatusFailed)
	}
}
