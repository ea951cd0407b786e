// Package jobs owns job records and fans progress events out to subscribers.
package jobs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// subscribeQuiet bounds how long a subscriber waits for the next event.
	// Streams that go quiet end and the caller re-subscribes.
	subscribeQuiet = 30 * time.Second

	// reapInterval is how often stale records are collected.
	reapInterval = 5 * time.Minute

	// terminalRetention keeps finished records queryable for reattaching
	// clients before they are reaped.
	terminalRetention = 2 * time.Hour

	// stuckAfter is the age at which a still-running record is presumed
	// stuck and reaped.
	stuckAfter = 30 * time.Minute
)

// ErrJobNotFound is returned when a job id references no known record.
var ErrJobNotFound = errors.New("job not found")

// Broker is the sole owner of job records. Workers report progress through
// it; subscribers observe jobs through it. All methods are safe for
// concurrent use.
type Broker struct {
	mu        sync.RWMutex
	records   map[string]*Record
	waiters   map[string]map[int64]chan ProgressEvent
	waiterSeq int64
	logger    *slog.Logger
}

// NewBroker returns an empty broker. A nil logger falls back to the default.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		records: make(map[string]*Record),
		waiters: make(map[string]map[int64]chan ProgressEvent),
		logger:  logger,
	}
}

// CreateJob allocates a record in Initializing and returns its id: 12 hex
// chars from crypto/rand, short enough for URLs and collision-safe for an
// in-memory population.
func (b *Broker) CreateJob() string {
	id := newJobID()
	b.mu.Lock()
	b.records[id] = &Record{
		JobID:     id,
		Stage:     StageInitializing,
		StartedAt: time.Now(),
	}
	b.mu.Unlock()
	b.logger.Debug("job created", "job_id", id)
	return id
}

func newJobID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("reading random job id: %v", err))
	}
	return hex.EncodeToString(buf)
}

// UpdateProgress stores the event as the record's latest progress and wakes
// current subscribers. The job id is stamped onto the event, percent and page
// are clamped so they never regress, and events for unknown or terminal jobs
// are dropped.
func (b *Broker) UpdateProgress(jobID string, evt ProgressEvent) {
	b.mu.Lock()
	rec, ok := b.records[jobID]
	if !ok || rec.Stage.Terminal() {
		b.mu.Unlock()
		return
	}
	evt.JobID = jobID
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if evt.Stage == "" {
		evt.Stage = rec.Stage
	} else if canTransition(rec.Stage, evt.Stage) {
		rec.Stage = evt.Stage
	} else {
		evt.Stage = rec.Stage
	}
	if prev := rec.LastProgress; prev != nil {
		if evt.PercentComplete < prev.PercentComplete {
			evt.PercentComplete = prev.PercentComplete
		}
		if evt.CurrentPage < prev.CurrentPage {
			evt.CurrentPage = prev.CurrentPage
		}
	}
	stored := evt
	rec.LastProgress = &stored
	waiters := b.takeWaitersLocked(jobID)
	b.mu.Unlock()
	b.deliver(waiters, evt)
}

// UpdateStage transitions the record's stage and emits a synthesized event
// carrying the change. Backward and out-of-terminal transitions are ignored.
func (b *Broker) UpdateStage(jobID string, stage Stage, operation string) {
	b.mu.Lock()
	rec, ok := b.records[jobID]
	if !ok || !canTransition(rec.Stage, stage) {
		b.mu.Unlock()
		return
	}
	rec.Stage = stage
	evt := synthesizeEvent(rec)
	evt.Operation = operation
	stored := evt
	rec.LastProgress = &stored
	waiters := b.takeWaitersLocked(jobID)
	b.mu.Unlock()
	b.deliver(waiters, evt)
}

// CompleteJob makes the record terminal with its result and emits the final
// event at 100 percent. First write wins: repeat calls are no-ops.
func (b *Broker) CompleteJob(jobID string, result Result) {
	b.mu.Lock()
	rec, ok := b.records[jobID]
	if !ok || rec.Stage.Terminal() {
		b.mu.Unlock()
		return
	}
	now := time.Now()
	rec.Stage = StageCompleted
	rec.EndedAt = &now
	res := result
	rec.Result = &res
	evt := synthesizeEvent(rec)
	evt.PercentComplete = 100
	evt.Operation = "Composition complete"
	stored := evt
	rec.LastProgress = &stored
	waiters := b.takeWaitersLocked(jobID)
	b.mu.Unlock()
	b.deliver(waiters, evt)
	b.logger.Info("job completed", "job_id", jobID, "output", result.OutputFileName)
}

// FailJob makes the record terminal with an error message. Percent keeps its
// last value so the event sequence stays monotone. First write wins.
func (b *Broker) FailJob(jobID, errorMsg string) {
	b.mu.Lock()
	rec, ok := b.records[jobID]
	if !ok || rec.Stage.Terminal() {
		b.mu.Unlock()
		return
	}
	now := time.Now()
	rec.Stage = StageFailed
	rec.EndedAt = &now
	rec.ErrorMessage = errorMsg
	evt := synthesizeEvent(rec)
	evt.Operation = errorMsg
	stored := evt
	rec.LastProgress = &stored
	waiters := b.takeWaitersLocked(jobID)
	b.mu.Unlock()
	b.deliver(waiters, evt)
	b.logger.Warn("job failed", "job_id", jobID, "error", errorMsg)
}

// synthesizeEvent builds an event reflecting the record's current state,
// carrying forward counters from the last progress so percent stays monotone.
// Callers hold b.mu.
func synthesizeEvent(rec *Record) ProgressEvent {
	var evt ProgressEvent
	if rec.LastProgress != nil {
		evt = *rec.LastProgress
	}
	evt.JobID = rec.JobID
	evt.Stage = rec.Stage
	evt.Timestamp = time.Now()
	return evt
}

// GetStatus returns a detached snapshot of the record.
func (b *Broker) GetStatus(jobID string) (Record, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.records[jobID]
	if !ok {
		return Record{}, false
	}
	return rec.snapshot(), true
}

// Count returns the number of records currently held.
func (b *Broker) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// Subscribe returns a finite stream of progress events for the job. A job
// that is already terminal yields its terminal event first. The stream closes
// when a terminal event has been delivered, when ctx is cancelled, or after
// 30 s without any event; in the quiet case callers re-subscribe.
//
// Subscribers hold one-shot wakes: each published event goes to every waiter
// registered at that moment, then the list clears. A slow subscriber misses
// intermediate events, which is fine because events are self-contained.
func (b *Broker) Subscribe(ctx context.Context, jobID string) (<-chan ProgressEvent, error) {
	b.mu.RLock()
	_, ok := b.records[jobID]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	out := make(chan ProgressEvent)
	go b.pump(ctx, jobID, out)
	return out, nil
}

func (b *Broker) pump(ctx context.Context, jobID string, out chan<- ProgressEvent) {
	defer close(out)
	timer := time.NewTimer(subscribeQuiet)
	defer timer.Stop()
	for {
		// Register the waiter before reading the record so a terminal event
		// landing between the two cannot be missed.
		waiterID, wake := b.addWaiter(jobID)
		rec, ok := b.GetStatus(jobID)
		if !ok {
			b.removeWaiter(jobID, waiterID)
			return
		}
		if rec.Stage.Terminal() {
			b.removeWaiter(jobID, waiterID)
			evt := terminalEvent(rec)
			select {
			case out <- evt:
			case <-ctx.Done():
			}
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(subscribeQuiet)
		select {
		case evt := <-wake:
			// The publisher already dropped this waiter when it delivered.
			select {
			case out <- evt:
				if evt.Stage.Terminal() {
					return
				}
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			b.removeWaiter(jobID, waiterID)
			return
		case <-timer.C:
			b.removeWaiter(jobID, waiterID)
			return
		}
	}
}

// terminalEvent returns the record's stored terminal event, synthesizing one
// when a record went terminal without ever carrying progress.
func terminalEvent(rec Record) ProgressEvent {
	if rec.LastProgress != nil {
		return *rec.LastProgress
	}
	evt := ProgressEvent{
		JobID:     rec.JobID,
		Stage:     rec.Stage,
		Timestamp: time.Now(),
	}
	if rec.Stage == StageCompleted {
		evt.PercentComplete = 100
	}
	if rec.ErrorMessage != "" {
		evt.Operation = rec.ErrorMessage
	}
	return evt
}

func (b *Broker) addWaiter(jobID string) (int64, chan ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waiterSeq++
	id := b.waiterSeq
	ch := make(chan ProgressEvent, 1)
	m, ok := b.waiters[jobID]
	if !ok {
		m = make(map[int64]chan ProgressEvent)
		b.waiters[jobID] = m
	}
	m[id] = ch
	return id, ch
}

func (b *Broker) removeWaiter(jobID string, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.waiters[jobID]
	if !ok {
		return
	}
	delete(m, id)
	if len(m) == 0 {
		delete(b.waiters, jobID)
	}
}

// takeWaitersLocked drains the job's waiter list. Callers hold b.mu.
func (b *Broker) takeWaitersLocked(jobID string) []chan ProgressEvent {
	m, ok := b.waiters[jobID]
	if !ok {
		return nil
	}
	delete(b.waiters, jobID)
	out := make([]chan ProgressEvent, 0, len(m))
	for _, ch := range m {
		out = append(out, ch)
	}
	return out
}

// deliver sends the event to each drained waiter. Waiter channels hold one
// event and are registered once, so the send only fails if a waiter leaked;
// dropping is safe because the subscriber re-registers and reads the record.
func (b *Broker) deliver(waiters []chan ProgressEvent, evt ProgressEvent) {
	for _, ch := range waiters {
		select {
		case ch <- evt:
		default:
			b.logger.Debug("dropped progress delivery", "job_id", evt.JobID)
		}
	}
}

// StartReaper removes finished records two hours after they end and
// presumed-stuck records thirty minutes after they start, checking every five
// minutes until ctx is done.
func (b *Broker) StartReaper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(reapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := b.reap(time.Now()); n > 0 {
					b.logger.Debug("reaped job records", "count", n)
				}
			}
		}
	}()
}

func (b *Broker) reap(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int
	for id, rec := range b.records {
		var dead bool
		if rec.EndedAt != nil {
			dead = now.Sub(*rec.EndedAt) > terminalRetention
		} else {
			dead = now.Sub(rec.StartedAt) > stuckAfter
		}
		if dead {
			delete(b.records, id)
			// Blocked subscribers time out on their own; dropping the waiter
			// list just frees the map entry.
			delete(b.waiters, id)
			n++
		}
	}
	return n
}
