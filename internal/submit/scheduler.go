package submit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Callback receives the outcome of a deferred submission after it fires.
type Callback func(*Receipt, error)

// Scheduler arms cancellable timers that fire deferred submissions. At most
// one timer exists per returned handle; Cancel is idempotent and a no-op
// after the timer has fired.
type Scheduler struct {
	client *Client
	logger *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewScheduler creates a scheduler delegating to the given client.
func NewScheduler(client *Client, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		client: client,
		logger: logger,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms a timer that submits req after delay and invokes cb with
// the outcome. The returned handle cancels the submission if it has not
// fired yet.
func (s *Scheduler) Schedule(req *Request, delay time.Duration, cb Callback) string {
	handle := uuid.NewString()

	s.mu.Lock()
	s.timers[handle] = time.AfterFunc(delay, func() {
		s.fire(handle, req, cb)
	})
	s.mu.Unlock()

	s.logger.Debug("Auto-submission scheduled",
		slog.String("handle", handle),
		slog.Duration("delay", delay),
	)
	return handle
}

func (s *Scheduler) fire(handle string, req *Request, cb Callback) {
	s.mu.Lock()
	_, armed := s.timers[handle]
	delete(s.timers, handle)
	s.mu.Unlock()

	// Cancel won the race against the timer goroutine: no submission.
	if !armed {
		return
	}

	receipt, err := s.client.Submit(context.Background(), req)
	if err != nil {
		s.logger.Warn("Deferred submission failed",
			slog.String("handle", handle),
			slog.String("error", err.Error()),
		)
	}
	if cb != nil {
		cb(receipt, err)
	}
}

// Cancel disarms the handle's timer. Safe to call at any point: cancelling
// a fired or already-cancelled handle is a no-op.
func (s *Scheduler) Cancel(handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[handle]; ok {
		timer.Stop()
		delete(s.timers, handle)
	}
}

// CancelAll disarms every outstanding timer and aborts further retries of
// in-flight submissions. Used during teardown to prevent stray submissions;
// an attempt already on the wire runs to completion.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	for handle, timer := range s.timers {
		timer.Stop()
		delete(s.timers, handle)
	}
	s.mu.Unlock()

	s.client.Abort()
}

// Outstanding returns the number of armed timers.
func (s *Scheduler) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
