// Package timer provides the cancellable-delay service the call engine
// schedules against. It is built on a swappable clock so tests can drive
// expiry with a virtual clock instead of sleeping.
package timer

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/utc-chat/peerlink/internal/call"
)

// Service creates cancellable timeouts from a clock. New substitutes the wall
// clock for a nil clock; tests pass clock.NewMock() and advance it.
type Service struct {
	clk clock.Clock
}

// New creates a timeout service on the given clock. A nil clock means the
// wall clock.
func New(clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.New()
	}
	return &Service{clk: clk}
}

// CreateTimeout implements call.TimeoutCreator.
func (s *Service) CreateTimeout(d time.Duration) call.Timeout {
	t := &timeout{
		timer:   s.clk.Timer(d),
		elapsed: make(chan struct{}),
		abort:   make(chan struct{}),
	}
	go t.run()
	return t
}

// timeout is a single cancellable delay. Elapsed is closed when the timer
// fires; it never fires after Abort.
type timeout struct {
	timer   *clock.Timer
	elapsed chan struct{}
	abort   chan struct{}
	once    sync.Once

	mu      sync.Mutex
	aborted bool
}

func (t *timeout) run() {
	select {
	case <-t.timer.C:
		t.mu.Lock()
		if !t.aborted {
			close(t.elapsed)
		}
		t.mu.Unlock()
	case <-t.abort:
		t.timer.Stop()
	}
}

// Elapsed implements call.Timeout.
func (t *timeout) Elapsed() <-chan struct{} {
	return t.elapsed
}

// Abort implements call.Timeout. Idempotent.
func (t *timeout) Abort() {
	t.mu.Lock()
	t.aborted = true
	t.mu.Unlock()
	t.once.Do(func() { close(t.abort) })
}
