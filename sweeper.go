package stateguard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Sweeper runs the guard's expiry pass on a fixed interval, independent of
// request traffic. It never raises user-visible errors; expired entries are
// reclaimed silently.
type Sweeper struct {
	guard    *Guard
	interval time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	done      chan struct{}
	stopped   chan struct{}
}

// NewSweeper creates a sweeper for guard using the guard's configured
// interval.
func NewSweeper(guard *Guard) *Sweeper {
	return &Sweeper{
		guard:    guard,
		interval: guard.interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start launches the background loop. Calling Start more than once is a
// no-op. The loop exits when ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.run(ctx)
	})
}

// Stop terminates the loop and waits for it to exit. Safe to call more than
// once, or without a prior Start.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	if s.started.Load() {
		<-s.stopped
	}
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.guard.SweepNow(ctx)
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}
