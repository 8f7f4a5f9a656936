// Package frameloop runs the per-frame synchronization loops of a session:
// loop-range enforcement, the seeker and the frequency visualization.
package frameloop

import (
	"sync"
	"sync/atomic"
	"time"
)

// Tick identifies one frame. Every callback of a frame receives the same
// Tick, so all loops read the clock at the same instant.
type Tick struct {
	Seq uint64
	Now time.Time
}

// FrameFunc is a callback scheduled for the next frame
type FrameFunc func(Tick)

// CancelFunc withdraws a pending frame request. It is safe to call more
// than once and after the frame ran.
type CancelFunc func()

// Scheduler delivers one-shot frame callbacks, like requestAnimationFrame.
// Callbacks requested during a frame run on the following one.
type Scheduler interface {
	RequestFrame(fn FrameFunc) CancelFunc
}

type request struct {
	fn        FrameFunc
	cancelled atomic.Bool
}

// queue holds pending requests in registration order
type queue struct {
	mu      sync.Mutex
	pending []*request
	seq     uint64
}

func (q *queue) add(fn FrameFunc) CancelFunc {
	r := &request{fn: fn}
	q.mu.Lock()
	q.pending = append(q.pending, r)
	q.mu.Unlock()
	return func() { r.cancelled.Store(true) }
}

// run executes the current batch with one shared Tick
func (q *queue) run(now time.Time) int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.seq++
	tick := Tick{Seq: q.seq, Now: now}
	q.mu.Unlock()

	ran := 0
	for _, r := range batch {
		if r.cancelled.Load() {
			continue
		}
		r.fn(tick)
		ran++
	}
	return ran
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, r := range q.pending {
		if !r.cancelled.Load() {
			n++
		}
	}
	return n
}

// TickerScheduler fires frames from a time.Ticker at a fixed rate
type TickerScheduler struct {
	q        queue
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

// NewTickerScheduler creates a scheduler running at fps frames per second
func NewTickerScheduler(fps int) *TickerScheduler {
	if fps <= 0 {
		fps = 60
	}
	return &TickerScheduler{
		interval: time.Second / time.Duration(fps),
		now:      time.Now,
	}
}

// Interval returns the frame period
func (s *TickerScheduler) Interval() time.Duration {
	return s.interval
}

// RequestFrame schedules fn for the next frame
func (s *TickerScheduler) RequestFrame(fn FrameFunc) CancelFunc {
	return s.q.add(fn)
}

// Start begins firing frames. Calling Start twice is a no-op.
func (s *TickerScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.run(s.stop, s.stopped)
}

// Stop halts the ticker and waits for the frame in progress
func (s *TickerScheduler) Stop() {
	s.mu.Lock()
	stop, stopped := s.stop, s.stopped
	s.stop, s.stopped = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped
}

func (s *TickerScheduler) run(stop, stopped chan struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.q.run(s.now())
		}
	}
}

// ManualScheduler only fires frames when Step is called
type ManualScheduler struct {
	q queue
}

// NewManualScheduler creates an idle manual scheduler
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// RequestFrame schedules fn for the next Step
func (s *ManualScheduler) RequestFrame(fn FrameFunc) CancelFunc {
	return s.q.add(fn)
}

// Step runs one frame at now and returns how many callbacks ran
func (s *ManualScheduler) Step(now time.Time) int {
	return s.q.run(now)
}

// Pending returns the number of live frame requests
func (s *ManualScheduler) Pending() int {
	return s.q.len()
}
