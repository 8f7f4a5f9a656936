package frameloop

import (
	"sync"

	"waveanalyzer/logger"
	"waveanalyzer/types"
)

// Publisher receives the frames a loop produces
type Publisher interface {
	Publish(msg types.FrameMessage)
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(msg types.FrameMessage)

// Publish calls f(msg)
func (f PublisherFunc) Publish(msg types.FrameMessage) {
	f(msg)
}

// Loop re-requests its step every frame until stopped. It holds the
// cancel token of the pending request so Stop leaves nothing scheduled.
// Each Start opens a new generation; a frame from an older one never
// re-requests, so a Stop and Start during a step keeps a single chain.
type Loop struct {
	name  string
	sched Scheduler
	step  FrameFunc

	mu      sync.Mutex
	running bool
	gen     uint64
	cancel  CancelFunc
}

// NewLoop creates a stopped loop
func NewLoop(name string, sched Scheduler, step FrameFunc) *Loop {
	return &Loop{name: name, sched: sched, step: step}
}

// Start schedules the first frame
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.gen++
	l.cancel = l.request(l.gen)
}

func (l *Loop) request(gen uint64) CancelFunc {
	return l.sched.RequestFrame(func(t Tick) { l.frame(gen, t) })
}

// Stop cancels the pending frame
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.running = false
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// Running reports whether the loop is scheduled
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Loop) frame(gen uint64, t Tick) {
	l.mu.Lock()
	current := l.running && l.gen == gen
	l.mu.Unlock()
	if !current {
		return
	}

	l.safeStep(t)

	l.mu.Lock()
	if l.running && l.gen == gen {
		l.cancel = l.request(gen)
	}
	l.mu.Unlock()
}

// safeStep keeps one failing frame from ending the loop
func (l *Loop) safeStep(t Tick) {
	defer func() {
		if r := recover(); r != nil {
			logger.Get().Error().Str("loop", l.name).Uint64("tick", t.Seq).Msgf("frame panicked: %v", r)
		}
	}()
	l.step(t)
}
