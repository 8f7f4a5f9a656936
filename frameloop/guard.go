package frameloop

import (
	"time"

	"waveanalyzer/timeline"
)

// LoopGuard enforces the committed selection range each frame. It is the
// only loop allowed to write the clock, and it is started before the
// seeker and visualizer so both read the corrected time on the same tick.
type LoopGuard struct {
	selection *timeline.Selection
	clock     *timeline.Clock
	loop      *Loop
	onRewind  func(time.Time)
}

// NewLoopGuard creates a stopped guard
func NewLoopGuard(sched Scheduler, selection *timeline.Selection, clock *timeline.Clock) *LoopGuard {
	g := &LoopGuard{selection: selection, clock: clock}
	g.loop = NewLoop("loop-guard", sched, g.Step)
	return g
}

// OnRewind registers a hook called whenever the guard seeks back
func (g *LoopGuard) OnRewind(fn func(time.Time)) {
	g.onRewind = fn
}

// Start schedules the loop
func (g *LoopGuard) Start() { g.loop.Start() }

// Stop cancels the loop
func (g *LoopGuard) Stop() { g.loop.Stop() }

// Running reports whether the loop is scheduled
func (g *LoopGuard) Running() bool { return g.loop.Running() }

// Step applies the range once
func (g *LoopGuard) Step(t Tick) {
	if g.selection.Enforce(g.clock, t.Now) && g.onRewind != nil {
		g.onRewind(t.Now)
	}
}
