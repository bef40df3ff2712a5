package job

import "sync"

// gate is the worker's suspension point. The worker calls wait at each
// batch boundary; pause blocks it there, resume releases it, and
// cancel releases it permanently. Pause and cancel therefore take
// effect within one batch's latency, never mid-file.
type gate struct {
	mu        sync.Mutex
	cond      *sync.Cond
	paused    bool
	cancelled bool
}

func newGate() *gate {
	g := &gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// pause asks the worker to hold at the next batch boundary.
// Returns false if the gate is already paused or cancelled.
func (g *gate) pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused || g.cancelled {
		return false
	}
	g.paused = true
	return true
}

// resume releases a paused worker. Returns false if not paused.
func (g *gate) resume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused || g.cancelled {
		return false
	}
	g.paused = false
	g.cond.Broadcast()
	return true
}

// cancel releases the worker unconditionally; wait reports the
// cancellation. Valid from both running and paused states.
func (g *gate) cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = true
	g.paused = false
	g.cond.Broadcast()
}

// isPaused reports whether the gate is currently holding the worker.
func (g *gate) isPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// wait blocks while paused. Returns false once cancelled.
func (g *gate) wait() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.paused && !g.cancelled {
		g.cond.Wait()
	}
	return !g.cancelled
}
