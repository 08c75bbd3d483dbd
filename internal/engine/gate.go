package engine

import "sync"

// Gate counts outstanding loads (background, plan data) and fires ready
// once when the count drops to zero. Loads complete on other goroutines,
// so the gate is safe for concurrent use.
type Gate struct {
	mu      sync.Mutex
	pending int
	fired   bool
	ready   func()
}

func NewGate(ready func()) *Gate {
	return &Gate{ready: ready}
}

// Add registers n more pending loads.
func (g *Gate) Add(n int) {
	g.mu.Lock()
	g.pending += n
	g.mu.Unlock()
}

// Done marks one load finished, successfully or not.
func (g *Gate) Done() {
	g.mu.Lock()
	if g.pending > 0 {
		g.pending--
	}
	fire := g.pending == 0 && !g.fired
	if fire {
		g.fired = true
	}
	g.mu.Unlock()

	if fire && g.ready != nil {
		g.ready()
	}
}

func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

// Fired reports whether ready has been called.
func (g *Gate) Fired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fired
}
