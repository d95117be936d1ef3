package tui

import "sync"

// Generation numbers the stream connections feeding one store. StreamHooks
// stamps every event with the current generation and the store applier drops
// events stamped before the last Advance, so events still queued on the bus
// from a torn-down connection never reach a reset store.
//
// A nil *Generation never advances and applies everything.
type Generation struct {
	mu sync.Mutex
	n  uint64
}

func NewGeneration() *Generation {
	return &Generation{}
}

func (g *Generation) Current() uint64 {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Apply runs fn if gen is still current. fn must not call Advance.
func (g *Generation) Apply(gen uint64, fn func()) bool {
	if g == nil {
		fn()
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.n {
		return false
	}
	fn()
	return true
}

// Advance starts a new generation and runs fn before any event of the new
// generation can be applied.
func (g *Generation) Advance(fn func()) uint64 {
	if g == nil {
		if fn != nil {
			fn()
		}
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	if fn != nil {
		fn()
	}
	return g.n
}
