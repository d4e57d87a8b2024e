package engine

import "sync"

// PauseSet is the governance-controlled pause switch consulted by every
// native component through common.PauseView, without granting them write
// access to the pause state itself. Module names match the ones each
// package's common.Guard call sites use: "orders", "positions", "liquidity",
// "processing".
type PauseSet struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewPauseSet returns an unpaused PauseSet.
func NewPauseSet() *PauseSet {
	return &PauseSet{paused: make(map[string]bool)}
}

// IsPaused implements common.PauseView.
func (p *PauseSet) IsPaused(module string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[module]
}

// SetPaused implements the "pause toggles" governance surface.
func (p *PauseSet) SetPaused(module string, paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if paused {
		p.paused[module] = true
	} else {
		delete(p.paused, module)
	}
}
