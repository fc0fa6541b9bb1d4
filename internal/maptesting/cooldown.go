package maptesting

import (
	"sync"
	"time"
)

type cooldownState struct {
	last  time.Time
	count int
}

// CooldownGate bounds structural mutations per channel to a fixed
// budget within a fixed window. The platform enforces a much stricter
// limit on the same class of operation (rename/move); this gate is
// client-side backpressure so we never trip it.
//
// The window anchor does not slide: Consume within a live window only
// increments the counter. Only a fully expired window resets the
// anchor. Check followed by Consume is two steps; interleaved triggers
// on the same key can go one over budget, which is acceptable here.
type CooldownGate struct {
	mu     sync.Mutex
	window time.Duration
	budget int
	keys   map[string]*cooldownState

	now func() time.Time
}

func NewCooldownGate(window time.Duration, budget int) *CooldownGate {
	if window <= 0 {
		window = 700 * time.Second
	}
	if budget <= 0 {
		budget = 2
	}
	return &CooldownGate{
		window: window,
		budget: budget,
		keys:   make(map[string]*cooldownState),
		now:    time.Now,
	}
}

// Check reports whether key is currently blocked and, if so, how long
// until the window expires. Never mutates state.
func (g *CooldownGate) Check(key string) (blocked bool, retryAfter time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.keys[key]
	if !ok {
		return false, 0
	}
	elapsed := g.now().Sub(st.last)
	if elapsed >= g.window {
		return false, 0
	}
	if st.count >= g.budget {
		return true, g.window - elapsed
	}
	return false, 0
}

// Consume unconditionally records a mutation against key.
func (g *CooldownGate) Consume(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	st, ok := g.keys[key]
	if !ok || now.Sub(st.last) >= g.window {
		g.keys[key] = &cooldownState{last: now, count: 1}
		return
	}
	st.count++
}
