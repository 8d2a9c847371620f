package supervisor

import "time"

// BackoffGate spaces accepted starts across the whole fleet by at least delay
type BackoffGate struct {
	delay   time.Duration
	last    time.Time
	started bool
}

func NewBackoffGate(delay time.Duration) *BackoffGate {
	return &BackoffGate{delay: delay}
}

// TryConsume records now and returns true when the window since the last accepted start has
// elapsed. A denied call has no side effect.
func (g *BackoffGate) TryConsume(now time.Time) bool {
	if g.started && now.Sub(g.last) < g.delay {
		return false
	}
	g.last = now
	g.started = true
	return true
}

// Release clears the window so the next start is accepted immediately
func (g *BackoffGate) Release() {
	g.started = false
	g.last = time.Time{}
}

// Remaining is the time until the gate opens, zero when open
func (g *BackoffGate) Remaining(now time.Time) time.Duration {
	if !g.started {
		return 0
	}
	remaining := g.delay - now.Sub(g.last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (g *BackoffGate) LastStart() (time.Time, bool) {
	return g.last, g.started
}
