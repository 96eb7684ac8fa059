package agent

import "sync"

// InterruptFlag is the mutex-guarded boolean the turn loop polls at its three
// documented points: before each model call, after each model call, and
// before each tool dispatch. Setting it is the only action a UI listener
// (e.g. an Esc keypress) needs to take to request cancellation.
type InterruptFlag struct {
	mu  sync.Mutex
	set bool
}

// NewInterruptFlag returns a cleared flag.
func NewInterruptFlag() *InterruptFlag {
	return &InterruptFlag{}
}

// Request marks the flag set. Safe to call from any goroutine.
func (f *InterruptFlag) Request() {
	f.mu.Lock()
	f.set = true
	f.mu.Unlock()
}

// Clear resets the flag, normally once a turn has finished handling it.
func (f *InterruptFlag) Clear() {
	f.mu.Lock()
	f.set = false
	f.mu.Unlock()
}

// IsSet reports the current state.
func (f *InterruptFlag) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}
