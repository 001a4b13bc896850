package session

import "sync"

// Admitter enforces the global open-connection cap (§4.7, §5).
type Admitter struct {
	mu      sync.Mutex
	max     int
	current int
}

// NewAdmitter builds an Admitter allowing up to max concurrent connections.
func NewAdmitter(max int) *Admitter {
	return &Admitter{max: max}
}

// TryAdmit reserves one connection slot if the cap isn't reached, reporting
// whether admission succeeded.
func (a *Admitter) TryAdmit() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current >= a.max {
		return false
	}
	a.current++
	return true
}

// Release frees one connection slot.
func (a *Admitter) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current > 0 {
		a.current--
	}
}

// Current reports the number of currently admitted connections, for
// /status reporting.
func (a *Admitter) Current() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}
