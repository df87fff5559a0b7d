package notify

// Signal is a coalescing cross-goroutine wake-up.
type Signal struct {
	ch chan struct{}
}

// NewSignal returns a lowered signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Raise marks work as available. Repeated raises before the next Check
// collapse into one.
func (s *Signal) Raise() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Check reports whether the signal was raised since the last Check and
// lowers it. It never blocks.
func (s *Signal) Check() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// C exposes the signal for hosts that wait in a select. Receiving from C
// lowers the signal the same way Check does.
func (s *Signal) C() <-chan struct{} {
	return s.ch
}
