package notify

// Pipeline couples a Queue with a Signal.
//
// Producers call Publish from any goroutine. The foreground loop calls Poll
// once per tick; Poll is cheap when nothing is pending.
type Pipeline struct {
	queue  Queue
	signal *Signal
}

// NewPipeline returns an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{signal: NewSignal()}
}

// Publish enqueues n and then raises the signal.
//
// The push must happen before the raise: a consumer that observes the wake
// is guaranteed to find n (or find it already drained by an earlier poll).
func (p *Pipeline) Publish(n Notification) {
	p.queue.Push(n)
	p.signal.Raise()
}

// Poll checks the signal and, when raised, drains the queue until empty.
// It returns nil when no wake was pending.
func (p *Pipeline) Poll() []Notification {
	if !p.signal.Check() {
		return nil
	}
	return p.queue.Drain()
}

// Drain empties the queue without consulting the signal. Hosts use it once
// more after the producers have stopped, so nothing published late is lost.
func (p *Pipeline) Drain() []Notification {
	return p.queue.Drain()
}
