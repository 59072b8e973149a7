package backend

import "sync"

// CancelSignal is the shared boolean-valued cancellation channel the
// design spec calls for: a Driver can set it from a signal handler or a
// control command, and an in-flight Executor polls or selects on it to
// begin its SIGTERM→grace→SIGKILL sequence.
type CancelSignal struct {
	mu   sync.Mutex
	set  bool
	done chan struct{}
}

// NewCancelSignal returns an unset signal.
func NewCancelSignal() *CancelSignal {
	return &CancelSignal{done: make(chan struct{})}
}

// Cancel marks the signal as set. It is safe to call more than once.
func (c *CancelSignal) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set {
		c.set = true
		close(c.done)
	}
}

// Cancelled reports whether Cancel has been called.
func (c *CancelSignal) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set
}

// Done returns a channel that closes when Cancel is called, for use in a
// select alongside idle-timeout and process-exit cases.
func (c *CancelSignal) Done() <-chan struct{} {
	return c.done
}
