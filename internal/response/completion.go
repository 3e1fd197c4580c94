package response

import "sync"

// Completion is a one-shot signal fired when a response is finalized.
// Listeners registered before the signal fires are called exactly once, in
// registration order. Listeners registered afterwards are called immediately.
type Completion struct {
	mu        sync.Mutex
	done      chan struct{}
	fired     bool
	status    int
	listeners []func(status int)
}

// NewCompletion creates an unfired Completion.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Fire delivers the signal with the final status code. It returns false if
// the signal had already fired; listeners are never called twice.
func (c *Completion) Fire(status int) bool {
	c.mu.Lock()
	if c.fired {
		c.mu.Unlock()
		return false
	}
	c.fired = true
	c.status = status
	listeners := c.listeners
	c.listeners = nil
	c.mu.Unlock()

	// Listeners run before Done is closed so anything they record is
	// visible to whoever wakes up on Done.
	for _, fn := range listeners {
		fn(status)
	}
	close(c.done)
	return true
}

// Subscribe registers fn for the signal.
func (c *Completion) Subscribe(fn func(status int)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	if c.fired {
		status := c.status
		c.mu.Unlock()
		fn(status)
		return
	}
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Done returns a channel closed once the signal fired and its listeners ran.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}
