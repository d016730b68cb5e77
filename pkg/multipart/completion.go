package multipart

import "sync"

// completion fires a terminal signal once the upstream has finished and
// every part it started has finished too, or immediately on failure.
// The signal fires exactly once and never under the lock.
type completion struct {
	mu           sync.Mutex
	inflight     int
	upstreamDone bool
	result       error
	fired        bool
	signal       func(error)
}

func newCompletion(signal func(error)) *completion {
	return &completion{signal: signal}
}

// itemStarted registers a new part. Starting a part after the upstream
// completed is a decoder bug.
func (c *completion) itemStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.upstreamDone {
		panic("multipart: part started after upstream completed")
	}
	c.inflight++
}

// itemCompleted retires a part.
func (c *completion) itemCompleted() {
	c.mu.Lock()
	if c.inflight == 0 {
		c.mu.Unlock()
		panic("multipart: part completed more often than started")
	}
	c.inflight--
	fire := c.inflight == 0 && c.upstreamDone && !c.fired
	if fire {
		c.fired = true
	}
	result := c.result
	c.mu.Unlock()

	if fire {
		c.signal(result)
	}
}

// upstreamCompleted records that no more parts will start. result is the
// terminal value reported once all parts are retired.
func (c *completion) upstreamCompleted(result error) {
	c.mu.Lock()
	if c.upstreamDone {
		c.mu.Unlock()
		return
	}
	c.upstreamDone = true
	c.result = result
	fire := c.inflight == 0 && !c.fired
	if fire {
		c.fired = true
	}
	c.mu.Unlock()

	if fire {
		c.signal(result)
	}
}

// fail fires err right away unless a terminal signal already fired.
func (c *completion) fail(err error) {
	c.mu.Lock()
	c.upstreamDone = true
	if c.fired {
		c.mu.Unlock()
		return
	}
	c.fired = true
	c.result = err
	c.mu.Unlock()

	c.signal(err)
}
