// Package debounce provides a generic per-key trailing-edge coalescer
package debounce

import (
	"sync"
	"time"
)

// DefaultWindow is the quiescence window used when none is configured.
const DefaultWindow = 300 * time.Millisecond

// Coalescer delivers at most one payload per key per quiescence window,
// always the most recent one. Keys debounce independently. Delivery runs
// the emit callback on a timer goroutine; the callback must be safe for
// concurrent use across keys.
type Coalescer[K comparable, V any] struct {
	window time.Duration
	emit   func(K, V)

	mu      sync.Mutex
	pending map[K]*entry[V]
	stopped bool
}

type entry[V any] struct {
	timer   *time.Timer
	payload V
	gen     uint64 // отсекает выстрел старого таймера после Reset/Submit
}

// New builds a Coalescer delivering through emit after window of quiet per key.
func New[K comparable, V any](window time.Duration, emit func(K, V)) *Coalescer[K, V] {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Coalescer[K, V]{
		window:  window,
		emit:    emit,
		pending: make(map[K]*entry[V]),
	}
}

// Submit schedules payload for key. A submit arriving before the window
// elapses replaces the pending payload and restarts the window.
func (c *Coalescer[K, V]) Submit(key K, payload V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	e, ok := c.pending[key]
	if !ok {
		e = &entry[V]{}
		c.pending[key] = e
	} else {
		e.timer.Stop()
	}
	e.payload = payload
	e.gen++
	gen := e.gen
	e.timer = time.AfterFunc(c.window, func() { c.fire(key, gen) })
}

func (c *Coalescer[K, V]) fire(key K, gen uint64) {
	c.mu.Lock()
	e, ok := c.pending[key]
	if !ok || c.stopped || e.gen != gen {
		c.mu.Unlock()
		return
	}
	delete(c.pending, key)
	payload := e.payload
	c.mu.Unlock()

	c.emit(key, payload)
}

// Flush delivers the pending payload for key immediately, if any.
func (c *Coalescer[K, V]) Flush(key K) {
	c.mu.Lock()
	e, ok := c.pending[key]
	if !ok || c.stopped {
		c.mu.Unlock()
		return
	}
	e.timer.Stop()
	delete(c.pending, key)
	payload := e.payload
	c.mu.Unlock()

	c.emit(key, payload)
}

// FlushAll delivers every pending payload immediately.
func (c *Coalescer[K, V]) FlushAll() {
	c.mu.Lock()
	keys := make([]K, 0, len(c.pending))
	for k := range c.pending {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.Flush(k)
	}
}

// CancelAll drops every pending window without delivering. The coalescer
// stays usable - this is the "batch cleared" path.
func (c *Coalescer[K, V]) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.pending {
		e.timer.Stop()
		delete(c.pending, k)
	}
}

// Stop cancels all pending windows and refuses further submits. Terminal.
func (c *Coalescer[K, V]) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	for k, e := range c.pending {
		e.timer.Stop()
		delete(c.pending, k)
	}
}

// PendingCount reports how many keys are waiting for their window to elapse.
func (c *Coalescer[K, V]) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
