// Package broadcast fans values out to any number of slow consumers.
package broadcast

import "sync"

// Broadcaster provides listener management and broadcasting of values such
// as preview frames and locker events. Listeners that fall behind miss values
// instead of blocking the sender.
type Broadcaster[T any] struct {
	buffer    int
	listeners []chan T
	last      T
	hasLast   bool
	closed    bool
	mu        sync.RWMutex
}

// New creates a broadcaster whose listener channels hold buffer values.
func New[T any](buffer int) *Broadcaster[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Broadcaster[T]{buffer: buffer}
}

// AddListener adds a listener. On a closed broadcaster the returned channel
// is already closed.
func (b *Broadcaster[T]) AddListener() chan T {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan T, b.buffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes a listener and closes its channel.
func (b *Broadcaster[T]) RemoveListener(ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Send delivers v to every listener and remembers it as the latest value.
func (b *Broadcaster[T]) Send(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.last = v
	b.hasLast = true
	for _, listener := range b.listeners {
		select {
		case listener <- v:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Last returns the most recently sent value.
func (b *Broadcaster[T]) Last() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last, b.hasLast
}

// Listeners returns how many listeners are attached.
func (b *Broadcaster[T]) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Close closes every listener channel; later sends are ignored.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, listener := range b.listeners {
		close(listener)
	}
	b.listeners = nil
}
