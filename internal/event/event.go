// Package event provides ordered, synchronous listener lists.
//
// Listeners run inline on the goroutine that calls Emit, in the order they were added.
// A listener must not trigger another update of the source that emitted the event.
package event

import "sync"

// Subscription is returned by List.Add and removes the listener when cancelled.
type Subscription struct {
	cancel func()
}

// Cancel removes the listener. Cancelling twice is a no-op.
func (s Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

// List is an ordered set of listeners for events of type T.
// The zero value is ready to use.
type List[T any] struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []listener[T]
}

// Add appends fn to the list. A nil fn is ignored.
func (l *List[T]) Add(fn func(T)) Subscription {
	if fn == nil {
		return Subscription{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	l.listeners = append(l.listeners, listener[T]{id: id, fn: fn})

	return Subscription{cancel: func() { l.remove(id) }}
}

func (l *List[T]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, ln := range l.listeners {
		if ln.id == id {
			l.listeners = append(l.listeners[:i:i], l.listeners[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered listeners.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.listeners)
}

// Emit calls every listener with v. Listeners added or removed during Emit
// take effect on the next call.
func (l *List[T]) Emit(v T) {
	l.mu.Lock()
	if len(l.listeners) == 0 {
		l.mu.Unlock()
		return
	}
	snapshot := make([]listener[T], len(l.listeners))
	copy(snapshot, l.listeners)
	l.mu.Unlock()

	for _, ln := range snapshot {
		ln.fn(v)
	}
}

// Clear removes all listeners.
func (l *List[T]) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = nil
}
