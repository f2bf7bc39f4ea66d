package store

import "sync"

// Readable is a read-only observable value.
type Readable[T any] interface {
	// Get returns the current value.
	Get() T
	// Subscribe registers fn to run after every change and returns a
	// function that removes it. fn is not called with the current value.
	Subscribe(fn func(T)) (unsubscribe func())
}

// Signal is a writable observable value. Subscribers run synchronously on
// the goroutine that made the change, after the signal's lock is released,
// so they may read or write signals themselves. A write made while an
// earlier one is still notifying takes over: the earlier write stops
// delivering, so every subscriber's last value is the current one.
type Signal[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
	equal   func(a, b T) bool
	subs    map[uint64]func(T)
	nextID  uint64
}

// NewSignal creates a signal that notifies on every write.
func NewSignal[T any](initial T) *Signal[T] {
	return &Signal[T]{value: initial, subs: make(map[uint64]func(T))}
}

// NewComparableSignal creates a signal that skips notification when the new
// value equals the current one.
func NewComparableSignal[T comparable](initial T) *Signal[T] {
	s := NewSignal(initial)
	s.equal = func(a, b T) bool { return a == b }
	return s
}

func (s *Signal[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value.
func (s *Signal[T]) Set(v T) {
	s.Update(func(T) (T, bool) { return v, true })
}

// Update applies fn to the current value atomically. If fn reports no change
// the value is kept and nobody is notified.
func (s *Signal[T]) Update(fn func(current T) (next T, changed bool)) {
	s.mu.Lock()
	next, changed := fn(s.value)
	if !changed || (s.equal != nil && s.equal(s.value, next)) {
		s.mu.Unlock()
		return
	}
	s.value = next
	s.version++
	version := s.version
	subs := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		if !s.current(version) {
			return
		}
		fn(next)
	}
}

// current reports whether no write happened after the one numbered version.
func (s *Signal[T]) current(version uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version == version
}

func (s *Signal[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// ReadOnly hides the write methods of s.
func (s *Signal[T]) ReadOnly() Readable[T] {
	return readOnly[T]{s}
}

type readOnly[T any] struct {
	s *Signal[T]
}

func (r readOnly[T]) Get() T                      { return r.s.Get() }
func (r readOnly[T]) Subscribe(fn func(T)) func() { return r.s.Subscribe(fn) }

// Derived is a value computed from a source on every read. Nothing is cached.
type Derived[S, T any] struct {
	src Readable[S]
	fn  func(S) T
}

// Derive returns a view of src transformed by fn.
func Derive[S, T any](src Readable[S], fn func(S) T) *Derived[S, T] {
	return &Derived[S, T]{src: src, fn: fn}
}

func (d *Derived[S, T]) Get() T {
	return d.fn(d.src.Get())
}

func (d *Derived[S, T]) Subscribe(fn func(T)) func() {
	return d.src.Subscribe(func(v S) { fn(d.fn(v)) })
}
