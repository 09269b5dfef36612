package tz

import (
	"fmt"
	"sync/atomic"
)

// InitState is the initialization state of a LazyBackend.
type InitState int32

const (
	Uninitialized InitState = iota
	Initializing
	Ready
	Failed
)

func (s InitState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("InitState(%d)", int32(s))
	}
}

// LazyBackend is a CalendarBackend that acquires the real backend on first
// use. Exactly one caller runs the initializer; concurrent callers wait for
// its outcome. A failed initialization is never retried.
type LazyBackend struct {
	init func() (CalendarBackend, error)

	state   atomic.Int32
	done    chan struct{}
	backend CalendarBackend
	err     error
}

// Lazy returns a LazyBackend that obtains its backend from init.
func Lazy(init func() (CalendarBackend, error)) *LazyBackend {
	return &LazyBackend{init: init, done: make(chan struct{})}
}

// State returns the current initialization state.
func (l *LazyBackend) State() InitState {
	return InitState(l.state.Load())
}

// Acquire returns the initialized backend, running the initializer if no
// caller has done so yet. The error matches ErrBackendUnavailable.
func (l *LazyBackend) Acquire() (CalendarBackend, error) {
	if l.state.CompareAndSwap(int32(Uninitialized), int32(Initializing)) {
		l.run()
	}
	// backend and err are published by closing done.
	<-l.done
	return l.backend, l.err
}

func (l *LazyBackend) run() {
	state := Failed
	defer func() {
		l.state.Store(int32(state))
		close(l.done)
	}()
	defer func() {
		if r := recover(); r != nil {
			l.backend = nil
			l.err = fmt.Errorf("%w: initializer panicked: %v", ErrBackendUnavailable, r)
		}
	}()

	b, err := l.init()
	switch {
	case err != nil:
		l.err = fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	case b == nil:
		l.err = fmt.Errorf("%w: initializer returned no backend", ErrBackendUnavailable)
	default:
		l.backend = b
		state = Ready
	}
}

// Open acquires the backend and opens zone with it.
func (l *LazyBackend) Open(zone string) (Handle, error) {
	b, err := l.Acquire()
	if err != nil {
		return nil, err
	}
	return b.Open(zone)
}
