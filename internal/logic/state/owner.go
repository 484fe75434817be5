package state

import "time"

// OwnerMutex serializes pulse emission on one axis. Unlike sync.Mutex
// it supports a bounded-wait acquire (automated motion gives up after a
// timeout) and a non-blocking acquire (a button press either seizes the
// axis immediately or is dropped; presses never queue).
type OwnerMutex struct {
	ch chan struct{}
}

func NewOwnerMutex() *OwnerMutex {
	m := &OwnerMutex{ch: make(chan struct{}, 1)}
	m.ch <- struct{}{}
	return m
}

// TryLock acquires ownership only if the axis is currently free.
func (m *OwnerMutex) TryLock() bool {
	select {
	case <-m.ch:
		return true
	default:
		return false
	}
}

// LockTimeout waits up to d for ownership. Returns false on timeout.
func (m *OwnerMutex) LockTimeout(d time.Duration) bool {
	select {
	case <-m.ch:
		return true
	default:
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-m.ch:
		return true
	case <-t.C:
		return false
	}
}

// Unlock releases ownership. Unlocking a free mutex panics, matching
// sync.Mutex semantics.
func (m *OwnerMutex) Unlock() {
	select {
	case m.ch <- struct{}{}:
	default:
		panic("state: unlock of unlocked OwnerMutex")
	}
}
