package dispatch

import (
	"sync"
	"time"
)

// MultiLock counts deliveries currently inside a dispatch call so shutdown
// can wait, bounded, for the subscription to drain.
//
// Acquire and Release never block. Release on an already-empty lock is a
// no-op rather than an error, so unwinding code may release defensively.
type MultiLock struct {
	mu    sync.Mutex
	count int
	empty chan struct{}
}

func NewMultiLock() *MultiLock {
	return &MultiLock{}
}

func (l *MultiLock) Acquire() {
	l.mu.Lock()
	if l.count == 0 {
		l.empty = make(chan struct{})
	}
	l.count++
	l.mu.Unlock()
}

func (l *MultiLock) Release() {
	l.mu.Lock()
	if l.count > 0 {
		l.count--
		if l.count == 0 {
			close(l.empty)
		}
	}
	l.mu.Unlock()
}

// Size returns the number of deliveries currently in flight.
func (l *MultiLock) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func (l *MultiLock) Empty() bool {
	return l.Size() == 0
}

// Wait blocks until the lock empties or timeout elapses, reporting whether
// the lock drained. A non-positive timeout checks once and returns
// immediately.
func (l *MultiLock) Wait(timeout time.Duration) bool {
	l.mu.Lock()
	if l.count == 0 {
		l.mu.Unlock()
		return true
	}
	if timeout <= 0 {
		l.mu.Unlock()
		return false
	}
	empty := l.empty
	l.mu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case <-empty:
		return true
	case <-deadline.C:
		return l.Empty()
	}
}
