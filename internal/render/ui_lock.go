package render

import "time"

// UILock serializes access to the display surface. Acquire never blocks
// longer than its timeout.
type UILock struct {
	ch chan struct{}
}

// NewUILock returns an unlocked UILock.
func NewUILock() *UILock {
	return &UILock{ch: make(chan struct{}, 1)}
}

// Acquire takes the lock, giving up after timeout.
func (l *UILock) Acquire(timeout time.Duration) bool {
	select {
	case l.ch <- struct{}{}:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case l.ch <- struct{}{}:
		return true
	case <-t.C:
		return false
	}
}

// Release frees the lock. Releasing an unlocked UILock is a no-op.
func (l *UILock) Release() {
	select {
	case <-l.ch:
	default:
	}
}
