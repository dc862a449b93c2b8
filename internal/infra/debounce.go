package infra

import (
	"sync"
	"time"
)

// Debouncer delivers only the most recent value once no new value has arrived
// for the configured delay. Each Trigger restarts the timer.
type Debouncer[T any] struct {
	mu    sync.Mutex
	delay time.Duration
	fire  func(T)
	timer *time.Timer
	seq   uint64
}

// NewDebouncer creates a debouncer that calls fire on its own goroutine.
func NewDebouncer[T any](delay time.Duration, fire func(T)) *Debouncer[T] {
	return &Debouncer[T]{delay: delay, fire: fire}
}

// Trigger schedules v, replacing any value still waiting.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		stale := seq != d.seq
		d.mu.Unlock()
		if !stale {
			d.fire(v)
		}
	})
}

// Stop cancels any pending value.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
