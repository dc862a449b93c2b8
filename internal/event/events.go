package event

import "sync"

// Type defines the type of control event.
type Type uint16

const (
	EvFocusSettled Type = iota + 1
	EvPrioritizeChart
	EvChartInvalidated
)

func (t Type) String() string {
	switch t {
	case EvFocusSettled:
		return "focus_settled"
	case EvPrioritizeChart:
		return "prioritize_chart"
	case EvChartInvalidated:
		return "chart_invalidated"
	default:
		return "unknown"
	}
}

// Control is a scheduling hint addressed to one token slot.
type Control struct {
	Type  Type
	Index int
}

// Queue is a bounded FIFO of control events. When full, the oldest queued
// event is dropped so the newest always gets in.
type Queue struct {
	mu sync.Mutex
	ch chan Control
}

// NewQueue creates a queue holding at most size events.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{ch: make(chan Control, size)}
}

// Post enqueues ev without blocking. It reports whether an older event was dropped.
func (q *Queue) Post(ev Control) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		select {
		case q.ch <- ev:
			return dropped
		default:
		}
		select {
		case <-q.ch:
			dropped = true
		default:
		}
	}
}

// C exposes the receive side for select loops.
func (q *Queue) C() <-chan Control { return q.ch }

// Drain returns every queued event in arrival order.
func (q *Queue) Drain() []Control {
	var out []Control
	for {
		select {
		case ev := <-q.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}
