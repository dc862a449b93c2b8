package event

import "testing"

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(4)
	q.Post(Control{Type: EvFocusSettled, Index: 1})
	q.Post(Control{Type: EvPrioritizeChart, Index: 2})

	got := q.Drain()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Type != EvFocusSettled || got[1].Index != 2 {
		t.Errorf("unexpected order: %+v", got)
	}
	if len(q.Drain()) != 0 {
		t.Error("queue should be empty after drain")
	}
}

func TestQueue_DropsOldestWhenFull(t *testing.T) {
	q := NewQueue(3)

	dropped := 0
	for i := 0; i < 5; i++ {
		if q.Post(Control{Type: EvFocusSettled, Index: i}) {
			dropped++
		}
	}
	if dropped != 2 {
		t.Errorf("expected 2 drops, got %d", dropped)
	}

	got := q.Drain()
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Index != 2 || got[2].Index != 4 {
		t.Errorf("expected newest events to survive, got %+v", got)
	}
}

func TestType_String(t *testing.T) {
	if EvFocusSettled.String() != "focus_settled" {
		t.Errorf("unexpected name %q", EvFocusSettled.String())
	}
	if Type(99).String() != "unknown" {
		t.Error("unknown type should say so")
	}
}
