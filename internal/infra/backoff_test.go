package infra

import (
	"testing"
	"time"
)

func TestBackoff_Defaults(t *testing.T) {
	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{-1, 1 * time.Second},
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{10, 60 * time.Second},  // max 60s
		{100, 60 * time.Second}, // still max 60s
	}

	for _, tt := range tests {
		if got := (Backoff{}).Delay(tt.retryCount); got != tt.want {
			t.Errorf("Delay(%d) = %s, want %s", tt.retryCount, got, tt.want)
		}
	}
}

func TestBackoff_CustomBase(t *testing.T) {
	b := Backoff{Base: 5 * time.Second, Max: 60 * time.Second}

	if got := b.Delay(0); got != 5*time.Second {
		t.Errorf("Delay(0) = %s, want 5s", got)
	}
	if got := b.Delay(2); got != 20*time.Second {
		t.Errorf("Delay(2) = %s, want 20s", got)
	}
	if got := b.Delay(4); got != 60*time.Second {
		t.Errorf("Delay(4) = %s, want capped 60s", got)
	}
}
