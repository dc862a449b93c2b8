package infra

import (
	"time"
)

const (
	// Standard backoff constants
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// Backoff is an exponential delay schedule: Base * 2^retry, capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before the given retry.
// A negative retry count returns Base.
func (b Backoff) Delay(retryCount int) time.Duration {
	base, ceiling := b.Base, b.Max
	if base <= 0 {
		base = baseDelay
	}
	if ceiling <= 0 {
		ceiling = maxDelay
	}
	if retryCount < 0 {
		return base
	}

	// 2^30 seconds is already past any sane ceiling
	if retryCount > 30 {
		return ceiling
	}

	backoff := base * time.Duration(1<<retryCount)
	if backoff > ceiling || backoff <= 0 {
		return ceiling
	}
	return backoff
}
