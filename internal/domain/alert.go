package domain

import "sync"

// AlertSink receives edge-triggered alerts. Implementations must not block.
type AlertSink interface {
	NotifySurge(symbol string, changePct float64)
	NotifyCrash(symbol string, changePct float64)
}

// AlertThresholds configures the hysteresis bands (percent).
type AlertThresholds struct {
	SurgeFire  float64 `yaml:"surge_fire"`
	SurgeRearm float64 `yaml:"surge_rearm"`
	CrashFire  float64 `yaml:"crash_fire"`
	CrashRearm float64 `yaml:"crash_rearm"`
}

// DefaultAlertThresholds fires at ±5% and re-arms inside ±3%.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		SurgeFire:  5.0,
		SurgeRearm: 3.0,
		CrashFire:  -5.0,
		CrashRearm: -3.0,
	}
}

// AlertEvaluator turns the focused token's 24h change into one-shot
// surge/crash notifications. State is shared across focus changes.
type AlertEvaluator struct {
	mu         sync.Mutex
	sink       AlertSink
	th         AlertThresholds
	surgeFired bool
	crashFired bool
}

// NewAlertEvaluator creates an evaluator. A nil sink disables notification but
// still tracks state.
func NewAlertEvaluator(sink AlertSink, th AlertThresholds) *AlertEvaluator {
	return &AlertEvaluator{sink: sink, th: th}
}

// Evaluate checks one observation. Returns which alerts fired.
func (a *AlertEvaluator) Evaluate(symbol string, changePct float64) (surge, crash bool) {
	a.mu.Lock()
	if !a.surgeFired && changePct >= a.th.SurgeFire {
		a.surgeFired = true
		surge = true
	} else if a.surgeFired && changePct < a.th.SurgeRearm {
		a.surgeFired = false
	}

	if !a.crashFired && changePct <= a.th.CrashFire {
		a.crashFired = true
		crash = true
	} else if a.crashFired && changePct > a.th.CrashRearm {
		a.crashFired = false
	}
	sink := a.sink
	a.mu.Unlock()

	// notify outside the lock
	if sink != nil {
		if surge {
			sink.NotifySurge(symbol, changePct)
		}
		if crash {
			sink.NotifyCrash(symbol, changePct)
		}
	}
	return surge, crash
}

// Armed reports whether each direction can currently fire.
func (a *AlertEvaluator) Armed() (surge, crash bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.surgeFired, !a.crashFired
}
