package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"token_ticker/internal/domain"
)

// SampleInterval is the minimum spacing between history samples.
const SampleInterval = 30 * time.Minute

// SlotView is a consistent copy of one slot, taken under its lock.
type SlotView struct {
	Token     domain.TokenInfo
	Quote     domain.Quote
	History   []float64
	Loaded    bool
	LastFetch time.Time
	LatencyMs int64
}

type slot struct {
	mu         sync.Mutex
	token      domain.TokenInfo
	quote      domain.Quote
	history    History
	lastSample time.Time
	loaded     bool
	lastFetch  time.Time
	latencyMs  int64
}

// PriceStore holds the latest quote and chart history of each active token.
// Each slot is written as one tuple under its own mutex; readers get copies.
type PriceStore struct {
	slots          []*slot
	focus          atomic.Int32
	now            func() time.Time
	sampleInterval time.Duration
}

// StoreOption customizes a PriceStore.
type StoreOption func(*PriceStore)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *PriceStore) { s.now = now }
}

// WithSampleInterval overrides SampleInterval.
func WithSampleInterval(d time.Duration) StoreOption {
	return func(s *PriceStore) { s.sampleInterval = d }
}

// NewPriceStore creates one slot per token. Stablecoins start pegged and loaded.
func NewPriceStore(tokens []domain.TokenInfo, opts ...StoreOption) *PriceStore {
	s := &PriceStore{
		slots:          make([]*slot, len(tokens)),
		now:            time.Now,
		sampleInterval: SampleInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	for i, t := range tokens {
		sl := &slot{token: t}
		if t.IsStablecoin() {
			sl.quote = domain.StableQuote
			sl.loaded = true
		}
		s.slots[i] = sl
	}
	return s
}

func (s *PriceStore) slot(idx int) *slot {
	if idx < 0 || idx >= len(s.slots) {
		return nil
	}
	return s.slots[idx]
}

// Len returns the number of active tokens.
func (s *PriceStore) Len() int { return len(s.slots) }

// Token returns the metadata of slot idx.
func (s *PriceStore) Token(idx int) (domain.TokenInfo, bool) {
	sl := s.slot(idx)
	if sl == nil {
		return domain.TokenInfo{}, false
	}
	return sl.token, true
}

// Focus returns the focused slot index.
func (s *PriceStore) Focus() int { return int(s.focus.Load()) }

// SetFocus moves focus; out-of-range indices are rejected.
func (s *PriceStore) SetFocus(idx int) bool {
	if s.slot(idx) == nil {
		return false
	}
	s.focus.Store(int32(idx))
	return true
}

// Update applies a polled quote. It reports whether a history sample was taken.
func (s *PriceStore) Update(idx int, q domain.Quote) (sampled bool) {
	return s.apply(idx, q, -1)
}

// UpdateStreaming applies a pushed quote, but only to the focused slot.
func (s *PriceStore) UpdateStreaming(idx int, q domain.Quote, latencyMs int64) (applied, sampled bool) {
	sl := s.slot(idx)
	if idx != s.Focus() || sl == nil || sl.token.IsStablecoin() {
		return false, false
	}
	if latencyMs < 0 {
		latencyMs = 0
	}
	return true, s.apply(idx, q, latencyMs)
}

func (s *PriceStore) apply(idx int, q domain.Quote, latencyMs int64) bool {
	sl := s.slot(idx)
	if sl == nil || sl.token.IsStablecoin() {
		return false
	}
	now := s.now()

	sl.mu.Lock()
	defer sl.mu.Unlock()

	sampled := false
	if sl.lastSample.IsZero() || now.Sub(sl.lastSample) >= s.sampleInterval {
		sl.history.Push(q.Price)
		sl.lastSample = now
		sampled = true
	}
	sl.quote = q
	sl.lastFetch = now
	sl.loaded = true
	if latencyMs >= 0 {
		sl.latencyMs = latencyMs
	}
	return sampled
}

// SeedHistory replaces the chart with backfilled closes, oldest first.
// The loaded flag is left alone: a chart alone does not make a quote.
func (s *PriceStore) SeedHistory(idx int, prices []float64) bool {
	sl := s.slot(idx)
	if sl == nil || len(prices) == 0 {
		return false
	}
	now := s.now()

	sl.mu.Lock()
	sl.history.Replace(prices)
	sl.lastSample = now
	sl.mu.Unlock()
	return true
}

// Slot returns a copy of slot idx.
func (s *PriceStore) Slot(idx int) (SlotView, bool) {
	sl := s.slot(idx)
	if sl == nil {
		return SlotView{}, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return SlotView{
		Token:     sl.token,
		Quote:     sl.quote,
		History:   sl.history.Values(),
		Loaded:    sl.loaded,
		LastFetch: sl.lastFetch,
		LatencyMs: sl.latencyMs,
	}, true
}

// Snapshot copies every slot.
func (s *PriceStore) Snapshot() []SlotView {
	out := make([]SlotView, 0, len(s.slots))
	for i := range s.slots {
		v, _ := s.Slot(i)
		out = append(out, v)
	}
	return out
}

// LastFetch returns when slot idx was last updated, zero if never.
func (s *PriceStore) LastFetch(idx int) time.Time {
	sl := s.slot(idx)
	if sl == nil {
		return time.Time{}
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.lastFetch
}

// Loaded reports whether slot idx has received at least one quote.
func (s *PriceStore) Loaded(idx int) bool {
	sl := s.slot(idx)
	if sl == nil {
		return false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.loaded
}

// AllLoaded reports whether every slot has a quote.
func (s *PriceStore) AllLoaded() bool {
	for i := range s.slots {
		if !s.Loaded(i) {
			return false
		}
	}
	return true
}
