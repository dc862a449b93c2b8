package engine

import (
	"token_ticker/internal/domain"
	"token_ticker/internal/metrics"
)

// Source labels where an update came from.
type Source string

const (
	SourceREST   Source = "rest"
	SourceStream Source = "stream"
)

// Feed is the single write path into the PriceStore for both network sources.
// After every write it evaluates alerts for the focused slot and wakes readers.
type Feed struct {
	store   *PriceStore
	alerts  *domain.AlertEvaluator
	changed chan struct{}
}

// NewFeed wires a store to an alert evaluator. alerts may be nil.
func NewFeed(store *PriceStore, alerts *domain.AlertEvaluator) *Feed {
	return &Feed{
		store:   store,
		alerts:  alerts,
		changed: make(chan struct{}, 1),
	}
}

// Store exposes the underlying store for reads.
func (f *Feed) Store() *PriceStore { return f.store }

// Changed fires (coalesced) after each applied write.
func (f *Feed) Changed() <-chan struct{} { return f.changed }

// UpdatePrice applies a polled quote.
func (f *Feed) UpdatePrice(idx int, q domain.Quote) {
	tok, ok := f.store.Token(idx)
	if !ok || tok.IsStablecoin() {
		return
	}
	sampled := f.store.Update(idx, q)
	f.after(idx, tok, q, sampled, SourceREST)
}

// UpdatePriceStreaming applies a pushed quote; ignored unless idx is focused.
func (f *Feed) UpdatePriceStreaming(idx int, q domain.Quote, latencyMs int64) bool {
	applied, sampled := f.store.UpdateStreaming(idx, q, latencyMs)
	if !applied {
		return false
	}
	tok, _ := f.store.Token(idx)
	metrics.StreamLatency.Set(float64(latencyMs))
	f.after(idx, tok, q, sampled, SourceStream)
	return true
}

// SeedHistory replaces slot idx's chart with backfilled closes.
func (f *Feed) SeedHistory(idx int, prices []float64) bool {
	if !f.store.SeedHistory(idx, prices) {
		return false
	}
	f.notify()
	return true
}

func (f *Feed) after(idx int, tok domain.TokenInfo, q domain.Quote, sampled bool, src Source) {
	metrics.PriceUpdates.WithLabelValues(tok.Symbol, string(src)).Inc()
	metrics.LastPrice.WithLabelValues(tok.Symbol).Set(q.Price)
	if sampled {
		metrics.HistorySamples.WithLabelValues(tok.Symbol).Inc()
	}

	if f.alerts != nil && idx == f.store.Focus() {
		f.alerts.Evaluate(tok.Symbol, q.ChangePct)
	}
	f.notify()
}

func (f *Feed) notify() {
	select {
	case f.changed <- struct{}{}:
	default:
	}
}
