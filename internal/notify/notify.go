package notify

import (
	"log/slog"
	"time"

	"token_ticker/internal/domain"
	"token_ticker/internal/metrics"
)

// Kind names an alert direction.
type Kind string

const (
	KindSurge Kind = "surge"
	KindCrash Kind = "crash"
)

// Alert is the payload published to external bridges.
type Alert struct {
	Kind      Kind    `json:"kind"`
	Symbol    string  `json:"symbol"`
	ChangePct float64 `json:"change_pct"`
	TsUnixMs  int64   `json:"ts_unix_ms"`
}

// LogSink writes alerts to the structured log.
type LogSink struct{}

func (LogSink) NotifySurge(symbol string, changePct float64) {
	slog.Info("🚀 Price surge", slog.String("symbol", symbol), slog.Float64("change_pct", changePct))
}

func (LogSink) NotifyCrash(symbol string, changePct float64) {
	slog.Warn("📉 Price crash", slog.String("symbol", symbol), slog.Float64("change_pct", changePct))
}

// Fanout forwards each alert to every sink and counts it.
type Fanout []domain.AlertSink

func (f Fanout) NotifySurge(symbol string, changePct float64) {
	metrics.Alerts.WithLabelValues(string(KindSurge)).Inc()
	for _, s := range f {
		s.NotifySurge(symbol, changePct)
	}
}

func (f Fanout) NotifyCrash(symbol string, changePct float64) {
	metrics.Alerts.WithLabelValues(string(KindCrash)).Inc()
	for _, s := range f {
		s.NotifyCrash(symbol, changePct)
	}
}

func newAlert(kind Kind, symbol string, changePct float64) Alert {
	return Alert{Kind: kind, Symbol: symbol, ChangePct: changePct, TsUnixMs: time.Now().UnixMilli()}
}
