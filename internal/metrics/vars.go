package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PriceUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ticker_price_updates_total",
		Help: "Price updates applied to the store, by source",
	}, []string{"symbol", "source"})

	HistorySamples = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ticker_history_samples_total",
		Help: "Samples appended to the chart history ring",
	}, []string{"symbol"})

	LastPrice = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ticker_last_price_usd",
		Help: "Last known price per token",
	}, []string{"symbol"})

	FetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ticker_fetch_errors_total",
		Help: "REST fetch failures, by kind (rate_limited, status, transport, parse)",
	}, []string{"kind"})

	FetchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ticker_fetch_latency_seconds",
		Help:    "REST request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	ClientResets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ticker_http_client_resets_total",
		Help: "HTTP client recreations after non-rate-limit failures",
	})

	StreamLatency = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ticker_stream_latency_ms",
		Help: "Receipt time minus server time of the last stream update",
	})

	StreamConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ticker_stream_connected",
		Help: "1 while the streaming connection is up",
	})

	Alerts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ticker_alerts_total",
		Help: "Surge/crash notifications emitted",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		PriceUpdates,
		HistorySamples,
		LastPrice,
		FetchErrors,
		FetchLatency,
		ClientResets,
		StreamLatency,
		StreamConnected,
		Alerts,
	)
}
