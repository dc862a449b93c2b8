package gate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"token_ticker/internal/domain"
	"token_ticker/internal/infra"
	"token_ticker/internal/metrics"
)

var (
	// ErrRateLimited is returned on HTTP 429. The connection stays usable.
	ErrRateLimited = errors.New("rate limited")
	// ErrResponseTooLarge is returned when a body does not fit its buffer.
	ErrResponseTooLarge = errors.New("response exceeds buffer")
)

// StatusError is a non-200, non-429 HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// CandleInterval and CandleLimit describe the 24h chart backfill.
const (
	CandleInterval = "30m"
	CandleLimit    = 48
)

// RESTConfig sizes the client.
type RESTConfig struct {
	BaseURL           string
	RequestTimeout    time.Duration
	HistoryTimeout    time.Duration
	TickerBufferBytes int
	ChartBufferBytes  int
	RequestsPerSecond float64
}

// RESTClient fetches tickers and candles over one reusable HTTP client.
type RESTClient struct {
	cfg     RESTConfig
	limiter *infra.RateLimiter

	mu         sync.Mutex
	httpClient *http.Client

	tickerMu  sync.Mutex
	tickerBuf *bytes.Buffer
}

// NewRESTClient creates a client. Zero fields fall back to the usual defaults.
func NewRESTClient(cfg RESTConfig) *RESTClient {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 8 * time.Second
	}
	if cfg.HistoryTimeout <= 0 {
		cfg.HistoryTimeout = 15 * time.Second
	}
	if cfg.TickerBufferBytes <= 0 {
		cfg.TickerBufferBytes = 2048
	}
	if cfg.ChartBufferBytes <= 0 {
		cfg.ChartBufferBytes = 8192
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}

	return &RESTClient{
		cfg:        cfg,
		limiter:    infra.NewRateLimiter(int(cfg.RequestsPerSecond)+1, cfg.RequestsPerSecond),
		httpClient: newHTTPClient(),
		tickerBuf:  bytes.NewBuffer(make([]byte, 0, cfg.TickerBufferBytes)),
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        4,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// ChartBufferBytes is the per-call allocation of FetchCandles.
func (c *RESTClient) ChartBufferBytes() int { return c.cfg.ChartBufferBytes }

// Reset drops idle connections and replaces the HTTP client.
func (c *RESTClient) Reset() {
	c.mu.Lock()
	old := c.httpClient
	c.httpClient = newHTTPClient()
	c.mu.Unlock()

	old.CloseIdleConnections()
	metrics.ClientResets.Inc()
}

func (c *RESTClient) client() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.httpClient
}

// FetchTicker returns the latest quote for pair.
func (c *RESTClient) FetchTicker(ctx context.Context, pair string) (domain.Quote, error) {
	q := url.Values{}
	q.Set("currency_pair", pair)

	c.tickerMu.Lock()
	defer c.tickerMu.Unlock()

	c.tickerBuf.Reset()
	if err := c.get(ctx, "tickers", "/spot/tickers?"+q.Encode(), c.cfg.RequestTimeout, c.tickerBuf, c.cfg.TickerBufferBytes); err != nil {
		return domain.Quote{}, err
	}

	quote, err := ParseTicker(c.tickerBuf.Bytes())
	if err != nil {
		metrics.FetchErrors.WithLabelValues("parse").Inc()
		return domain.Quote{}, fmt.Errorf("ticker %s: %w", pair, err)
	}
	return quote, nil
}

// FetchCandles returns up to CandleLimit half-hour closes for pair, oldest first.
func (c *RESTClient) FetchCandles(ctx context.Context, pair string) ([]float64, error) {
	q := url.Values{}
	q.Set("currency_pair", pair)
	q.Set("interval", CandleInterval)
	q.Set("limit", strconv.Itoa(CandleLimit))

	buf := bytes.NewBuffer(make([]byte, 0, c.cfg.ChartBufferBytes))
	if err := c.get(ctx, "candlesticks", "/spot/candlesticks?"+q.Encode(), c.cfg.HistoryTimeout, buf, c.cfg.ChartBufferBytes); err != nil {
		return nil, err
	}

	closes, err := ParseCandles(buf.Bytes(), CandleLimit)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("parse").Inc()
		return nil, fmt.Errorf("candles %s: %w", pair, err)
	}
	return closes, nil
}

func (c *RESTClient) get(ctx context.Context, endpoint, path string, timeout time.Duration, dst *bytes.Buffer, limit int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", infra.GetUserAgent())

	start := time.Now()
	resp, err := c.client().Do(req)
	metrics.FetchLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchErrors.WithLabelValues("transport").Inc()
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.FetchErrors.WithLabelValues("rate_limited").Inc()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, int64(limit)))
		return ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		metrics.FetchErrors.WithLabelValues("status").Inc()
		return &StatusError{Code: resp.StatusCode}
	}

	n, err := dst.ReadFrom(io.LimitReader(resp.Body, int64(limit)+1))
	if err != nil {
		metrics.FetchErrors.WithLabelValues("transport").Inc()
		return fmt.Errorf("read %s body: %w", endpoint, err)
	}
	if n > int64(limit) {
		metrics.FetchErrors.WithLabelValues("parse").Inc()
		return fmt.Errorf("%s: %w (%d bytes)", endpoint, ErrResponseTooLarge, limit)
	}
	return nil
}
