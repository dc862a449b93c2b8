package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"token_ticker/internal/domain"
	"token_ticker/internal/engine"
	"token_ticker/internal/event"
	"token_ticker/internal/infra"
	"token_ticker/internal/infra/gate"
)

// TickerClient is the REST transport the poller drives.
type TickerClient interface {
	FetchTicker(ctx context.Context, pair string) (domain.Quote, error)
	FetchCandles(ctx context.Context, pair string) ([]float64, error)
	Reset()
	ChartBufferBytes() int
}

// Config holds the scheduling constants.
type Config struct {
	Tick               time.Duration
	FocusInterval      time.Duration
	BackgroundInterval time.Duration
	FocusSettle        time.Duration
	MaxRetries         int
	RateLimitWait      time.Duration
	RetryWait          time.Duration
	StopGrace          time.Duration
	QueueSize          int
	PrefillCharts      int
	MemoryGuardFactor  int
}

// DefaultConfig matches the production cadence.
func DefaultConfig() Config {
	return Config{
		Tick:               2 * time.Second,
		FocusInterval:      10 * time.Second,
		BackgroundInterval: 10 * time.Minute,
		FocusSettle:        3 * time.Second,
		MaxRetries:         2,
		RateLimitWait:      5 * time.Second,
		RetryWait:          1 * time.Second,
		StopGrace:          2 * time.Second,
		QueueSize:          16,
		PrefillCharts:      2,
		MemoryGuardFactor:  5,
	}
}

// Option customizes a Poller.
type Option func(*Poller)

// WithClock overrides time.Now. Use the same clock as the PriceStore.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// WithSleep overrides the retry wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) { p.sleep = sleep }
}

// WithMemoryProbe overrides the free-memory source of the chart guard.
func WithMemoryProbe(probe infra.MemoryProbe) Option {
	return func(p *Poller) { p.memProbe = probe }
}

// Poller is the single REST fetch loop. It serves, in priority order each
// tick: a settled focus change, one chart backfill, the focused token, and
// one background token.
type Poller struct {
	cfg    Config
	client TickerClient
	feed   *engine.Feed
	store  *engine.PriceStore

	events *event.Queue
	settle *infra.Debouncer[int]

	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	memProbe infra.MemoryProbe

	// latest focus passed to OnFocusChanged
	requested atomic.Int32

	// loop-owned
	pendingFocus int
	settledFocus int
	priority     int
	chartLoaded  []bool
	bgCursor     int

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

// New creates a poller over the feed's store.
func New(client TickerClient, feed *engine.Feed, cfg Config, opts ...Option) *Poller {
	def := DefaultConfig()
	if cfg.Tick <= 0 {
		cfg.Tick = def.Tick
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MemoryGuardFactor <= 0 {
		cfg.MemoryGuardFactor = def.MemoryGuardFactor
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = def.StopGrace
	}

	store := feed.Store()
	p := &Poller{
		cfg:          cfg,
		client:       client,
		feed:         feed,
		store:        store,
		events:       event.NewQueue(cfg.QueueSize),
		now:          time.Now,
		sleep:        sleepCtx,
		memProbe:     infra.AvailableMemory,
		pendingFocus: -1,
		settledFocus: store.Focus(),
		priority:     -1,
		chartLoaded:  make([]bool, store.Len()),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.requested.Store(int32(p.settledFocus))

	for i := range p.chartLoaded {
		if tok, _ := store.Token(i); tok.IsStablecoin() {
			p.chartLoaded[i] = true
		}
	}

	p.settle = infra.NewDebouncer(cfg.FocusSettle, func(idx int) {
		p.events.Post(event.Control{Type: event.EvFocusSettled, Index: idx})
	})
	return p
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// OnFocusChanged tells the poller the user moved focus to idx. The fetch
// happens once focus has rested for the settle delay; until then the focused
// poll is paused. Never blocks.
func (p *Poller) OnFocusChanged(idx int) {
	p.requested.Store(int32(idx))
	p.settle.Trigger(idx)
}

// PrioritizeChart moves idx to the front of the chart backfill.
func (p *Poller) PrioritizeChart(idx int) {
	p.post(event.Control{Type: event.EvPrioritizeChart, Index: idx})
}

// InvalidateChart makes idx eligible for backfill again.
func (p *Poller) InvalidateChart(idx int) {
	p.post(event.Control{Type: event.EvChartInvalidated, Index: idx})
}

func (p *Poller) post(ev event.Control) {
	if p.events.Post(ev) {
		slog.Warn("Poller event queue full, dropped oldest", slog.String("type", ev.Type.String()))
	}
}

func (p *Poller) fetchable(idx int) (domain.TokenInfo, bool) {
	tok, ok := p.store.Token(idx)
	if !ok || tok.IsStablecoin() {
		return tok, false
	}
	return tok, true
}

// FirstFetch loads every token once, then prefills the first charts.
// It returns how many tokens received a quote.
func (p *Poller) FirstFetch(ctx context.Context) int {
	loaded := 0
	for i := 0; i < p.store.Len(); i++ {
		if ctx.Err() != nil {
			return loaded
		}
		if _, ok := p.fetchable(i); !ok {
			continue
		}
		if p.fetchTicker(ctx, i) {
			loaded++
		}
	}

	filled := 0
	for i := 0; i < p.store.Len() && filled < p.cfg.PrefillCharts; i++ {
		if ctx.Err() != nil {
			break
		}
		if _, ok := p.fetchable(i); !ok {
			continue
		}
		if p.lowMemory() {
			slog.Warn("Skipping chart prefill: low memory")
			break
		}
		p.fetchChart(ctx, i)
		filled++
	}

	slog.Info("First fetch complete", slog.Int("loaded", loaded), slog.Int("tokens", p.store.Len()))
	return loaded
}

// Start runs the tick loop until ctx is done or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

// Stop cancels the loop and waits up to StopGrace for it to exit.
func (p *Poller) Stop() bool {
	p.settle.Stop()

	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return true
	}
	cancel()

	select {
	case <-done:
		return true
	case <-time.After(p.cfg.StopGrace):
		slog.Warn("Poller did not stop in time", slog.Duration("grace", p.cfg.StopGrace))
		return false
	}
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Poller panic recovered", slog.Any("panic", r))
		}
	}()

	ticker := time.NewTicker(p.cfg.Tick)
	defer ticker.Stop()

	slog.Info("🔁 Poller started", slog.Duration("tick", p.cfg.Tick))
	for {
		select {
		case <-ctx.Done():
			slog.Info("Poller stopped")
			return
		case ev := <-p.events.C():
			p.handle(ev)
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) handle(ev event.Control) {
	switch ev.Type {
	case event.EvFocusSettled:
		// a settle queued behind a newer focus change is stale
		if ev.Index != int(p.requested.Load()) {
			slog.Debug("Dropped superseded focus", slog.Int("index", ev.Index))
			return
		}
		p.pendingFocus = ev.Index
		p.settledFocus = ev.Index
	case event.EvPrioritizeChart:
		p.priority = ev.Index
	case event.EvChartInvalidated:
		if ev.Index >= 0 && ev.Index < len(p.chartLoaded) {
			if _, ok := p.fetchable(ev.Index); ok {
				p.chartLoaded[ev.Index] = false
			}
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	for _, ev := range p.events.Drain() {
		p.handle(ev)
	}

	if idx := p.pendingFocus; idx >= 0 {
		p.pendingFocus = -1
		if _, ok := p.fetchable(idx); ok {
			p.fetchTicker(ctx, idx)
		}
	}
	if ctx.Err() != nil {
		return
	}

	if idx := p.nextChart(); idx >= 0 {
		if p.lowMemory() {
			slog.Debug("Chart backfill deferred: low memory")
		} else if p.fetchChart(ctx, idx) && idx == p.priority {
			p.priority = -1
		}
	}
	if ctx.Err() != nil {
		return
	}

	now := p.now()
	focus := p.settledFocus
	settling := focus != int(p.requested.Load())
	if _, ok := p.fetchable(focus); ok && !settling && now.Sub(p.store.LastFetch(focus)) >= p.cfg.FocusInterval {
		p.fetchTicker(ctx, focus)
	}
	if ctx.Err() != nil {
		return
	}

	if idx := p.nextBackground(now, focus); idx >= 0 {
		p.fetchTicker(ctx, idx)
	}
}

// nextChart picks the priority slot if it still needs a chart, else the
// first slot without one.
func (p *Poller) nextChart() int {
	if i := p.priority; i >= 0 && i < len(p.chartLoaded) {
		if !p.chartLoaded[i] {
			return i
		}
		p.priority = -1
	}
	for i, ok := range p.chartLoaded {
		if !ok {
			return i
		}
	}
	return -1
}

func (p *Poller) nextBackground(now time.Time, focus int) int {
	n := p.store.Len()
	for i := 0; i < n; i++ {
		idx := (p.bgCursor + i) % n
		if idx == focus {
			continue
		}
		if _, ok := p.fetchable(idx); !ok {
			continue
		}
		if now.Sub(p.store.LastFetch(idx)) >= p.cfg.BackgroundInterval {
			p.bgCursor = (idx + 1) % n
			return idx
		}
	}
	return -1
}

func (p *Poller) lowMemory() bool {
	need := uint64(p.cfg.MemoryGuardFactor * p.client.ChartBufferBytes())
	return infra.LowMemory(p.memProbe, need)
}

func (p *Poller) fetchTicker(ctx context.Context, idx int) bool {
	tok, _ := p.store.Token(idx)
	var quote domain.Quote
	err := p.withRetry(ctx, tok.Pair, func() error {
		q, err := p.client.FetchTicker(ctx, tok.Pair)
		quote = q
		return err
	})
	if err != nil {
		return false
	}
	p.feed.UpdatePrice(idx, quote)
	return true
}

func (p *Poller) fetchChart(ctx context.Context, idx int) bool {
	tok, _ := p.store.Token(idx)
	var closes []float64
	err := p.withRetry(ctx, tok.Pair, func() error {
		c, err := p.client.FetchCandles(ctx, tok.Pair)
		closes = c
		return err
	})
	if err != nil {
		return false
	}
	p.feed.SeedHistory(idx, closes)
	p.chartLoaded[idx] = true
	slog.Debug("Chart loaded", slog.String("pair", tok.Pair), slog.Int("points", len(closes)))
	return true
}

// withRetry runs fn up to MaxRetries+1 times. A 429 waits RateLimitWait and
// keeps the client; anything else recreates the client and waits RetryWait.
func (p *Poller) withRetry(ctx context.Context, pair string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := p.cfg.RetryWait
		if errors.Is(err, gate.ErrRateLimited) {
			wait = p.cfg.RateLimitWait
		} else {
			p.client.Reset()
		}

		slog.Warn("Fetch failed",
			slog.String("pair", pair),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)
		if attempt == p.cfg.MaxRetries {
			break
		}
		if serr := p.sleep(ctx, wait); serr != nil {
			return serr
		}
	}
	slog.Warn("Fetch abandoned", slog.String("pair", pair), slog.Any("error", err))
	return err
}
