package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"token_ticker/internal/domain"
	"token_ticker/internal/engine"
	"token_ticker/internal/infra"
	"token_ticker/internal/infra/gate"
	"token_ticker/internal/metrics"
	"token_ticker/internal/notify"
	"token_ticker/internal/poller"
	"token_ticker/internal/render"
	"token_ticker/internal/storage"
)

// Ticker owns every running component of the application.
type Ticker struct {
	Config  *infra.Config
	Tokens  []domain.TokenInfo
	Store   *engine.PriceStore
	Feed    *engine.Feed
	Poller  *poller.Poller
	Stream  *gate.Stream
	Console *render.Console
	DB      *storage.Store

	redis  *notify.RedisSink
	unlock func()

	mu       sync.Mutex
	cancel   context.CancelFunc
	shutdown bool
}

// Bootstrap performs the full startup sequence: config, logger, workspace,
// instance lock, and component wiring. tokens overrides the stored selection
// when non-empty.
func Bootstrap(configPath, tokens string, out io.Writer) (*Ticker, error) {
	slog.Info("🚀 Bootstrapping Token Ticker...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))

	// 3. Workspace & instance lock
	paths := infra.ResolvePaths(infra.GetWorkspaceDir())
	if err := paths.Ensure(); err != nil {
		return nil, err
	}
	unlock, err := infra.AcquireInstanceLock(paths.Lock, cfg.App.Version)
	if err != nil {
		return nil, err
	}

	t, err := New(cfg, paths.DB, tokens, out)
	if err != nil {
		unlock()
		return nil, err
	}
	t.unlock = unlock
	return t, nil
}

// New wires the components against cfg. Settings live in the SQLite file at dbPath.
func New(cfg *infra.Config, dbPath, tokens string, out io.Writer) (*Ticker, error) {
	db, err := storage.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	slog.Info("✅ Settings store initialized (WAL-mode)", slog.String("path", dbPath))

	ctx := context.Background()
	var selection []domain.TokenInfo
	if tokens != "" {
		selection, err = db.SaveTokenSelection(ctx, tokens)
	} else {
		selection, err = db.LoadTokenSelection(ctx, cfg.Tokens.Default)
	}
	if err != nil {
		db.Close()
		return nil, err
	}

	t := &Ticker{Config: cfg, Tokens: selection, DB: db}

	t.Store = engine.NewPriceStore(selection)
	if !t.Store.SetFocus(cfg.Tokens.InitialFocus) {
		slog.Warn("Initial focus out of range, using first token", slog.Int("focus", cfg.Tokens.InitialFocus))
	}

	sinks := notify.Fanout{notify.LogSink{}}
	if cfg.Notify.Redis.Addr != "" {
		t.redis = notify.NewRedisSink(notify.RedisConfig{
			Addr:     cfg.Notify.Redis.Addr,
			Password: cfg.Notify.Redis.Password,
			DB:       cfg.Notify.Redis.DB,
			Channel:  cfg.Notify.Redis.Channel,
		})
		sinks = append(sinks, t.redis)
		slog.Info("✅ Redis alert bridge ready", slog.String("channel", cfg.Notify.Redis.Channel))
	}
	alerts := domain.NewAlertEvaluator(sinks, cfg.Alert)
	t.Feed = engine.NewFeed(t.Store, alerts)

	p := cfg.Poller
	rest := gate.NewRESTClient(gate.RESTConfig{
		BaseURL:           cfg.API.Gate.RestURL,
		RequestTimeout:    infra.Ms(p.RequestTimeoutMS),
		HistoryTimeout:    infra.Ms(p.HistoryTimeoutMS),
		TickerBufferBytes: p.TickerBufferBytes,
		ChartBufferBytes:  p.ChartBufferBytes,
		RequestsPerSecond: p.RequestsPerSecond,
	})

	pcfg := poller.DefaultConfig()
	pcfg.Tick = infra.Ms(p.TickMS)
	pcfg.FocusInterval = infra.Ms(p.FocusIntervalMS)
	pcfg.BackgroundInterval = infra.Ms(p.BackgroundIntervalMS)
	pcfg.FocusSettle = infra.Ms(p.FocusSettleMS)
	pcfg.MaxRetries = *p.MaxRetries
	pcfg.RateLimitWait = infra.Ms(p.RateLimitWaitMS)
	pcfg.RetryWait = infra.Ms(p.RetryWaitMS)
	pcfg.StopGrace = infra.Ms(p.StopGraceMS)
	t.Poller = poller.New(rest, t.Feed, pcfg)

	s := cfg.Stream
	t.Stream = gate.NewStream(gate.StreamConfig{
		URL:          cfg.API.Gate.WSURL,
		Debounce:     infra.Ms(s.DebounceMS),
		PingInterval: infra.Ms(s.PingMS),
		Reconnect:    infra.Ms(s.ReconnectMS),
		ReadTimeout:  infra.Ms(s.ReadTimeoutMS),
	}, selection, t.Feed)

	t.Console = render.NewConsole(t.Feed, render.NewUILock(), out,
		infra.Ms(cfg.UI.RefreshMS), infra.Ms(cfg.UI.LockTimeoutMS), t.Stream.ActiveIndex)

	return t, nil
}

// Symbols lists the tracked symbols in slot order.
func (t *Ticker) Symbols() []string {
	out := make([]string, len(t.Tokens))
	for i, tok := range t.Tokens {
		out[i] = tok.Symbol
	}
	return out
}

// Run loads every token once and then starts the background components.
// It returns after startup; everything stops with Shutdown or ctx.
func (t *Ticker) Run(ctx context.Context) error {
	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		return fmt.Errorf("ticker already shut down")
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	if t.redis != nil {
		if err := t.redis.Ping(ctx); err != nil {
			slog.Warn("Redis bridge unreachable, alerts will be dropped", slog.Any("error", err))
		}
	}

	loaded := t.Poller.FirstFetch(ctx)
	if loaded == 0 && ctx.Err() == nil {
		slog.Warn("⚠️ No token loaded on first fetch; retrying in background")
	}

	t.Poller.Start(ctx)
	t.Stream.Start(ctx, t.Store.Focus())
	metrics.Serve(ctx, t.Config.Metrics.ListenAddr, nil)
	go t.Console.Run(ctx)

	slog.InfoContext(ctx, "✅ Ticker running", slog.Int("tokens", len(t.Tokens)))
	return nil
}

// SetFocus moves the screen to idx and informs the poller and the stream.
func (t *Ticker) SetFocus(idx int) bool {
	if !t.Store.SetFocus(idx) {
		return false
	}
	t.Poller.OnFocusChanged(idx)
	t.Poller.PrioritizeChart(idx)
	t.Stream.Switch(idx)
	return true
}

// Next advances focus to the following token, wrapping around.
func (t *Ticker) Next() int {
	idx := (t.Store.Focus() + 1) % t.Store.Len()
	t.SetFocus(idx)
	return idx
}

// Shutdown stops every component in reverse start order. Safe to call twice.
func (t *Ticker) Shutdown() {
	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		return
	}
	t.shutdown = true
	cancel := t.cancel
	t.mu.Unlock()

	t.Stream.Stop()
	if !t.Poller.Stop() {
		slog.Warn("Poller still running after grace period")
	}
	if cancel != nil {
		cancel()
	}
	if t.redis != nil {
		if err := t.redis.Close(); err != nil {
			slog.Warn("Redis close failed", slog.Any("error", err))
		}
	}
	if err := t.DB.Close(); err != nil {
		slog.Warn("Settings store close failed", slog.Any("error", err))
	}
	if t.unlock != nil {
		t.unlock()
	}
	slog.Info("👋 Ticker stopped")
}
