package gate

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"token_ticker/internal/domain"
	"token_ticker/internal/infra"
	"token_ticker/internal/metrics"
)

// StreamSink receives live quotes for the subscribed token.
type StreamSink interface {
	UpdatePriceStreaming(idx int, q domain.Quote, latencyMs int64) bool
}

// StreamConfig tunes the subscriber.
type StreamConfig struct {
	URL          string
	Debounce     time.Duration
	PingInterval time.Duration
	Reconnect    time.Duration
	ReadTimeout  time.Duration
}

// outboxSize bounds subscription frames waiting for the writer.
const outboxSize = 8

// Stream keeps exactly one spot.tickers subscription alive for the focused
// token. Focus switches unsubscribe at once and subscribe after a quiet period.
// Subscription frames go through an outbox so callers never wait on the socket.
type Stream struct {
	cfg      StreamConfig
	tokens   []domain.TokenInfo
	sink     StreamSink
	worker   *infra.BaseWSWorker
	debounce *infra.Debouncer[int]
	now      func() time.Time

	outbox chan wsRequest
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	active    int
	pending   int
	connected bool
}

// NewStream creates a subscriber over tokens. Indices match the PriceStore.
func NewStream(cfg StreamConfig, tokens []domain.TokenInfo, sink StreamSink) *Stream {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = 5 * time.Second
	}

	s := &Stream{
		cfg:     cfg,
		tokens:  tokens,
		sink:    sink,
		now:     time.Now,
		active:  -1,
		pending: -1,
		outbox:  make(chan wsRequest, outboxSize),
	}
	s.debounce = infra.NewDebouncer(cfg.Debounce, s.settle)

	s.worker = infra.NewBaseWSWorker(s)
	s.worker.PingInterval = cfg.PingInterval
	s.worker.Reconnect = infra.Backoff{Base: cfg.Reconnect, Max: 60 * time.Second}
	if cfg.ReadTimeout > 0 {
		s.worker.ReadTimeout = cfg.ReadTimeout
	}
	return s
}

func (s *Stream) GetURL() string { return s.cfg.URL }
func (s *Stream) ID() string     { return "GATE_TICKERS" }

func (s *Stream) subscribable(idx int) bool {
	return idx >= 0 && idx < len(s.tokens) && !s.tokens[idx].IsStablecoin()
}

// Start connects in the background and subscribes to initialFocus once up.
func (s *Stream) Start(ctx context.Context, initialFocus int) {
	s.mu.Lock()
	s.pending = -1
	if s.subscribable(initialFocus) {
		s.pending = initialFocus
	}
	s.mu.Unlock()

	wctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.writeLoop(wctx)

	s.worker.Start(ctx)
}

// Stop cancels any pending switch and closes the connection.
func (s *Stream) Stop() {
	s.debounce.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.worker.Stop()

	s.mu.Lock()
	s.active, s.pending, s.connected = -1, -1, false
	s.mu.Unlock()
	metrics.StreamConnected.Set(0)
}

// ActiveIndex returns the live subscription, or -1 while none is active.
func (s *Stream) ActiveIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Connected reports whether the link is up.
func (s *Stream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Switch moves the subscription to idx after the debounce delay.
// The current feed is dropped immediately. Never blocks on the network.
func (s *Stream) Switch(idx int) {
	s.mu.Lock()
	prev := s.active
	s.active = -1
	s.pending = -1
	if s.subscribable(idx) {
		s.pending = idx
	}
	connected := s.connected
	target := s.pending
	s.mu.Unlock()

	if prev >= 0 && connected {
		s.post(EventUnsubscribe, s.tokens[prev].Pair)
	}

	if target < 0 {
		s.debounce.Stop()
		return
	}
	s.debounce.Trigger(target)
}

func (s *Stream) settle(idx int) {
	s.mu.Lock()
	if s.pending != idx || !s.connected {
		// OnConnect will pick pending up
		s.mu.Unlock()
		return
	}
	s.active, s.pending = idx, -1
	s.mu.Unlock()

	s.post(EventSubscribe, s.tokens[idx].Pair)
}

// post queues a subscription frame for the writer, dropping it if the
// outbox is full.
func (s *Stream) post(event, pair string) {
	select {
	case s.outbox <- wsRequest{Channel: ChannelTickers, Event: event, Payload: []string{pair}}:
	default:
		slog.Warn("Stream outbox full, frame dropped", slog.String("event", event), slog.String("pair", pair))
	}
}

// writeLoop sends queued frames in order.
func (s *Stream) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.outbox:
			pair := req.Payload[0]
			if err := s.send(req.Event, pair); err != nil {
				slog.Warn("Stream frame failed", slog.String("event", req.Event), slog.String("pair", pair), slog.Any("error", err))
				continue
			}
			if req.Event == EventSubscribe {
				slog.Info("Stream switched", slog.String("pair", pair))
			}
		}
	}
}

// OnConnect restores the active or pending subscription.
func (s *Stream) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	s.mu.Lock()
	s.connected = true
	target := s.active
	if target < 0 {
		target = s.pending
	}
	if target >= 0 {
		s.active, s.pending = target, -1
	}
	s.mu.Unlock()
	metrics.StreamConnected.Set(1)

	if target < 0 {
		return nil
	}
	if err := s.send(EventSubscribe, s.tokens[target].Pair); err != nil {
		s.OnDisconnect(err)
		return err
	}
	return nil
}

// OnDisconnect marks the link down; the worker reconnects on its own.
func (s *Stream) OnDisconnect(err error) {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	metrics.StreamConnected.Set(0)
}

// OnPing sends the application heartbeat. Failures are logged only.
func (s *Stream) OnPing(ctx context.Context, conn *websocket.Conn) error {
	data, _ := json.Marshal(wsRequest{Time: s.now().Unix(), Channel: ChannelPing})
	if err := s.worker.Write(websocket.TextMessage, data); err != nil {
		slog.Warn("Stream ping failed", slog.Any("error", err))
	}
	return nil
}

// OnMessage forwards ticker updates for the active pair and drops the rest.
func (s *Stream) OnMessage(ctx context.Context, msg []byte) {
	u, ok, err := ParseStreamMessage(msg)
	if err != nil {
		slog.Debug("Stream message dropped", slog.Any("error", err))
		return
	}
	if !ok {
		return
	}

	s.mu.Lock()
	idx := s.active
	s.mu.Unlock()
	if idx < 0 || s.tokens[idx].Pair != u.Pair {
		return
	}

	latency := s.now().UnixMilli() - u.ServerTimeMs
	if latency < 0 {
		latency = 0
	}
	s.sink.UpdatePriceStreaming(idx, u.Quote, latency)
}

func (s *Stream) send(event, pair string) error {
	data, err := json.Marshal(wsRequest{
		Time:    s.now().Unix(),
		Channel: ChannelTickers,
		Event:   event,
		Payload: []string{pair},
	})
	if err != nil {
		return err
	}
	return s.worker.Write(websocket.TextMessage, data)
}
