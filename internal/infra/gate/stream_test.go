package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_ticker/internal/domain"
)

type recordedUpdate struct {
	idx     int
	quote   domain.Quote
	latency int64
}

type fakeStreamSink struct {
	mu      sync.Mutex
	updates []recordedUpdate
}

func (f *fakeStreamSink) UpdatePriceStreaming(idx int, q domain.Quote, latencyMs int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, recordedUpdate{idx, q, latencyMs})
	return true
}

func (f *fakeStreamSink) snapshot() []recordedUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedUpdate(nil), f.updates...)
}

// mockGate accepts connections and records every client frame.
type mockGate struct {
	srv    *httptest.Server
	frames chan wsRequest
	conns  chan *websocket.Conn
}

func newMockGate(t *testing.T) *mockGate {
	m := &mockGate{
		frames: make(chan wsRequest, 64),
		conns:  make(chan *websocket.Conn, 8),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	m.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		m.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req wsRequest
			if json.Unmarshal(data, &req) == nil {
				m.frames <- req
			}
		}
	}))
	return m
}

func (m *mockGate) url() string { return strings.Replace(m.srv.URL, "http://", "ws://", 1) }

func (m *mockGate) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-m.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no connection")
		return nil
	}
}

func (m *mockGate) expectFrame(t *testing.T, event, pair string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-m.frames:
			if f.Channel == ChannelPing {
				continue
			}
			require.Equal(t, ChannelTickers, f.Channel)
			require.Equal(t, event, f.Event)
			require.Equal(t, []string{pair}, f.Payload)
			return
		case <-deadline:
			t.Fatalf("no %s frame for %s", event, pair)
		}
	}
}

func (m *mockGate) expectNoFrame(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case f := <-m.frames:
		t.Fatalf("unexpected frame %+v", f)
	case <-time.After(d):
	}
}

func tickerPush(pair, last string, timeMs int64) []byte {
	return []byte(fmt.Sprintf(`{"time":%d,"time_ms":%d,"channel":"spot.tickers","event":"update","result":{"currency_pair":%q,"last":%q,"change_percentage":"1.0"}}`,
		timeMs/1000, timeMs, pair, last))
}

func newTestStream(url string, sink StreamSink) *Stream {
	tokens := domain.ParseSelection("bitcoin,ethereum,usdt")
	return NewStream(StreamConfig{
		URL:          url,
		Debounce:     50 * time.Millisecond,
		PingInterval: time.Hour,
		Reconnect:    20 * time.Millisecond,
	}, tokens, sink)
}

func TestStream_SubscribesInitialFocusAndFiltersPairs(t *testing.T) {
	gate := newMockGate(t)
	defer gate.srv.Close()

	sink := &fakeStreamSink{}
	s := newTestStream(gate.url(), sink)
	s.Start(context.Background(), 0)
	defer s.Stop()

	conn := gate.nextConn(t)
	gate.expectFrame(t, EventSubscribe, "BTC_USDT")
	assert.Equal(t, 0, s.ActiveIndex())

	now := time.Now().UnixMilli()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, tickerPush("ETH_USDT", "3000", now)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, tickerPush("BTC_USDT", "64000", now+60_000)))

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	got := sink.snapshot()
	require.Len(t, got, 1, "non-active pair must be ignored")
	assert.Equal(t, 0, got[0].idx)
	assert.Equal(t, 64000.0, got[0].quote.Price)
	assert.Equal(t, int64(0), got[0].latency, "future server time clamps to zero")
}

func TestStream_SwitchUnsubscribesThenDebounces(t *testing.T) {
	gate := newMockGate(t)
	defer gate.srv.Close()

	s := newTestStream(gate.url(), &fakeStreamSink{})
	s.Start(context.Background(), 0)
	defer s.Stop()

	gate.nextConn(t)
	gate.expectFrame(t, EventSubscribe, "BTC_USDT")

	s.Switch(1)
	gate.expectFrame(t, EventUnsubscribe, "BTC_USDT")
	assert.Equal(t, -1, s.ActiveIndex(), "no live feed during the settle window")

	gate.expectFrame(t, EventSubscribe, "ETH_USDT")
	assert.Equal(t, 1, s.ActiveIndex())
}

func TestStream_RapidSwitchesKeepLastTarget(t *testing.T) {
	gate := newMockGate(t)
	defer gate.srv.Close()

	s := newTestStream(gate.url(), &fakeStreamSink{})
	s.Start(context.Background(), 0)
	defer s.Stop()

	gate.nextConn(t)
	gate.expectFrame(t, EventSubscribe, "BTC_USDT")

	s.Switch(1)
	gate.expectFrame(t, EventUnsubscribe, "BTC_USDT")
	s.Switch(0)
	s.Switch(1)
	s.Switch(0)

	gate.expectFrame(t, EventSubscribe, "BTC_USDT")
	gate.expectNoFrame(t, 150*time.Millisecond)
	assert.Equal(t, 0, s.ActiveIndex())
}

func TestStream_StablecoinNeverSubscribed(t *testing.T) {
	gate := newMockGate(t)
	defer gate.srv.Close()

	s := newTestStream(gate.url(), &fakeStreamSink{})
	s.Start(context.Background(), 0)
	defer s.Stop()

	gate.nextConn(t)
	gate.expectFrame(t, EventSubscribe, "BTC_USDT")

	s.Switch(2)
	gate.expectFrame(t, EventUnsubscribe, "BTC_USDT")
	gate.expectNoFrame(t, 150*time.Millisecond)
	assert.Equal(t, -1, s.ActiveIndex())
}

func TestStream_ResubscribesAfterReconnect(t *testing.T) {
	gate := newMockGate(t)
	defer gate.srv.Close()

	s := newTestStream(gate.url(), &fakeStreamSink{})
	s.Start(context.Background(), 1)
	defer s.Stop()

	conn := gate.nextConn(t)
	gate.expectFrame(t, EventSubscribe, "ETH_USDT")

	conn.Close()

	gate.nextConn(t)
	gate.expectFrame(t, EventSubscribe, "ETH_USDT")
	assert.Equal(t, 1, s.ActiveIndex())
	assert.True(t, s.Connected())
}

func TestStream_PingFrame(t *testing.T) {
	gate := newMockGate(t)
	defer gate.srv.Close()

	s := NewStream(StreamConfig{
		URL:          gate.url(),
		Debounce:     50 * time.Millisecond,
		PingInterval: 30 * time.Millisecond,
		Reconnect:    20 * time.Millisecond,
	}, domain.ParseSelection("usdt"), &fakeStreamSink{})
	s.Start(context.Background(), 0)
	defer s.Stop()

	gate.nextConn(t)
	select {
	case f := <-gate.frames:
		assert.Equal(t, ChannelPing, f.Channel)
		assert.NotZero(t, f.Time)
	case <-time.After(time.Second):
		t.Fatal("no ping frame")
	}
}

func TestStream_SwitchQueuesFramesWithoutWriting(t *testing.T) {
	s := newTestStream("ws://127.0.0.1:1", &fakeStreamSink{})
	s.mu.Lock()
	s.connected, s.active = true, 0
	s.mu.Unlock()

	s.Switch(1)
	require.Len(t, s.outbox, 1)
	req := <-s.outbox
	assert.Equal(t, EventUnsubscribe, req.Event)
	assert.Equal(t, []string{"BTC_USDT"}, req.Payload)
	assert.Equal(t, -1, s.ActiveIndex())

	// a full outbox drops instead of blocking the caller
	for i := 0; i < outboxSize; i++ {
		s.post(EventSubscribe, "ETH_USDT")
	}
	s.mu.Lock()
	s.active = 1
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.Switch(0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Switch blocked on a full outbox")
	}
	assert.Len(t, s.outbox, outboxSize)
	s.Stop()
}
