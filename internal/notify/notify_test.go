package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_ticker/internal/domain"
)

type countingSink struct {
	surges, crashes int
}

func (c *countingSink) NotifySurge(string, float64) { c.surges++ }
func (c *countingSink) NotifyCrash(string, float64) { c.crashes++ }

func TestFanout(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	f := Fanout{a, b, LogSink{}}

	f.NotifySurge("BTC", 6)
	f.NotifyCrash("BTC", -6)
	f.NotifyCrash("BTC", -7)

	assert.Equal(t, 1, a.surges)
	assert.Equal(t, 2, b.crashes)
}

func TestRedisSink_Publishes(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	ps := sub.Subscribe(context.Background(), "ticker:alerts")
	defer ps.Close()
	_, err = ps.Receive(context.Background())
	require.NoError(t, err)

	sink := NewRedisSink(RedisConfig{Addr: mr.Addr(), Channel: "ticker:alerts"})
	require.NoError(t, sink.Ping(context.Background()))

	var _ domain.AlertSink = sink
	sink.NotifySurge("ETH", 5.5)

	select {
	case msg := <-ps.Channel():
		var a Alert
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &a))
		assert.Equal(t, KindSurge, a.Kind)
		assert.Equal(t, "ETH", a.Symbol)
		assert.Equal(t, 5.5, a.ChangePct)
	case <-time.After(2 * time.Second):
		t.Fatal("no alert published")
	}

	assert.NoError(t, sink.Close())
	assert.NoError(t, sink.Close(), "close is idempotent")
}

func TestRedisSink_UnreachableDoesNotBlock(t *testing.T) {
	sink := NewRedisSink(RedisConfig{Addr: "127.0.0.1:1", Channel: "x"})
	defer sink.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			sink.NotifyCrash("BTC", -9)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("notify blocked on an unreachable bridge")
	}
}
