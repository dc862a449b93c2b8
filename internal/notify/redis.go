package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig points at the pub/sub bridge.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisSink publishes alerts as JSON on a pub/sub channel. Publishing runs on
// its own goroutine so callers never wait on the network; when the backlog is
// full new alerts are dropped.
type RedisSink struct {
	rdb     *redis.Client
	channel string
	queue   chan Alert
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewRedisSink connects lazily; the first publish dials.
func NewRedisSink(cfg RedisConfig) *RedisSink {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithCancel(context.Background())
	s := &RedisSink{
		rdb:     rdb,
		channel: cfg.Channel,
		queue:   make(chan Alert, 32),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Ping checks the connection.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisSink) NotifySurge(symbol string, changePct float64) {
	s.enqueue(newAlert(KindSurge, symbol, changePct))
}

func (s *RedisSink) NotifyCrash(symbol string, changePct float64) {
	s.enqueue(newAlert(KindCrash, symbol, changePct))
}

func (s *RedisSink) enqueue(a Alert) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- a:
	default:
		slog.Warn("Redis alert backlog full, dropping", slog.String("symbol", a.Symbol))
	}
}

func (s *RedisSink) run() {
	defer s.wg.Done()
	for a := range s.queue {
		data, err := json.Marshal(a)
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(s.ctx, 3*time.Second)
		if err := s.rdb.Publish(ctx, s.channel, data).Err(); err != nil && s.ctx.Err() == nil {
			slog.Warn("Redis publish failed", slog.String("channel", s.channel), slog.Any("error", err))
		}
		cancel()
	}
}

// Close drops anything still queued and closes the client.
func (s *RedisSink) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.rdb.Close()
	})
	return err
}
