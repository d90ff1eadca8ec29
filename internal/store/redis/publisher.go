// Package redis publishes screen results to Redis: the latest result under a
// TTL'd key for late readers, and a PubSub message for live subscribers.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"volscreener/internal/breaker"
	"volscreener/internal/model"
)

const (
	LatestKey      = "screen:latest"
	ResultsChannel = "pub:screen"

	defaultLatestTTL = 30 * time.Minute
)

// Config configures the Redis publisher.
type Config struct {
	Addr      string // Redis address, e.g. "localhost:6379"
	Password  string
	DB        int
	LatestTTL time.Duration
}

// Publisher implements model.ResultPublisher on Redis.
type Publisher struct {
	client *goredis.Client
	cb     *breaker.Breaker
	ttl    time.Duration
	log    *zap.Logger
}

// New connects to Redis and pings the server.
func New(cfg Config, cb *breaker.Breaker, log *zap.Logger) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	p := NewWithClient(client, cfg.LatestTTL, cb, log)
	p.log.Info("connected", zap.String("addr", cfg.Addr))
	return p, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, ttl time.Duration, cb *breaker.Breaker, log *zap.Logger) *Publisher {
	if ttl <= 0 {
		ttl = defaultLatestTTL
	}
	return &Publisher{client: client, cb: cb, ttl: ttl, log: log.With(zap.String("component", "redis"))}
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// PublishResult stores r as the latest result and announces it, in one
// pipeline. While the breaker is open the call fails fast.
func (p *Publisher) PublishResult(ctx context.Context, r model.ScreenResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("redis: marshal result: %w", err)
	}
	write := func() error {
		pipe := p.client.Pipeline()
		pipe.Set(ctx, LatestKey, data, p.ttl)
		pipe.Publish(ctx, ResultsChannel, data)
		_, err := pipe.Exec(ctx)
		return err
	}
	if p.cb != nil {
		err = p.cb.Execute(write)
	} else {
		err = write()
	}
	if err != nil {
		return fmt.Errorf("redis: publish %s: %w", r.CycleID, err)
	}
	p.log.Debug("published result", zap.String("cycle_id", r.CycleID), zap.Int("rows", len(r.Rows)))
	return nil
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
