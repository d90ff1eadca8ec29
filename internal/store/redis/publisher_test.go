package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"volscreener/internal/breaker"
	"volscreener/internal/model"
)

func newTestPublisher(t *testing.T, cb *breaker.Breaker) (*Publisher, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, 10*time.Minute, cb, zap.NewNop()), mr
}

func TestPublishResult_StoresLatestWithTTL(t *testing.T) {
	p, mr := newTestPublisher(t, nil)
	res := model.ScreenResult{
		CycleID: "c1",
		Rows:    []model.ScreenRow{{VolumeRecord: model.VolumeRecord{Symbol: "SBIN.NS", SpikeRatio: 12}, MarketCapCr: 6500}},
	}
	require.NoError(t, p.PublishResult(context.Background(), res))

	raw, err := mr.Get(LatestKey)
	require.NoError(t, err)
	var got model.ScreenResult
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, "c1", got.CycleID)
	assert.Equal(t, []string{"SBIN.NS"}, got.Symbols())
	assert.Equal(t, 10*time.Minute, mr.TTL(LatestKey))
}

func TestPublishResult_ReachesSubscribers(t *testing.T) {
	p, _ := newTestPublisher(t, nil)
	ctx := context.Background()
	sub := p.Client().Subscribe(ctx, ResultsChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, p.PublishResult(ctx, model.ScreenResult{CycleID: "c2"}))

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, `"cycle_id":"c2"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no pubsub message")
	}
}

func TestPublishResult_BreakerOpensOnOutage(t *testing.T) {
	cb := breaker.New("redis", 2, time.Minute)
	p, mr := newTestPublisher(t, cb)
	mr.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		assert.Error(t, p.PublishResult(ctx, model.ScreenResult{CycleID: "x"}))
	}
	err := p.PublishResult(ctx, model.ScreenResult{CycleID: "x"})
	assert.True(t, errors.Is(err, breaker.ErrCircuitOpen))
}
