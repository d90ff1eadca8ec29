package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"volscreener/internal/model"
)

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New(10, zap.NewNop())
	out1 := fo.Subscribe("ws")
	out2 := fo.Subscribe("redis")

	input := make(chan model.ScreenResult, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	input <- model.ScreenResult{CycleID: "c1"}

	for i, out := range []<-chan model.ScreenResult{out1, out2} {
		select {
		case r := <-out:
			if r.CycleID != "c1" {
				t.Errorf("out%d: expected cycle c1, got %s", i+1, r.CycleID)
			}
		case <-time.After(time.Second):
			t.Fatalf("out%d: timed out waiting for result", i+1)
		}
	}
}

func TestFanOut_DropsForFullSubscriber(t *testing.T) {
	fo := New(1, zap.NewNop())
	_ = fo.Subscribe("slow")

	var mu sync.Mutex
	var dropped []string
	fo.OnDrop = func(name string) {
		mu.Lock()
		dropped = append(dropped, name)
		mu.Unlock()
	}

	input := make(chan model.ScreenResult)
	done := make(chan struct{})
	go func() {
		fo.Run(context.Background(), input)
		close(done)
	}()
	input <- model.ScreenResult{CycleID: "c1"}
	input <- model.ScreenResult{CycleID: "c2"}
	close(input)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(dropped) != 1 || dropped[0] != "slow" {
		t.Fatalf("expected one drop for slow, got %v", dropped)
	}
	stats := fo.ChannelStats()
	if stats[0].Len != 1 || stats[0].Cap != 1 {
		t.Errorf("unexpected stats %+v", stats[0])
	}
}

type recordingPublisher struct {
	got []string
}

func (p *recordingPublisher) PublishResult(ctx context.Context, r model.ScreenResult) error {
	p.got = append(p.got, r.CycleID)
	if r.CycleID == "bad" {
		return errors.New("nope")
	}
	return nil
}

func TestDrain(t *testing.T) {
	ch := make(chan model.ScreenResult, 3)
	ch <- model.ScreenResult{CycleID: "a"}
	ch <- model.ScreenResult{CycleID: "bad"}
	ch <- model.ScreenResult{CycleID: "b"}
	close(ch)

	p := &recordingPublisher{}
	var failed []string
	Drain(context.Background(), ch, "redis", p, func(s string) { failed = append(failed, s) }, zap.NewNop())

	if len(p.got) != 3 {
		t.Fatalf("expected 3 deliveries, got %v", p.got)
	}
	if len(failed) != 1 || failed[0] != "redis" {
		t.Errorf("expected one failure on redis, got %v", failed)
	}
}
