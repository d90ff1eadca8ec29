// Package bus fans finished screen results out to in-process consumers.
package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"volscreener/internal/model"
)

// FanOut broadcasts results from a single input channel to N output channels.
// If an output channel is full, the result is dropped for that consumer so a
// slow consumer never blocks the refresher. Results supersede each other, so
// a consumer that misses one simply sees the next.
type FanOut struct {
	mu      sync.RWMutex
	outputs []chan model.ScreenResult
	names   []string
	bufSize int
	log     *zap.Logger

	// OnDrop is called when a result is dropped for the named subscriber.
	OnDrop func(subscriber string)
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int, log *zap.Logger) *FanOut {
	return &FanOut{
		bufSize: outputBufferSize,
		log:     log.With(zap.String("component", "bus")),
	}
}

// Subscribe creates and returns a new output channel.
func (f *FanOut) Subscribe(name string) <-chan model.ScreenResult {
	ch := make(chan model.ScreenResult, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, ch)
	f.names = append(f.names, name)
	f.mu.Unlock()
	return ch
}

// Run reads from input and fans out to all subscribers.
// Blocks until ctx is cancelled or input is closed; closes every output.
func (f *FanOut) Run(ctx context.Context, input <-chan model.ScreenResult) {
	defer func() {
		f.mu.RLock()
		for _, ch := range f.outputs {
			close(ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-input:
			if !ok {
				return
			}
			f.mu.RLock()
			for i, ch := range f.outputs {
				select {
				case ch <- res:
				default:
					if f.OnDrop != nil {
						f.OnDrop(f.names[i])
					} else {
						f.log.Warn("subscriber full, dropping result",
							zap.String("subscriber", f.names[i]), zap.String("cycle_id", res.CycleID))
					}
				}
			}
			f.mu.RUnlock()
		}
	}
}

// ChannelStat is one subscriber's queue occupancy.
type ChannelStat struct {
	Name string
	Len  int
	Cap  int
}

func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, ch := range f.outputs {
		stats[i] = ChannelStat{Name: f.names[i], Len: len(ch), Cap: cap(ch)}
	}
	return stats
}

// Drain delivers every result from ch to publish until ch closes.
// Publish errors are logged and passed to onErr; they never stop the loop.
func Drain(ctx context.Context, ch <-chan model.ScreenResult, name string, p model.ResultPublisher, onErr func(sink string), log *zap.Logger) {
	for res := range ch {
		if err := p.PublishResult(ctx, res); err != nil {
			log.Warn("publish failed", zap.String("sink", name), zap.String("cycle_id", res.CycleID), zap.Error(err))
			if onErr != nil {
				onErr(name)
			}
		}
	}
}
