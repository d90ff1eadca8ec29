// Package refresher runs the screening pipeline on a timer and on demand,
// keeping the latest good result for readers.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"volscreener/config"
	"volscreener/internal/batch"
	"volscreener/internal/logger"
	"volscreener/internal/markethours"
	"volscreener/internal/model"
	"volscreener/internal/notification"
)

// ErrBusy is returned by RunOnce while another cycle is in flight.
var ErrBusy = errors.New("refresher: cycle already running")

// UniverseResolver is satisfied by *universe.Directory.
type UniverseResolver interface {
	Resolve(ctx context.Context) model.Universe
}

// Producer is satisfied by *screener.Pipeline.
type Producer interface {
	Produce(ctx context.Context, u model.Universe, progress batch.ProgressFunc) model.ScreenResult
}

// CycleObserver is told about every finished or failed cycle.
type CycleObserver interface {
	ObserveCycle(r model.ScreenResult)
	ObserveFailedCycle()
}

// Options wires the refresher's collaborators.
type Options struct {
	Interval time.Duration
	// MarketHoursOnly skips timer-driven cycles outside the session.
	// Manual triggers always run.
	MarketHoursOnly bool
	// Out receives every new result; typically the bus input.
	Out       chan<- model.ScreenResult
	Notifier  notification.Notifier
	Observers []CycleObserver
}

// Refresher owns the refresh schedule and the latest result.
type Refresher struct {
	dir  UniverseResolver
	pipe Producer
	opts Options
	now  func() time.Time
	log  *zap.Logger

	mu       sync.RWMutex
	latest   *model.ScreenResult
	interval time.Duration

	running  atomic.Bool
	progress atomic.Uint64 // float64 bits

	trigger    chan struct{}
	reschedule chan struct{}
}

// New creates a Refresher; the refresh period defaults to five minutes.
func New(dir UniverseResolver, pipe Producer, opts Options, log *zap.Logger) *Refresher {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	return &Refresher{
		dir:        dir,
		pipe:       pipe,
		opts:       opts,
		now:        time.Now,
		log:        log.With(zap.String("component", "refresher")),
		interval:   opts.Interval,
		trigger:    make(chan struct{}, 1),
		reschedule: make(chan struct{}, 1),
	}
}

// Run executes a cycle immediately, then on every interval tick or manual
// trigger until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	r.cycle(ctx)

	timer := time.NewTimer(r.Interval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.reschedule:
			resetTimer(timer, r.Interval())
		case <-r.trigger:
			r.cycle(ctx)
			resetTimer(timer, r.Interval())
		case <-timer.C:
			if r.opts.MarketHoursOnly && !markethours.IsMarketOpen(r.now()) {
				r.log.Debug("market closed, skipping scheduled refresh")
			} else {
				r.cycle(ctx)
			}
			timer.Reset(r.Interval())
		}
	}
}

func (r *Refresher) cycle(ctx context.Context) {
	if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, ErrBusy) {
		r.log.Warn("refresh cycle failed, keeping previous result", zap.Error(err))
	}
}

// RunOnce resolves the universe and produces one result. A cycle that
// panics or is cancelled leaves the previous result in place.
func (r *Refresher) RunOnce(ctx context.Context) (res model.ScreenResult, err error) {
	if !r.running.CompareAndSwap(false, true) {
		return model.ScreenResult{}, ErrBusy
	}
	defer r.running.Store(false)
	r.setProgress(0)

	ctx = logger.WithTraceID(ctx, uuid.NewString())
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("refresher: cycle panicked: %v", p)
		}
		if err != nil {
			for _, o := range r.opts.Observers {
				o.ObserveFailedCycle()
			}
		}
	}()

	u := r.dir.Resolve(ctx)
	res = r.pipe.Produce(ctx, u, r.setProgress)
	if cerr := ctx.Err(); cerr != nil {
		return model.ScreenResult{}, fmt.Errorf("refresher: cycle cancelled: %w", cerr)
	}
	r.setProgress(1)

	r.mu.Lock()
	prev := r.latest
	r.latest = &res
	r.mu.Unlock()

	for _, o := range r.opts.Observers {
		o.ObserveCycle(res)
	}
	r.alert(ctx, prev, res)
	if r.opts.Out != nil {
		select {
		case r.opts.Out <- res:
		case <-ctx.Done():
		}
	}
	return res, nil
}

func (r *Refresher) alert(ctx context.Context, prev *model.ScreenResult, res model.ScreenResult) {
	if r.opts.Notifier == nil {
		return
	}
	for _, a := range notification.ScreenAlerts(prev, res) {
		if err := r.opts.Notifier.Send(ctx, a); err != nil {
			logger.FromContext(ctx, r.log).Warn("alert delivery failed", zap.String("title", a.Title), zap.Error(err))
		}
	}
}

// Latest returns the most recent good result.
func (r *Refresher) Latest() (model.ScreenResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == nil {
		return model.ScreenResult{}, false
	}
	return *r.latest, true
}

// Trigger requests an immediate cycle. It returns false when one is
// already running or queued.
func (r *Refresher) Trigger() bool {
	if r.running.Load() {
		return false
	}
	select {
	case r.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// SetInterval changes the refresh period; minutes must be one of
// config.RefreshIntervals.
func (r *Refresher) SetInterval(minutes int) error {
	if !config.ValidRefreshInterval(minutes) {
		return fmt.Errorf("refresher: interval %d min not in %v", minutes, config.RefreshIntervals)
	}
	d := time.Duration(minutes) * time.Minute
	r.mu.Lock()
	r.interval = d
	r.mu.Unlock()
	select {
	case r.reschedule <- struct{}{}:
	default:
		// already signalled; Run reads the field on reset
	}
	return nil
}

// Interval returns the current refresh period.
func (r *Refresher) Interval() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.interval
}

// Progress returns the in-flight cycle's completed fraction.
func (r *Refresher) Progress() float64 {
	return math.Float64frombits(r.progress.Load())
}

// Running reports whether a cycle is in flight.
func (r *Refresher) Running() bool {
	return r.running.Load()
}

func (r *Refresher) setProgress(p float64) {
	r.progress.Store(math.Float64bits(p))
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
