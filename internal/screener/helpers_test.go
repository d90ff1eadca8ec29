package screener

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"volscreener/internal/batch"
	"volscreener/internal/cache"
	"volscreener/internal/fx"
	"volscreener/internal/markethours"
	"volscreener/internal/marketdata/fetcher"
	"volscreener/internal/model"
)

// Tuesday 10:30 IST; the previous business day is Monday 2024-03-04.
var testNow = time.Date(2024, 3, 5, 10, 30, 0, 0, markethours.IST)

// day holds one session's candles for a fake symbol.
type day struct {
	prev, today []model.Candle
	noVolume    bool
}

// fakeHistory serves candles by upstream symbol and session date.
type fakeHistory struct {
	mu    sync.Mutex
	days  map[string]day
	calls map[string]int
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{days: map[string]day{}, calls: map[string]int{}}
}

func (f *fakeHistory) History(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) (model.Series, error) {
	f.mu.Lock()
	f.calls[symbol]++
	d, ok := f.days[symbol]
	f.mu.Unlock()
	if !ok {
		return model.Series{}, errors.New("404 not found")
	}
	candles := d.today
	if start.In(markethours.IST).Day() != testNow.Day() {
		candles = d.prev
	}
	return model.Series{Symbol: symbol, Interval: interval, Candles: candles, HasVolume: !d.noVolume && len(candles) > 0}, nil
}

// run builds consecutive 5m candles starting at clock on date.
func run(date time.Time, from markethours.Clock, vols ...int64) []model.Candle {
	start := from.On(date)
	out := make([]model.Candle, len(vols))
	for i, v := range vols {
		out[i] = model.Candle{TS: start.Add(time.Duration(i) * 5 * time.Minute), Volume: v}
	}
	return out
}

func repeat(v int64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

var prevDay = time.Date(2024, 3, 4, 0, 0, 0, 0, markethours.IST)

// spiking returns a session pair with the given baseline and current volume.
func spiking(baseline, current int64) day {
	return day{
		prev:  run(prevDay, markethours.Open, repeat(baseline, 12)...),
		today: run(testNow, markethours.Open, 4000, 3000, current),
	}
}

type fakeQuotes struct {
	mu     sync.Mutex
	quotes map[string]model.Quote
	calls  []string
}

func (f *fakeQuotes) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, symbol)
	q, ok := f.quotes[symbol]
	if !ok {
		return model.Quote{}, errors.New("quote unavailable")
	}
	return q, nil
}

func inrQuote(sym string, crore float64) model.Quote {
	return model.Quote{Symbol: sym, MarketCap: crore * 1e7, Currency: "INR"}
}

func newTestEvaluator(h model.HistoryProvider) *Evaluator {
	e := NewEvaluator(fetcher.New(h, 1, 0, zap.NewNop()), DefaultEvalConfig())
	e.now = func() time.Time { return testNow }
	return e
}

func newTestEnricher(q model.QuoteProvider, c *cache.Service) *Enricher {
	e := NewEnricher(q, fx.NewFixed(83), c, EnricherConfig{
		Attempts:      3,
		Batch:         batch.Options{BatchSize: 10, Workers: 5},
		MinLive:       5,
		BackfillAbove: 10,
	}, zap.NewNop())
	e.sleep = func(context.Context, time.Duration) error { return nil }
	return e
}

func newTestPipeline(h model.HistoryProvider, q model.QuoteProvider) *Pipeline {
	c := cache.NewService(24*time.Hour, time.Hour)
	p := NewPipeline(newTestEvaluator(h), newTestEnricher(q, c), DefaultPolicy(),
		batch.Options{BatchSize: 20, Workers: 10}, zap.NewNop())
	p.now = func() time.Time { return testNow }
	return p
}
