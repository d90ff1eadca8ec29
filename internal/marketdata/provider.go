// Package marketdata composes upstream providers with the cross-cutting
// policies every upstream call goes through: token-bucket pacing, a
// circuit breaker, and call metrics.
package marketdata

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"volscreener/internal/breaker"
	"volscreener/internal/model"
)

type composite struct {
	model.HistoryProvider
	model.QuoteProvider
}

// Compose joins a history source and a quote source into one provider.
func Compose(h model.HistoryProvider, q model.QuoteProvider) model.MarketDataProvider {
	return composite{HistoryProvider: h, QuoteProvider: q}
}

// Limited paces calls through a shared token bucket so that pacing is
// independent of how the caller batches symbols.
type Limited struct {
	next model.MarketDataProvider
	lim  *rate.Limiter
}

// WithRateLimit allows rps calls per second with the given burst.
func WithRateLimit(next model.MarketDataProvider, rps float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *Limited) History(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) (model.Series, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return model.Series{}, model.Absent(symbol, model.ReasonCancelled, err)
	}
	return l.next.History(ctx, symbol, start, end, interval)
}

func (l *Limited) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return model.Quote{}, model.Absent(symbol, model.ReasonCancelled, err)
	}
	return l.next.Quote(ctx, symbol)
}

// Guarded runs history and quote calls behind separate breakers so a dead
// quote endpoint does not block history fetches.
type Guarded struct {
	next    model.MarketDataProvider
	history *breaker.Breaker
	quote   *breaker.Breaker
}

// WithBreakers wraps next. Either breaker may be nil to leave that
// operation unguarded.
func WithBreakers(next model.MarketDataProvider, history, quote *breaker.Breaker) *Guarded {
	return &Guarded{next: next, history: history, quote: quote}
}

func (g *Guarded) History(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) (model.Series, error) {
	if g.history == nil {
		return g.next.History(ctx, symbol, start, end, interval)
	}
	var s model.Series
	err := g.history.Execute(func() error {
		var err error
		s, err = g.next.History(ctx, symbol, start, end, interval)
		return err
	})
	return s, rejected(symbol, err)
}

func (g *Guarded) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	if g.quote == nil {
		return g.next.Quote(ctx, symbol)
	}
	var q model.Quote
	err := g.quote.Execute(func() error {
		var err error
		q, err = g.next.Quote(ctx, symbol)
		return err
	})
	return q, rejected(symbol, err)
}

func rejected(symbol string, err error) error {
	if errors.Is(err, breaker.ErrCircuitOpen) {
		return model.Absent(symbol, model.ReasonCircuitOpen, err)
	}
	return err
}

// CallObserver receives one observation per upstream call.
type CallObserver interface {
	ObserveUpstream(op, outcome string, elapsed time.Duration)
}

// Call outcomes reported to a CallObserver.
const (
	OutcomeOK       = "ok"
	OutcomeEmpty    = "empty"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

// Instrumented reports every call to an observer.
type Instrumented struct {
	next model.MarketDataProvider
	obs  CallObserver
}

// WithObserver wraps next.
func WithObserver(next model.MarketDataProvider, obs CallObserver) *Instrumented {
	return &Instrumented{next: next, obs: obs}
}

func (i *Instrumented) History(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) (model.Series, error) {
	t0 := time.Now()
	s, err := i.next.History(ctx, symbol, start, end, interval)
	i.obs.ObserveUpstream("history", outcome(err, s.Empty()), time.Since(t0))
	return s, err
}

func (i *Instrumented) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	t0 := time.Now()
	q, err := i.next.Quote(ctx, symbol)
	i.obs.ObserveUpstream("quote", outcome(err, q.MarketCap <= 0), time.Since(t0))
	return q, err
}

func outcome(err error, empty bool) string {
	switch {
	case model.ReasonOf(err) == model.ReasonCircuitOpen:
		return OutcomeRejected
	case err != nil:
		return OutcomeError
	case empty:
		return OutcomeEmpty
	default:
		return OutcomeOK
	}
}
