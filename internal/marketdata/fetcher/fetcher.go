// Package fetcher retrieves one symbol's intraday candle series with
// bounded retries and checks it is usable for volume analysis.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"volscreener/internal/logger"
	"volscreener/internal/model"
)

// Fetcher wraps a HistoryProvider with a fixed-delay retry policy.
type Fetcher struct {
	src      model.HistoryProvider
	attempts int
	delay    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	log      *zap.Logger
}

// New returns a Fetcher making up to attempts calls per series, delay apart.
func New(src model.HistoryProvider, attempts int, delay time.Duration, log *zap.Logger) *Fetcher {
	if attempts < 1 {
		attempts = 1
	}
	return &Fetcher{
		src:      src,
		attempts: attempts,
		delay:    delay,
		sleep:    sleepCtx,
		log:      log.With(zap.String("component", "fetcher")),
	}
}

// FetchSeries returns a non-empty series or an *model.AbsenceError.
// Upstream errors and empty series are retried; an open breaker or a
// cancelled context ends the attempts immediately.
func (f *Fetcher) FetchSeries(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) (model.Series, error) {
	var lastErr error
	reason := model.ReasonEmpty

	for attempt := 1; attempt <= f.attempts; attempt++ {
		s, err := f.src.History(ctx, symbol, start, end, interval)
		switch {
		case err == nil && !s.Empty():
			s.Symbol = symbol
			return s, nil
		case err == nil:
			reason, lastErr = model.ReasonEmpty, nil
		default:
			reason, lastErr = model.ReasonOf(err), err
			if !reason.Transient() {
				return model.Series{Symbol: symbol}, err
			}
		}

		if attempt < f.attempts {
			if serr := f.sleep(ctx, f.delay); serr != nil {
				return model.Series{Symbol: symbol}, model.Absent(symbol, model.ReasonCancelled, serr)
			}
		}
	}

	logger.FromContext(ctx, f.log).Debug("series unavailable",
		zap.String("symbol", symbol),
		zap.String("reason", string(reason)),
		zap.Int("attempts", f.attempts),
		zap.Error(lastErr),
	)
	var ae *model.AbsenceError
	if errors.As(lastErr, &ae) {
		return model.Series{Symbol: symbol}, lastErr
	}
	return model.Series{Symbol: symbol}, model.Absent(symbol, reason, lastErr)
}

// Validate checks a series carries volume and that its total volume
// exceeds floor. Failures are data-quality absences and are not retried.
func Validate(s model.Series, floor int64) error {
	if !s.HasVolume {
		return model.Absent(s.Symbol, model.ReasonNoVolume, nil)
	}
	if total := s.TotalVolume(); total <= floor {
		return model.Absent(s.Symbol, model.ReasonDegenerateVolume,
			fmt.Errorf("total volume %d <= %d", total, floor))
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
