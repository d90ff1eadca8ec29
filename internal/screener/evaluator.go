package screener

import (
	"context"
	"errors"
	"time"

	"volscreener/internal/markethours"
	"volscreener/internal/marketdata/fetcher"
	"volscreener/internal/model"
	"volscreener/internal/universe"
)

// SeriesFetcher is satisfied by *fetcher.Fetcher.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) (model.Series, error)
}

// EvalConfig parameterizes the baseline and current-volume measurement.
type EvalConfig struct {
	Interval           time.Duration
	WindowStart        markethours.Clock
	WindowEnd          markethours.Clock
	BaselineCandles    int
	MinBaselineCandles int
	// MinSeriesVolume is the validity floor: a series whose total volume
	// does not exceed it is degenerate.
	MinSeriesVolume int64
}

// DefaultEvalConfig is the 5m, 09:15–11:00, 10-candle baseline.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		Interval:           5 * time.Minute,
		WindowStart:        markethours.Open,
		WindowEnd:          markethours.Clock{Hour: 11},
		BaselineCandles:    10,
		MinBaselineCandles: 3,
		MinSeriesVolume:    100,
	}
}

// Evaluator compares today's latest candle volume with the previous
// business day's opening-window average.
type Evaluator struct {
	fetch SeriesFetcher
	cfg   EvalConfig
	now   func() time.Time
}

// NewEvaluator creates an Evaluator reading series through f.
func NewEvaluator(f SeriesFetcher, cfg EvalConfig) *Evaluator {
	return &Evaluator{fetch: f, cfg: cfg, now: time.Now}
}

// Evaluate produces the VolumeRecord for symbol or an *model.AbsenceError.
// The returned record carries symbol exactly as passed in; the upstream
// only ever sees the normalized ticker.
func (e *Evaluator) Evaluate(ctx context.Context, symbol, name string) (model.VolumeRecord, error) {
	upstream := universe.Normalize(symbol)
	t := e.now().In(markethours.IST)

	avg, err := e.baseline(ctx, upstream, markethours.PrevBusinessDay(t))
	if err != nil {
		return model.VolumeRecord{}, relabel(err, symbol)
	}
	cur, err := e.current(ctx, upstream, t)
	if err != nil {
		return model.VolumeRecord{}, relabel(err, symbol)
	}

	if name == "" {
		name = universe.DisplayName(symbol)
	}
	return model.VolumeRecord{
		Symbol:           symbol,
		Name:             name,
		CurrentVolume:    cur,
		AvgVolumePrevDay: avg,
		SpikeRatio:       cur / avg,
	}, nil
}

func (e *Evaluator) baseline(ctx context.Context, symbol string, day time.Time) (float64, error) {
	start := markethours.StartOfDay(day)
	s, err := e.fetch.FetchSeries(ctx, symbol, start, start.AddDate(0, 0, 1), e.cfg.Interval)
	if err != nil {
		return 0, err
	}
	if err := fetcher.Validate(s, e.cfg.MinSeriesVolume); err != nil {
		return 0, err
	}

	var window []model.Candle
	for _, c := range s.Sorted() {
		if markethours.Within(c.TS, e.cfg.WindowStart, e.cfg.WindowEnd) {
			window = append(window, c)
		}
	}
	if len(window) > e.cfg.BaselineCandles {
		window = window[:e.cfg.BaselineCandles]
	}
	if len(window) < e.cfg.MinBaselineCandles {
		return 0, model.Absent(symbol, model.ReasonThinBaseline, nil)
	}

	var sum int64
	for _, c := range window {
		sum += c.Volume
	}
	if sum <= 0 {
		return 0, model.Absent(symbol, model.ReasonZeroBaseline, nil)
	}
	return float64(sum) / float64(len(window)), nil
}

func (e *Evaluator) current(ctx context.Context, symbol string, t time.Time) (float64, error) {
	s, err := e.fetch.FetchSeries(ctx, symbol, markethours.Open.On(t), t, e.cfg.Interval)
	if err != nil {
		if model.ReasonOf(err) == model.ReasonEmpty {
			return 0, model.Absent(symbol, model.ReasonNoCurrentCandle, err)
		}
		return 0, err
	}
	if err := fetcher.Validate(s, e.cfg.MinSeriesVolume); err != nil {
		return 0, err
	}
	last, ok := s.Last()
	if !ok {
		return 0, model.Absent(symbol, model.ReasonNoCurrentCandle, nil)
	}
	if last.Volume <= 0 {
		return 0, model.Absent(symbol, model.ReasonZeroCurrentVolume, nil)
	}
	return float64(last.Volume), nil
}

// relabel reports an absence under the caller-facing symbol.
func relabel(err error, symbol string) error {
	var ae *model.AbsenceError
	if errors.As(err, &ae) {
		return model.Absent(symbol, ae.Reason, ae.Err)
	}
	return model.Absent(symbol, model.ReasonOf(err), err)
}
