package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"volscreener/internal/model"
)

type scripted struct {
	calls   int
	replies []reply
}

type reply struct {
	s   model.Series
	err error
}

func (p *scripted) History(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) (model.Series, error) {
	i := p.calls
	if i >= len(p.replies) {
		i = len(p.replies) - 1
	}
	p.calls++
	r := p.replies[i]
	return r.s, r.err
}

func series(vols ...int64) model.Series {
	s := model.Series{HasVolume: true, Interval: 5 * time.Minute}
	base := time.Date(2024, 3, 5, 9, 15, 0, 0, time.UTC)
	for i, v := range vols {
		s.Candles = append(s.Candles, model.Candle{TS: base.Add(time.Duration(i) * 5 * time.Minute), Volume: v})
	}
	return s
}

func newTestFetcher(src model.HistoryProvider) (*Fetcher, *[]time.Duration) {
	f := New(src, 3, time.Second, zap.NewNop())
	var slept []time.Duration
	f.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return f, &slept
}

func TestFetchSeries_RetriesThenSucceeds(t *testing.T) {
	src := &scripted{replies: []reply{
		{err: errors.New("503")},
		{s: model.Series{}},
		{s: series(100, 200)},
	}}
	f, slept := newTestFetcher(src)

	s, err := f.FetchSeries(context.Background(), "SBIN.NS", time.Time{}, time.Time{}, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "SBIN.NS", s.Symbol)
	assert.Len(t, s.Candles, 2)
	assert.Equal(t, 3, src.calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *slept)
}

func TestFetchSeries_ExhaustedEmpty(t *testing.T) {
	src := &scripted{replies: []reply{{s: model.Series{}}}}
	f, slept := newTestFetcher(src)

	_, err := f.FetchSeries(context.Background(), "TCS.NS", time.Time{}, time.Time{}, 5*time.Minute)
	assert.Equal(t, model.ReasonEmpty, model.ReasonOf(err))
	assert.Equal(t, 3, src.calls)
	assert.Len(t, *slept, 2, "no sleep after the final attempt")
}

func TestFetchSeries_ExhaustedUpstream(t *testing.T) {
	src := &scripted{replies: []reply{{err: errors.New("timeout")}}}
	f, _ := newTestFetcher(src)

	_, err := f.FetchSeries(context.Background(), "TCS.NS", time.Time{}, time.Time{}, 5*time.Minute)
	assert.Equal(t, model.ReasonUpstream, model.ReasonOf(err))
	var ae *model.AbsenceError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "TCS.NS", ae.Symbol)
}

func TestFetchSeries_CircuitOpenNotRetried(t *testing.T) {
	src := &scripted{replies: []reply{{err: model.Absent("ITC.NS", model.ReasonCircuitOpen, nil)}}}
	f, slept := newTestFetcher(src)

	_, err := f.FetchSeries(context.Background(), "ITC.NS", time.Time{}, time.Time{}, 5*time.Minute)
	assert.Equal(t, model.ReasonCircuitOpen, model.ReasonOf(err))
	assert.Equal(t, 1, src.calls)
	assert.Empty(t, *slept)
}

func TestFetchSeries_CancelledDuringBackoff(t *testing.T) {
	src := &scripted{replies: []reply{{err: errors.New("reset")}}}
	f := New(src, 3, time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.FetchSeries(ctx, "ITC.NS", time.Time{}, time.Time{}, 5*time.Minute)
	assert.Equal(t, model.ReasonCancelled, model.ReasonOf(err))
	assert.Equal(t, 1, src.calls)
}

func TestValidate(t *testing.T) {
	noVol := series(1000)
	noVol.HasVolume = false
	assert.Equal(t, model.ReasonNoVolume, model.ReasonOf(Validate(noVol, 100)))

	assert.Equal(t, model.ReasonDegenerateVolume, model.ReasonOf(Validate(series(40, 60), 100)))
	assert.Equal(t, model.ReasonDegenerateVolume, model.ReasonOf(Validate(series(0, 0), 0)))
	assert.NoError(t, Validate(series(40, 61), 100))
}
