// Package yahoo adapts Yahoo Finance (via piquette/finance-go) to the
// screener's provider ports.
package yahoo

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"

	"volscreener/internal/markethours"
	"volscreener/internal/model"
)

// barIter is the part of *chart.Iter the provider consumes.
type barIter interface {
	Next() bool
	Bar() *finance.ChartBar
	Err() error
}

// Provider serves intraday history from the chart endpoint and market cap
// from the equity quote endpoint.
type Provider struct {
	chartFn  func(*chart.Params) barIter
	equityFn func(string) (*finance.Equity, error)
	now      func() time.Time
}

// New returns a provider bound to the live Yahoo endpoints.
func New() *Provider {
	return &Provider{
		chartFn:  func(p *chart.Params) barIter { return chart.Get(p) },
		equityFn: equity.Get,
		now:      time.Now,
	}
}

// History fetches bars for [start, end). finance-go has no context support,
// so ctx is only checked before the request.
func (p *Provider) History(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) (model.Series, error) {
	out := model.Series{Symbol: symbol, Interval: interval}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	iv, err := chartInterval(interval)
	if err != nil {
		return out, err
	}
	if end.IsZero() {
		end = p.now()
	}

	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: iv,
	}
	it := p.chartFn(params)
	for it.Next() {
		b := it.Bar()
		if b == nil {
			continue
		}
		out.Candles = append(out.Candles, toCandle(b))
	}
	if err := it.Err(); err != nil {
		return model.Series{Symbol: symbol, Interval: interval}, fmt.Errorf("yahoo: chart %s: %w", symbol, err)
	}
	out.HasVolume = len(out.Candles) > 0
	return out, nil
}

// Quote returns market cap in the listing's reporting currency.
func (p *Provider) Quote(ctx context.Context, symbol string) (model.Quote, error) {
	if err := ctx.Err(); err != nil {
		return model.Quote{}, err
	}
	eq, err := p.equityFn(symbol)
	if err != nil {
		return model.Quote{}, fmt.Errorf("yahoo: quote %s: %w", symbol, err)
	}
	if eq == nil {
		return model.Quote{}, model.Absent(symbol, model.ReasonEmpty, nil)
	}
	return model.Quote{
		Symbol:    symbol,
		MarketCap: float64(eq.MarketCap),
		Currency:  eq.CurrencyID,
		LongName:  eq.LongName,
	}, nil
}

func toCandle(b *finance.ChartBar) model.Candle {
	o, _ := b.Open.Float64()
	h, _ := b.High.Float64()
	l, _ := b.Low.Float64()
	c, _ := b.Close.Float64()
	return model.Candle{
		TS:     time.Unix(int64(b.Timestamp), 0).In(markethours.IST),
		Open:   o,
		High:   h,
		Low:    l,
		Close:  c,
		Volume: int64(b.Volume),
	}
}

// chartInterval maps a duration to Yahoo's interval code.
func chartInterval(d time.Duration) (datetime.Interval, error) {
	switch d {
	case time.Minute, 2 * time.Minute, 5 * time.Minute, 15 * time.Minute, 30 * time.Minute, 60 * time.Minute, 90 * time.Minute:
		return datetime.Interval(fmt.Sprintf("%dm", int(d.Minutes()))), nil
	case 24 * time.Hour:
		return datetime.Interval("1d"), nil
	}
	return "", fmt.Errorf("yahoo: unsupported interval %s", d)
}
