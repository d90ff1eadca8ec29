// Package fx converts upstream market-cap figures into rupees.
package fx

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/forex"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultUSDINR is the fixed rate used when no live rate is available.
const DefaultUSDINR = 83.0

// RateProvider returns how many units of to buy one unit of from.
type RateProvider interface {
	Rate(ctx context.Context, from, to string) (float64, error)
}

// Fixed is a static rate table keyed by "FROM/TO".
type Fixed struct {
	rates map[string]float64
}

// NewFixed returns a table holding USD→INR at usdinr.
func NewFixed(usdinr float64) *Fixed {
	if usdinr <= 0 {
		usdinr = DefaultUSDINR
	}
	return &Fixed{rates: map[string]float64{"USD/INR": usdinr}}
}

func (f *Fixed) Rate(ctx context.Context, from, to string) (float64, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return 1, nil
	}
	if r, ok := f.rates[from+"/"+to]; ok {
		return r, nil
	}
	if r, ok := f.rates[to+"/"+from]; ok && r > 0 {
		return decimal.NewFromInt(1).Div(decimal.NewFromFloat(r)).InexactFloat64(), nil
	}
	return 0, fmt.Errorf("fx: no rate for %s/%s", from, to)
}

// Yahoo reads spot rates from the forex quote endpoint ("USDINR=X"),
// caching each pair for ttl. Lookup failures fall back to the fixed table.
type Yahoo struct {
	get      func(string) (*finance.ForexPair, error)
	fallback RateProvider
	ttl      time.Duration
	now      func() time.Time
	log      *zap.Logger

	mu    sync.Mutex
	rates map[string]cachedRate
}

type cachedRate struct {
	rate float64
	at   time.Time
}

// NewYahoo returns a live rate provider.
func NewYahoo(fallback RateProvider, ttl time.Duration, log *zap.Logger) *Yahoo {
	return &Yahoo{
		get:      forex.Get,
		fallback: fallback,
		ttl:      ttl,
		now:      time.Now,
		log:      log.With(zap.String("component", "fx")),
		rates:    make(map[string]cachedRate),
	}
}

func (y *Yahoo) Rate(ctx context.Context, from, to string) (float64, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return 1, nil
	}
	pair := from + to + "=X"

	y.mu.Lock()
	c, ok := y.rates[pair]
	y.mu.Unlock()
	if ok && y.now().Sub(c.at) < y.ttl {
		return c.rate, nil
	}

	q, err := y.get(pair)
	if err == nil && q != nil && q.RegularMarketPrice > 0 {
		y.mu.Lock()
		y.rates[pair] = cachedRate{rate: q.RegularMarketPrice, at: y.now()}
		y.mu.Unlock()
		return q.RegularMarketPrice, nil
	}
	y.log.Warn("live fx rate unavailable, using fallback", zap.String("pair", pair), zap.Error(err))
	return y.fallback.Rate(ctx, from, to)
}

// ToCrore converts amount in currency into INR crore (1 crore = 1e7).
// An empty currency is treated as USD.
func ToCrore(ctx context.Context, rates RateProvider, amount float64, currency string) (float64, error) {
	if currency == "" {
		currency = "USD"
	}
	rate, err := rates.Rate(ctx, currency, "INR")
	if err != nil {
		return 0, err
	}
	cr := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(rate)).
		Div(decimal.NewFromInt(10_000_000))
	return cr.Round(2).InexactFloat64(), nil
}
