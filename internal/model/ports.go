package model

import (
	"context"
	"time"
)

// ── Upstream Port Interfaces ──
// The screening core depends only on these; Yahoo and Angel One adapters
// satisfy them, as do the rate-limit, breaker and metrics decorators.

// Quote is the subset of quote information the screener reads.
// MarketCap is in Currency units; Currency may be empty when the upstream
// does not report it.
type Quote struct {
	Symbol    string  `json:"symbol"`
	MarketCap float64 `json:"market_cap"`
	Currency  string  `json:"currency"`
	LongName  string  `json:"long_name,omitempty"`
}

// HistoryProvider returns intraday candles for [start, end). A zero end
// means "up to now". Implementations may return an empty series with a
// nil error.
type HistoryProvider interface {
	History(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) (Series, error)
}

// QuoteProvider returns quote information for one symbol.
type QuoteProvider interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// MarketDataProvider is the full upstream surface.
type MarketDataProvider interface {
	HistoryProvider
	QuoteProvider
}

// ResultPublisher distributes finished screen results to consumers
// outside the process (Redis, websockets).
type ResultPublisher interface {
	PublishResult(ctx context.Context, r ScreenResult) error
}
