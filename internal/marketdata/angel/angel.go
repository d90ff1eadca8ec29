// Package angel serves intraday history from Angel One SmartAPI.
// SmartAPI has no market-cap field, so this provider only implements
// model.HistoryProvider; quotes come from another source.
package angel

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"volscreener/internal/markethours"
	"volscreener/internal/model"
	"volscreener/pkg/smartconnect"
)

const exchangeNSE = "NSE"

// API is the subset of *smartconnect.Client used here.
type API interface {
	SearchScrip(ctx context.Context, exchange, query string) ([]smartconnect.Scrip, error)
	CandleData(ctx context.Context, p smartconnect.CandleParams) ([]smartconnect.CandleRow, error)
}

// Provider resolves Yahoo-style tickers (SBIN.NS) to SmartAPI symbol
// tokens and fetches candles. Resolved tokens are kept for the process
// lifetime.
type Provider struct {
	api API
	now func() time.Time

	mu     sync.RWMutex
	tokens map[string]string
}

// New wraps a logged-in SmartAPI client.
func New(api API) *Provider {
	return &Provider{api: api, now: time.Now, tokens: make(map[string]string)}
}

func (p *Provider) History(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) (model.Series, error) {
	out := model.Series{Symbol: symbol, Interval: interval}
	iv, err := smartInterval(interval)
	if err != nil {
		return out, err
	}
	token, err := p.token(ctx, symbol)
	if err != nil {
		return out, err
	}
	if end.IsZero() {
		end = p.now()
	}

	rows, err := p.api.CandleData(ctx, smartconnect.CandleParams{
		Exchange:    exchangeNSE,
		SymbolToken: token,
		Interval:    iv,
		From:        start.In(markethours.IST),
		To:          end.In(markethours.IST),
	})
	if err != nil {
		return out, fmt.Errorf("angel: candles %s: %w", symbol, err)
	}

	out.HasVolume = len(rows) > 0
	for _, r := range rows {
		if !r.HasVolume {
			out.HasVolume = false
		}
		out.Candles = append(out.Candles, model.Candle{
			TS: r.TS.In(markethours.IST), Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume,
		})
	}
	return out, nil
}

// token maps "SBIN.NS" to the NSE equity token via searchScrip, preferring
// the "-EQ" series listing.
func (p *Provider) token(ctx context.Context, symbol string) (string, error) {
	p.mu.RLock()
	tok, ok := p.tokens[symbol]
	p.mu.RUnlock()
	if ok {
		return tok, nil
	}

	base := strings.TrimSuffix(strings.ToUpper(symbol), ".NS")
	scrips, err := p.api.SearchScrip(ctx, exchangeNSE, base)
	if err != nil {
		return "", fmt.Errorf("angel: search %s: %w", symbol, err)
	}
	tok = pickToken(scrips, base)
	if tok == "" {
		return "", model.Absent(symbol, model.ReasonEmpty, fmt.Errorf("angel: no NSE equity listing for %s", base))
	}

	p.mu.Lock()
	p.tokens[symbol] = tok
	p.mu.Unlock()
	return tok, nil
}

func pickToken(scrips []smartconnect.Scrip, base string) string {
	var plain string
	for _, s := range scrips {
		switch s.TradingSymbol {
		case base + "-EQ":
			return s.SymbolToken
		case base:
			plain = s.SymbolToken
		}
	}
	return plain
}

func smartInterval(d time.Duration) (smartconnect.Interval, error) {
	switch d {
	case time.Minute:
		return smartconnect.OneMinute, nil
	case 3 * time.Minute:
		return smartconnect.ThreeMinute, nil
	case 5 * time.Minute:
		return smartconnect.FiveMinute, nil
	case 10 * time.Minute:
		return smartconnect.TenMinute, nil
	case 15 * time.Minute:
		return smartconnect.FifteenMinute, nil
	case 30 * time.Minute:
		return smartconnect.ThirtyMinute, nil
	case time.Hour:
		return smartconnect.OneHour, nil
	case 24 * time.Hour:
		return smartconnect.OneDay, nil
	}
	return "", fmt.Errorf("angel: unsupported interval %s", d)
}
