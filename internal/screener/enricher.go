package screener

import (
	"context"
	"time"

	"go.uber.org/zap"

	"volscreener/internal/batch"
	"volscreener/internal/cache"
	"volscreener/internal/fx"
	"volscreener/internal/logger"
	"volscreener/internal/model"
	"volscreener/internal/sample"
	"volscreener/internal/universe"
)

// EnrichStats counts market-cap resolutions by source.
type EnrichStats struct {
	Requested int
	Live      int
	Cached    int
	Fallback  int
	Sample    int
	Zero      int
	// Degraded is set when sample backfill replaced at least one entry.
	Degraded bool
}

// EnricherConfig holds the enricher's retry and backfill policy.
type EnricherConfig struct {
	Attempts   int
	RetryDelay time.Duration
	Batch      batch.Options
	// Backfill from the sample table when fewer than MinLive live quotes
	// succeeded and more than BackfillAbove symbols were requested.
	MinLive       int
	BackfillAbove int
}

// Enricher resolves crore market caps through the shared cache, a live
// quote, the static fallback table and, as a last resort, the sample table.
type Enricher struct {
	quotes model.QuoteProvider
	rates  fx.RateProvider
	caps   *cache.TTLMap[float64]
	cfg    EnricherConfig
	sleep  func(ctx context.Context, d time.Duration) error
	log    *zap.Logger
}

// NewEnricher creates an Enricher that caches through c.MarketCaps.
func NewEnricher(q model.QuoteProvider, rates fx.RateProvider, c *cache.Service, cfg EnricherConfig, log *zap.Logger) *Enricher {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &Enricher{
		quotes: q,
		rates:  rates,
		caps:   c.MarketCaps,
		cfg:    cfg,
		sleep:  sleepCtx,
		log:    log.With(zap.String("component", "enricher")),
	}
}

// MarketCaps returns one record per requested symbol, keyed by the symbol
// as given.
func (e *Enricher) MarketCaps(ctx context.Context, symbols []string, progress batch.ProgressFunc) (map[string]model.MarketCapRecord, EnrichStats) {
	recs := batch.Run(ctx, symbols, func(ctx context.Context, sym string) (model.MarketCapRecord, bool) {
		return e.resolve(ctx, sym), true
	}, e.cfg.Batch, progress)

	out := make(map[string]model.MarketCapRecord, len(symbols))
	for _, r := range recs {
		out[r.Symbol] = r
	}
	// batch.Run drops entries whose worker panicked
	for _, s := range symbols {
		if _, ok := out[s]; !ok {
			out[s] = model.MarketCapRecord{Symbol: s, Source: model.CapNone}
		}
	}

	st := EnrichStats{Requested: len(symbols)}
	tally(out, &st)
	if st.Live < e.cfg.MinLive && len(symbols) > e.cfg.BackfillAbove {
		live := st.Live
		e.BackfillSample(out, &st)
		if st.Degraded {
			logger.FromContext(ctx, e.log).Warn("live market caps scarce, backfilled from sample table",
				zap.Int("live", live), zap.Int("requested", st.Requested), zap.Int("sampled", st.Sample))
		}
	}
	return out, st
}

// BackfillSample replaces every zero entry that the sample table knows.
// Only recs is changed; the cache keeps the real resolution. st is
// re-tallied and marked degraded only if some entry was replaced.
func (e *Enricher) BackfillSample(recs map[string]model.MarketCapRecord, st *EnrichStats) {
	for sym, r := range recs {
		if r.MarketCapCr > 0 {
			continue
		}
		v, ok := sample.MarketCap(sym)
		if !ok {
			v, ok = sample.MarketCap(universe.Normalize(sym))
		}
		if ok {
			recs[sym] = model.MarketCapRecord{Symbol: sym, MarketCapCr: v, Source: model.CapSample}
		}
	}
	*st = EnrichStats{Requested: st.Requested}
	tally(recs, st)
	st.Degraded = st.Sample > 0
}

func (e *Enricher) resolve(ctx context.Context, sym string) model.MarketCapRecord {
	if v, ok := e.caps.Get(sym); ok {
		return model.MarketCapRecord{Symbol: sym, MarketCapCr: v, Source: model.CapCache}
	}

	upstream := universe.Normalize(sym)
	rec := model.MarketCapRecord{Symbol: sym, Source: model.CapNone}
	if v, err := e.live(ctx, upstream); err == nil {
		rec.MarketCapCr, rec.Source = v, model.CapLive
	} else {
		logger.FromContext(ctx, e.log).Debug("live market cap unavailable",
			zap.String("symbol", sym), zap.String("reason", string(model.ReasonOf(err))), zap.Error(err))
		if v, ok := fallbackCapsCr[upstream]; ok {
			rec.MarketCapCr, rec.Source = v, model.CapFallback
		}
	}
	e.caps.Set(sym, rec.MarketCapCr)
	return rec
}

func (e *Enricher) live(ctx context.Context, symbol string) (float64, error) {
	var err error
	for attempt := 1; attempt <= e.cfg.Attempts; attempt++ {
		var q model.Quote
		q, err = e.quotes.Quote(ctx, symbol)
		if err == nil {
			if q.MarketCap <= 0 {
				err = model.Absent(symbol, model.ReasonNoMarketCap, nil)
			} else {
				cr, cerr := fx.ToCrore(ctx, e.rates, q.MarketCap, q.Currency)
				if cerr != nil {
					return 0, model.Absent(symbol, model.ReasonUnsupportedCurrency, cerr)
				}
				if cr > 0 {
					return cr, nil
				}
				err = model.Absent(symbol, model.ReasonNoMarketCap, nil)
			}
		}
		if !model.ReasonOf(err).Transient() {
			return 0, err
		}
		if attempt < e.cfg.Attempts {
			if serr := e.sleep(ctx, e.cfg.RetryDelay); serr != nil {
				return 0, model.Absent(symbol, model.ReasonCancelled, serr)
			}
		}
	}
	return 0, err
}

func tally(recs map[string]model.MarketCapRecord, st *EnrichStats) {
	for _, r := range recs {
		switch {
		case r.MarketCapCr <= 0:
			st.Zero++
		case r.Source == model.CapLive:
			st.Live++
		case r.Source == model.CapCache:
			st.Cached++
		case r.Source == model.CapFallback:
			st.Fallback++
		case r.Source == model.CapSample:
			st.Sample++
		}
	}
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
