// Package screener turns a symbol universe into a ranked list of intraday
// volume spikes among large caps.
package screener

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"volscreener/internal/batch"
	"volscreener/internal/logger"
	"volscreener/internal/model"
	"volscreener/internal/sample"
)

// Progress split between the two phases of a cycle.
const (
	volumePhaseSpan = 0.7
	capPhaseSpan    = 0.3
)

// Policy holds the screening thresholds.
type Policy struct {
	MinSpikeRatio  float64
	MinMarketCapCr float64
	TopN           int
	// MinLiveSuccesses is the volume-stage yield below which the sample
	// dataset replaces live records. It is capped at the universe size.
	MinLiveSuccesses int
}

// DefaultPolicy is 10x volume, above 1000 crore, top 10, 5 live successes.
func DefaultPolicy() Policy {
	return Policy{MinSpikeRatio: 10, MinMarketCapCr: 1000, TopN: 10, MinLiveSuccesses: 5}
}

// VolumeEvaluator is satisfied by *Evaluator.
type VolumeEvaluator interface {
	Evaluate(ctx context.Context, symbol, name string) (model.VolumeRecord, error)
}

// CapEnricher is satisfied by *Enricher.
type CapEnricher interface {
	MarketCaps(ctx context.Context, symbols []string, progress batch.ProgressFunc) (map[string]model.MarketCapRecord, EnrichStats)
	BackfillSample(recs map[string]model.MarketCapRecord, st *EnrichStats)
}

// Pipeline runs one screening cycle.
type Pipeline struct {
	eval   VolumeEvaluator
	enrich CapEnricher
	policy Policy
	volume batch.Options
	now    func() time.Time
	log    *zap.Logger
}

// NewPipeline creates a Pipeline; volume sizes the per-symbol evaluation batches.
func NewPipeline(eval VolumeEvaluator, enrich CapEnricher, policy Policy, volume batch.Options, log *zap.Logger) *Pipeline {
	return &Pipeline{
		eval:   eval,
		enrich: enrich,
		policy: policy,
		volume: volume,
		now:    time.Now,
		log:    log.With(zap.String("component", "pipeline")),
	}
}

// Produce screens u and never fails. The cycle ID comes from the context
// trace ID when one is set. progress runs 0..0.7 over the volume phase and
// 0.7..1.0 over market-cap enrichment.
func (p *Pipeline) Produce(ctx context.Context, u model.Universe, progress batch.ProgressFunc) model.ScreenResult {
	started := p.now()
	cycleID := logger.TraceID(ctx)
	if cycleID == "" {
		cycleID = uuid.NewString()
		ctx = logger.WithTraceID(ctx, cycleID)
	}
	log := logger.FromContext(ctx, p.log)

	res := model.ScreenResult{CycleID: cycleID, Rows: []model.ScreenRow{}}
	st := &res.Stats
	st.UniverseSize = len(u)

	var mu sync.Mutex
	absent := make(map[model.Reason]int)
	records := batch.Run(ctx, u.Entries(), func(ctx context.Context, e model.SymbolEntry) (model.VolumeRecord, bool) {
		r, err := p.eval.Evaluate(ctx, e.Symbol, e.DisplayName)
		if err != nil {
			reason := model.ReasonOf(err)
			log.Debug("symbol excluded", zap.String("symbol", e.Symbol), zap.String("reason", string(reason)), zap.Error(err))
			mu.Lock()
			absent[reason]++
			mu.Unlock()
			return r, false
		}
		return r, true
	}, p.volume, batch.Scale(progress, 0, volumePhaseSpan))
	st.LiveVolume = len(records)
	if len(absent) > 0 {
		st.Absent = absent
	}

	// Capped at the universe size: a universe smaller than MinLiveSuccesses
	// that answered in full is served live.
	threshold := p.policy.MinLiveSuccesses
	if threshold > len(u) {
		threshold = len(u)
	}
	if len(records) < threshold {
		st.VolumeDegraded = true
		records = sample.VolumeRecords()
		log.Warn("live volume yield below threshold, serving sample dataset",
			zap.Int("live", st.LiveVolume), zap.Int("threshold", threshold), zap.Int("universe", len(u)))
	}

	spikes := FilterSpikes(records, p.policy.MinSpikeRatio)
	st.SpikeCandidates = len(spikes)
	if len(spikes) > 0 {
		syms := make([]string, len(spikes))
		for i, r := range spikes {
			syms[i] = r.Symbol
		}
		caps, es := p.enrich.MarketCaps(ctx, syms, batch.Scale(progress, volumePhaseSpan, capPhaseSpan))
		if st.VolumeDegraded && !es.Degraded {
			p.enrich.BackfillSample(caps, &es)
		}
		st.CapLive, st.CapCached, st.CapFallback = es.Live, es.Cached, es.Fallback
		st.CapSample, st.CapZero, st.CapDegraded = es.Sample, es.Zero, es.Degraded

		res.Rows = Rank(spikes, caps, p.policy.MinMarketCapCr, p.policy.TopN)
	}
	if progress != nil {
		progress(1)
	}

	res.Degraded = st.VolumeDegraded || st.CapDegraded
	res.GeneratedAt = p.now()
	st.Duration = res.GeneratedAt.Sub(started)
	log.Info("screen cycle complete",
		zap.Int("universe", st.UniverseSize),
		zap.Int("live", st.LiveVolume),
		zap.Int("candidates", st.SpikeCandidates),
		zap.Int("rows", len(res.Rows)),
		zap.Bool("degraded", res.Degraded),
		zap.Duration("took", st.Duration),
	)
	return res
}
