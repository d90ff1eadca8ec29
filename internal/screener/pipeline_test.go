package screener

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volscreener/internal/logger"
	"volscreener/internal/model"
	"volscreener/internal/sample"
)

func TestProduce_EndToEnd(t *testing.T) {
	h := newFakeHistory()
	h.days["A.NS"] = spiking(1000, 15000)
	h.days["B.NS"] = spiking(1000, 5000)
	q := &fakeQuotes{quotes: map[string]model.Quote{
		"A.NS": inrQuote("A.NS", 5000),
		"B.NS": inrQuote("B.NS", 9000),
	}}

	res := newTestPipeline(h, q).Produce(context.Background(), model.Universe{"A": "Co A", "B": "Co B"}, nil)

	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	assert.Equal(t, "A", row.Symbol)
	assert.Equal(t, "Co A", row.Name)
	assert.Equal(t, 15.0, row.SpikeRatio)
	assert.Equal(t, 5000.0, row.MarketCapCr)
	assert.False(t, res.Degraded)
	assert.Equal(t, []string{"A.NS"}, q.calls, "B is dropped before any cap lookup")
	assert.Equal(t, 2, res.Stats.LiveVolume)
	assert.Equal(t, 1, res.Stats.SpikeCandidates)
	assert.NotEmpty(t, res.CycleID)
}

func TestProduce_DegradedServesSampleDataset(t *testing.T) {
	h := newFakeHistory()
	u := model.Universe{}
	for i := 0; i < 20; i++ {
		sym := fmt.Sprintf("SYM%02d.NS", i)
		u[sym] = sym
		if i < 3 {
			h.days[sym] = spiking(1000, 2000)
		}
	}

	res := newTestPipeline(h, &fakeQuotes{}).Produce(context.Background(), u, nil)

	assert.True(t, res.Degraded)
	assert.True(t, res.Stats.VolumeDegraded)
	assert.Equal(t, 3, res.Stats.LiveVolume)
	assert.Equal(t, 17, res.Stats.Absent[model.ReasonUpstream])

	want := FilterSpikes(sample.VolumeRecords(), 10)
	assert.Equal(t, len(want), res.Stats.SpikeCandidates)
	require.Len(t, res.Rows, len(want))
	bySym := map[string]model.VolumeRecord{}
	for _, r := range want {
		bySym[r.Symbol] = r
	}
	for _, row := range res.Rows {
		assert.Equal(t, bySym[row.Symbol], row.VolumeRecord)
	}

	again := newTestPipeline(h, &fakeQuotes{}).Produce(context.Background(), u, nil)
	assert.Equal(t, res.Symbols(), again.Symbols())
}

func TestProduce_SmallUniverseNotDegraded(t *testing.T) {
	h := newFakeHistory()
	h.days["A.NS"] = spiking(1000, 2000)

	res := newTestPipeline(h, &fakeQuotes{}).Produce(context.Background(), model.Universe{"A.NS": "A"}, nil)
	assert.False(t, res.Degraded)
	assert.Empty(t, res.Rows)
}

func TestProduce_Bounds(t *testing.T) {
	h := newFakeHistory()
	q := &fakeQuotes{quotes: map[string]model.Quote{}}
	u := model.Universe{}
	for i := 0; i < 15; i++ {
		sym := fmt.Sprintf("S%02d.NS", i)
		u[sym] = sym
		h.days[sym] = spiking(1000, int64(10000+i*1000))
		capCr := 2000.0
		if i%4 == 0 {
			capCr = 800
		}
		q.quotes[sym] = inrQuote(sym, capCr)
	}

	var mu sync.Mutex
	var progress []float64
	res := newTestPipeline(h, q).Produce(context.Background(), u, func(p float64) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	})

	require.NotEmpty(t, res.Rows)
	assert.LessOrEqual(t, len(res.Rows), 10)
	for i, r := range res.Rows {
		assert.GreaterOrEqual(t, r.SpikeRatio, 10.0)
		assert.Greater(t, r.MarketCapCr, 1000.0)
		if i > 0 {
			assert.Greater(t, res.Rows[i-1].CurrentVolume, r.CurrentVolume)
		}
	}
	assert.True(t, sort.Float64sAreSorted(progress))
	assert.Equal(t, 1.0, progress[len(progress)-1])
}

func TestProduce_CycleIDFromContext(t *testing.T) {
	ctx := logger.WithTraceID(context.Background(), "cycle-1")
	res := newTestPipeline(newFakeHistory(), &fakeQuotes{}).Produce(ctx, model.Universe{}, nil)
	assert.Equal(t, "cycle-1", res.CycleID)
	assert.Empty(t, res.Rows)
	assert.False(t, res.Degraded)
}

func TestProduce_SecondCycleFromCacheStaysLive(t *testing.T) {
	h := newFakeHistory()
	q := &fakeQuotes{quotes: map[string]model.Quote{}}
	u := model.Universe{}
	for i := 0; i < 12; i++ {
		sym := fmt.Sprintf("R%02d.NS", i)
		u[sym] = sym
		h.days[sym] = spiking(1000, int64(20000+i*1000))
		q.quotes[sym] = inrQuote(sym, 5000)
	}
	p := newTestPipeline(h, q)

	first := p.Produce(context.Background(), u, nil)
	require.False(t, first.Degraded)
	require.Equal(t, 12, first.Stats.CapLive)

	second := p.Produce(context.Background(), u, nil)
	assert.False(t, second.Degraded)
	assert.False(t, second.Stats.CapDegraded)
	assert.Equal(t, 12, second.Stats.CapCached)
	assert.Equal(t, first.Symbols(), second.Symbols())
}
