package screener

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"volscreener/internal/model"
)

func rec(sym string, cur, avg float64) model.VolumeRecord {
	return model.VolumeRecord{Symbol: sym, CurrentVolume: cur, AvgVolumePrevDay: avg, SpikeRatio: cur / avg}
}

func TestFilterSpikes(t *testing.T) {
	in := []model.VolumeRecord{rec("A", 10000, 1000), rec("B", 9999, 1000), rec("C", 50000, 1000)}
	got := FilterSpikes(in, 10)
	assert.Equal(t, []model.VolumeRecord{in[0], in[2]}, got)
}

func TestRank(t *testing.T) {
	records := []model.VolumeRecord{
		rec("LOW", 90000, 1000),
		rec("B", 20000, 1000),
		rec("A", 20000, 1000),
		rec("C", 30000, 1000),
		rec("EDGE", 50000, 1000),
		rec("NOCAP", 60000, 1000),
	}
	caps := map[string]model.MarketCapRecord{
		"LOW":  {MarketCapCr: 999},
		"B":    {MarketCapCr: 5000, Source: model.CapLive},
		"A":    {MarketCapCr: 5000, Source: model.CapLive},
		"C":    {MarketCapCr: 1001, Source: model.CapFallback},
		"EDGE": {MarketCapCr: 1000},
	}

	rows := Rank(records, caps, 1000, 10)
	var syms []string
	for _, r := range rows {
		syms = append(syms, r.Symbol)
	}
	assert.Equal(t, []string{"C", "A", "B"}, syms)
	assert.Equal(t, model.CapFallback, rows[0].CapSource)

	assert.Len(t, Rank(records, caps, 1000, 2), 2)
}

func TestFormatMarketCap(t *testing.T) {
	assert.Equal(t, "2.50K", FormatMarketCap(2500))
	assert.Equal(t, "850.00", FormatMarketCap(850))
	assert.Equal(t, "1.00K", FormatMarketCap(1000))
	assert.Equal(t, "15.00x", FormatRatio(15))
}
