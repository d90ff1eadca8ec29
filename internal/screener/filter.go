package screener

import (
	"sort"

	"volscreener/internal/model"
)

// FilterSpikes keeps records whose SpikeRatio is at least minRatio,
// preserving input order.
func FilterSpikes(records []model.VolumeRecord, minRatio float64) []model.VolumeRecord {
	out := make([]model.VolumeRecord, 0, len(records))
	for _, r := range records {
		if r.AvgVolumePrevDay > 0 && r.SpikeRatio >= minRatio {
			out = append(out, r)
		}
	}
	return out
}

// Rank joins records with their market caps, keeps those strictly above
// minCapCr, sorts by CurrentVolume descending (ties by symbol) and keeps
// at most topN rows.
func Rank(records []model.VolumeRecord, caps map[string]model.MarketCapRecord, minCapCr float64, topN int) []model.ScreenRow {
	rows := make([]model.ScreenRow, 0, len(records))
	for _, r := range records {
		c, ok := caps[r.Symbol]
		if !ok || c.MarketCapCr <= minCapCr {
			continue
		}
		rows = append(rows, model.ScreenRow{VolumeRecord: r, MarketCapCr: c.MarketCapCr, CapSource: c.Source})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].CurrentVolume != rows[j].CurrentVolume {
			return rows[i].CurrentVolume > rows[j].CurrentVolume
		}
		return rows[i].Symbol < rows[j].Symbol
	})
	if topN > 0 && len(rows) > topN {
		rows = rows[:topN]
	}
	return rows
}
