package model

import "time"

// VolumeRecord is the per-symbol output of the volume spike evaluation.
// SpikeRatio == CurrentVolume / AvgVolumePrevDay and AvgVolumePrevDay > 0.
type VolumeRecord struct {
	Symbol           string  `json:"symbol"`
	Name             string  `json:"name"`
	CurrentVolume    float64 `json:"current_volume"`
	AvgVolumePrevDay float64 `json:"avg_volume_prev_day"`
	SpikeRatio       float64 `json:"volume_spike_ratio"`
}

// CapSource says where a market-cap value came from.
type CapSource string

const (
	CapLive     CapSource = "live"
	CapCache    CapSource = "cache"
	CapFallback CapSource = "fallback"
	CapSample   CapSource = "sample"
	CapNone     CapSource = "none"
)

// MarketCapRecord is a crore-denominated market capitalization.
type MarketCapRecord struct {
	Symbol      string    `json:"symbol"`
	MarketCapCr float64   `json:"market_cap_cr"`
	Source      CapSource `json:"source"`
}

// ScreenRow is a VolumeRecord joined with its MarketCapRecord.
type ScreenRow struct {
	VolumeRecord
	MarketCapCr float64   `json:"market_cap_cr"`
	CapSource   CapSource `json:"cap_source"`
}

// CycleStats carries the counts a caller needs to render empty or
// degraded states.
type CycleStats struct {
	UniverseSize    int           `json:"universe_size"`
	LiveVolume      int           `json:"live_volume"`
	SpikeCandidates int           `json:"spike_candidates"`
	CapLive         int           `json:"cap_live"`
	CapCached       int           `json:"cap_cached"`
	CapFallback     int           `json:"cap_fallback"`
	CapSample       int           `json:"cap_sample"`
	CapZero         int           `json:"cap_zero"`
	VolumeDegraded  bool          `json:"volume_degraded"`
	CapDegraded     bool          `json:"cap_degraded"`
	Duration        time.Duration `json:"duration_ns"`
	// Absent counts volume-stage exclusions by reason.
	Absent map[Reason]int `json:"absent,omitempty"`
}

// ScreenResult is one refresh cycle's ranked output, at most TopN rows,
// descending by CurrentVolume.
type ScreenResult struct {
	CycleID     string      `json:"cycle_id"`
	GeneratedAt time.Time   `json:"generated_at"`
	Rows        []ScreenRow `json:"rows"`
	Degraded    bool        `json:"degraded"`
	Stats       CycleStats  `json:"stats"`
}

// Symbols returns the row symbols in rank order.
func (r ScreenResult) Symbols() []string {
	out := make([]string, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.Symbol
	}
	return out
}
