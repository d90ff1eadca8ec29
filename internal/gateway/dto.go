package gateway

import (
	"time"

	"volscreener/internal/markethours"
	"volscreener/internal/model"
	"volscreener/internal/screener"
)

// RowOut is one display row of /api/screen.
type RowOut struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	CurrentVolume float64 `json:"current_volume"`
	AvgVolume     float64 `json:"avg_volume_prev_day"`
	SpikeRatio    string  `json:"volume_spike_ratio"`
	MarketCap     string  `json:"market_cap"`
	MarketCapCr   float64 `json:"market_cap_cr"`
	CapSource     string  `json:"cap_source"`
}

// ScreenOut is the REST and websocket payload for a screen result.
type ScreenOut struct {
	Type       string           `json:"type"`
	CycleID    string           `json:"cycle_id"`
	LastUpdate string           `json:"last_update"`
	Degraded   bool             `json:"degraded"`
	Message    string           `json:"message,omitempty"`
	Rows       []RowOut         `json:"rows"`
	Stats      model.CycleStats `json:"stats"`
}

// StatusOut is the /api/status payload.
type StatusOut struct {
	MarketOpen      bool    `json:"market_open"`
	MarketStatus    string  `json:"market_status"`
	TimeIST         string  `json:"time_ist"`
	Running         bool    `json:"running"`
	Progress        float64 `json:"progress"`
	IntervalMinutes int     `json:"interval_minutes"`
	LastUpdate      string  `json:"last_update,omitempty"`
	Clients         int     `json:"ws_clients"`
}

const istLayout = "2006-01-02 15:04:05 IST"

// NewScreenOut formats r for display.
func NewScreenOut(r model.ScreenResult) ScreenOut {
	out := ScreenOut{
		Type:       "screen",
		CycleID:    r.CycleID,
		LastUpdate: formatIST(r.GeneratedAt),
		Degraded:   r.Degraded,
		Rows:       make([]RowOut, len(r.Rows)),
		Stats:      r.Stats,
	}
	for i, row := range r.Rows {
		out.Rows[i] = RowOut{
			Symbol:        row.Symbol,
			Name:          row.Name,
			CurrentVolume: row.CurrentVolume,
			AvgVolume:     row.AvgVolumePrevDay,
			SpikeRatio:    screener.FormatRatio(row.SpikeRatio),
			MarketCap:     screener.FormatMarketCap(row.MarketCapCr),
			MarketCapCr:   row.MarketCapCr,
			CapSource:     string(row.CapSource),
		}
	}
	switch {
	case r.Stats.UniverseSize == 0:
		out.Message = "No symbols available to screen"
	case len(r.Rows) == 0:
		out.Message = "No stocks meet the screening criteria"
	case r.Degraded:
		out.Message = "Live data unavailable; showing sample data"
	}
	return out
}

func formatIST(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(markethours.IST).Format(istLayout)
}
