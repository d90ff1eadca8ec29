package notification

import (
	"fmt"
	"strings"

	"volscreener/internal/model"
)

// ScreenAlerts compares two consecutive results and returns the alerts
// worth sending: entering or leaving degraded mode, and symbols new to the
// ranked list. prev is nil for the first result of the process.
func ScreenAlerts(prev *model.ScreenResult, cur model.ScreenResult) []Alert {
	var out []Alert
	wasDegraded := prev != nil && prev.Degraded
	switch {
	case cur.Degraded && !wasDegraded:
		out = append(out, Alert{
			Level: AlertWarning,
			Title: "Screener serving sample data",
			Message: fmt.Sprintf("Only %d of %d symbols returned live volume; results are synthetic until the upstream recovers.",
				cur.Stats.LiveVolume, cur.Stats.UniverseSize),
		})
	case !cur.Degraded && wasDegraded:
		out = append(out, Alert{
			Level:   AlertInfo,
			Title:   "Live data restored",
			Message: fmt.Sprintf("%d of %d symbols returned live volume.", cur.Stats.LiveVolume, cur.Stats.UniverseSize),
		})
	}
	if cur.Degraded {
		return out
	}

	seen := make(map[string]bool)
	if prev != nil && !prev.Degraded {
		for _, s := range prev.Symbols() {
			seen[s] = true
		}
	}
	var fresh []string
	for _, r := range cur.Rows {
		if !seen[r.Symbol] {
			fresh = append(fresh, fmt.Sprintf("%s %.1fx", r.Symbol, r.SpikeRatio))
		}
	}
	if len(fresh) > 0 {
		out = append(out, Alert{
			Level:   AlertInfo,
			Title:   "New volume spikes",
			Message: strings.Join(fresh, ", "),
		})
	}
	return out
}
