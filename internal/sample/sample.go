// Package sample holds the synthetic dataset served while the live
// upstream is unavailable. Output is fully determined by Seed.
package sample

import (
	"math/rand"
	"sort"

	"volscreener/internal/model"
)

// Seed fixes the generated volumes.
const Seed = 42

// SpikeShare is the fraction of symbols given a 10-20x spike.
const SpikeShare = 0.2

var names = map[string]string{
	"RELIANCE.NS":   "Reliance Industries",
	"TCS.NS":        "Tata Consultancy Services",
	"HDFCBANK.NS":   "HDFC Bank",
	"INFY.NS":       "Infosys",
	"ICICIBANK.NS":  "ICICI Bank",
	"HINDUNILVR.NS": "Hindustan Unilever",
	"SBIN.NS":       "State Bank of India",
	"BHARTIARTL.NS": "Bharti Airtel",
	"ITC.NS":        "ITC Limited",
	"KOTAKBANK.NS":  "Kotak Mahindra Bank",
	"LT.NS":         "Larsen & Toubro",
	"BAJFINANCE.NS": "Bajaj Finance",
	"AXISBANK.NS":   "Axis Bank",
	"ASIANPAINT.NS": "Asian Paints",
	"MARUTI.NS":     "Maruti Suzuki",
	"TITAN.NS":      "Titan Company",
	"SUNPHARMA.NS":  "Sun Pharmaceutical",
	"ULTRACEMCO.NS": "UltraTech Cement",
	"ULTRACEM.NS":   "UltraTech Cement",
	"TATASTEEL.NS":  "Tata Steel",
	"NTPC.NS":       "NTPC Limited",
}

// market caps in crore
var caps = map[string]float64{
	"RELIANCE.NS":   18000,
	"TCS.NS":        14000,
	"HDFCBANK.NS":   12000,
	"INFY.NS":       7000,
	"ICICIBANK.NS":  7500,
	"HINDUNILVR.NS": 6000,
	"SBIN.NS":       6500,
	"BHARTIARTL.NS": 6200,
	"ITC.NS":        5500,
	"KOTAKBANK.NS":  4200,
	"LT.NS":         4000,
	"BAJFINANCE.NS": 4500,
	"AXISBANK.NS":   3200,
	"ASIANPAINT.NS": 3000,
	"MARUTI.NS":     3300,
	"TITAN.NS":      2800,
	"SUNPHARMA.NS":  2600,
	"ULTRACEMCO.NS": 2500,
	"ULTRACEM.NS":   2500,
	"TATASTEEL.NS":  2200,
	"NTPC.NS":       2400,
}

// Symbols returns the sample universe in ticker order.
func Symbols() []string {
	out := make([]string, 0, len(names))
	for s := range names {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Universe returns the sample symbol → name map.
func Universe() model.Universe {
	u := make(model.Universe, len(names))
	for s, n := range names {
		u[s] = n
	}
	return u
}

// VolumeRecords generates one record per sample symbol, in ticker order.
// Every record satisfies SpikeRatio == CurrentVolume / AvgVolumePrevDay.
func VolumeRecords() []model.VolumeRecord {
	syms := Symbols()
	rng := rand.New(rand.NewSource(Seed))

	spiked := make(map[string]bool)
	n := int(float64(len(syms))*SpikeShare + 0.5)
	for _, i := range rng.Perm(len(syms))[:n] {
		spiked[syms[i]] = true
	}

	out := make([]model.VolumeRecord, 0, len(syms))
	for _, s := range syms {
		avg := float64(10_000 + rng.Intn(990_000))
		var ratio float64
		if spiked[s] {
			ratio = 10 + rng.Float64()*10
		} else {
			ratio = 0.5 + rng.Float64()*9
		}
		cur := float64(int64(avg * ratio))
		out = append(out, model.VolumeRecord{
			Symbol:           s,
			Name:             names[s],
			CurrentVolume:    cur,
			AvgVolumePrevDay: avg,
			SpikeRatio:       cur / avg,
		})
	}
	return out
}

// MarketCap returns the sample crore value for symbol.
func MarketCap(symbol string) (float64, bool) {
	v, ok := caps[symbol]
	return v, ok
}

// MarketCaps returns a copy of the sample market-cap table.
func MarketCaps() map[string]float64 {
	out := make(map[string]float64, len(caps))
	for s, v := range caps {
		out[s] = v
	}
	return out
}
