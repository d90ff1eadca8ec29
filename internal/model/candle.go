package model

import (
	"sort"
	"time"
)

// Candle is one fixed-interval OHLCV bucket from the upstream history API.
// TS is the bucket start time.
type Candle struct {
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Series is an intraday candle series for one symbol.
// HasVolume is false when the upstream response carried no volume column.
type Series struct {
	Symbol    string        `json:"symbol"`
	Interval  time.Duration `json:"interval"`
	Candles   []Candle      `json:"candles"`
	HasVolume bool          `json:"has_volume"`
}

// Empty reports whether the series holds no candles.
func (s Series) Empty() bool {
	return len(s.Candles) == 0
}

// TotalVolume sums Volume across all candles.
func (s Series) TotalVolume() int64 {
	var sum int64
	for _, c := range s.Candles {
		sum += c.Volume
	}
	return sum
}

// Sorted returns the candles ordered by TS. The receiver is not modified.
func (s Series) Sorted() []Candle {
	out := make([]Candle, len(s.Candles))
	copy(out, s.Candles)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })
	return out
}

// Last returns the most recent candle by TS.
func (s Series) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	last := s.Candles[0]
	for _, c := range s.Candles[1:] {
		if !c.TS.Before(last.TS) {
			last = c
		}
	}
	return last, true
}
