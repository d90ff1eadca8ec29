// Package markethours answers NSE session questions in IST.
package markethours

import (
	"fmt"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// Clock is a time of day, second precision.
type Clock struct {
	Hour, Minute, Second int
}

// Session bounds in IST, both inclusive.
var (
	Open  = Clock{Hour: 9, Minute: 15}
	Close = Clock{Hour: 15, Minute: 30}
)

// ParseClock parses "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (Clock, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return Clock{}, fmt.Errorf("markethours: invalid clock %q", s)
}

func (c Clock) seconds() int { return c.Hour*3600 + c.Minute*60 + c.Second }

// On returns the instant at clock c on t's IST date.
func (c Clock) On(t time.Time) time.Time {
	ist := t.In(IST)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), c.Hour, c.Minute, c.Second, 0, IST)
}

func (c Clock) String() string {
	if c.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
	}
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Within reports whether t's IST time of day lies in [from, to].
// Sub-second parts are ignored.
func Within(t time.Time, from, to Clock) bool {
	ist := t.In(IST)
	s := ist.Hour()*3600 + ist.Minute()*60 + ist.Second()
	return s >= from.seconds() && s <= to.seconds()
}

// IsMarketOpen returns true if t is Mon–Fri between 09:15:00 and 15:30:00
// IST inclusive. Holidays are not consulted; see IsSessionOpen.
func IsMarketOpen(t time.Time) bool {
	return IsWeekday(t) && Within(t, Open, Close)
}

// IsSessionOpen is IsMarketOpen excluding exchange holidays.
func IsSessionOpen(t time.Time) bool {
	return IsMarketOpen(t) && !IsHoliday(t)
}

// IsWeekday returns true if t is Mon–Fri.
func IsWeekday(t time.Time) bool {
	wd := t.In(IST).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func IsTradingDay(t time.Time) bool {
	ist := t.In(IST)
	return IsWeekday(ist) && !IsHoliday(ist)
}

// PrevBusinessDay walks back from t minus one day, skipping Saturday and
// Sunday. The result keeps t's time of day.
func PrevBusinessDay(t time.Time) time.Time {
	d := t.In(IST).AddDate(0, 0, -1)
	for !IsWeekday(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// StartOfDay returns midnight IST of t's date.
func StartOfDay(t time.Time) time.Time {
	return Clock{}.On(t)
}

// NextOpen returns the next session open on a trading day.
// If t is before today's open on a trading day, returns today's open.
func NextOpen(t time.Time) time.Time {
	ist := t.In(IST)

	todayOpen := Open.On(ist)
	if ist.Before(todayOpen) && IsTradingDay(ist) {
		return todayOpen
	}

	d := ist.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ { // weekends plus the longest holiday run
		if IsTradingDay(d) {
			return Open.On(d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return Open.On(ist.AddDate(0, 0, 1))
}

// TimeUntilClose returns the duration until today's close, or 0 once closed.
func TimeUntilClose(t time.Time) time.Duration {
	d := Close.On(t).Sub(t.In(IST))
	if d < 0 {
		return 0
	}
	return d
}

// StatusString returns a human-readable market status.
func StatusString(t time.Time) string {
	if IsSessionOpen(t) {
		return fmt.Sprintf("Market Open, closes in %s", fmtDur(TimeUntilClose(t)))
	}
	next := NextOpen(t)
	ist := next.In(IST)
	return fmt.Sprintf("Market Closed, opens %s %s (%s)",
		ist.Weekday().String()[:3], ist.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
