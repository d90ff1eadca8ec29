package markethours

import "time"

type monthDay struct {
	month time.Month
	day   int
}

// NSE trading holidays by year, from the exchange circulars.
var nseHolidays = map[int][]monthDay{
	2025: {
		{time.February, 26}, // Mahashivratri
		{time.March, 14},    // Holi
		{time.March, 31},    // Id-ul-Fitr
		{time.April, 10},    // Mahavir Jayanti
		{time.April, 14},    // Dr. Ambedkar Jayanti
		{time.April, 18},    // Good Friday
		{time.May, 1},       // Maharashtra Day
		{time.August, 15},   // Independence Day
		{time.August, 27},   // Ganesh Chaturthi
		{time.October, 2},   // Gandhi Jayanti / Dussehra
		{time.October, 21},  // Diwali Laxmi Pujan
		{time.October, 22},  // Diwali Balipratipada
		{time.November, 5},  // Guru Nanak Jayanti
		{time.December, 25}, // Christmas
	},
	2026: {
		{time.January, 26},  // Republic Day
		{time.February, 17}, // Mahashivratri
		{time.March, 14},    // Holi
		{time.March, 31},    // Id-ul-Fitr
		{time.April, 2},     // Ram Navami
		{time.April, 6},     // Mahavir Jayanti
		{time.April, 10},    // Good Friday
		{time.April, 14},    // Dr. Ambedkar Jayanti
		{time.May, 1},       // Maharashtra Day
		{time.June, 7},      // Bakri Id
		{time.July, 6},      // Muharram
		{time.August, 15},   // Independence Day
		{time.August, 16},   // Janmashtami
		{time.September, 5}, // Milad-un-Nabi
		{time.October, 2},   // Gandhi Jayanti
		{time.October, 20},  // Dussehra
		{time.November, 5},  // Diwali Laxmi Pujan
		{time.November, 6},  // Diwali Balipratipada
		{time.November, 19}, // Guru Nanak Jayanti
		{time.December, 25}, // Christmas
	},
}

var holidaySet = func() map[string]bool {
	set := make(map[string]bool)
	for year, days := range nseHolidays {
		for _, h := range days {
			set[dateKey(time.Date(year, h.month, h.day, 0, 0, 0, 0, IST))] = true
		}
	}
	return set
}()

// IsHoliday returns true if t's IST date is a listed NSE holiday.
// Years without a list have no holidays.
func IsHoliday(t time.Time) bool {
	return holidaySet[dateKey(t.In(IST))]
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
