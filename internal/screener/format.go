package screener

import "fmt"

// FormatMarketCap renders a crore value for display: "2.50K" for 2500,
// "850.00" for 850.
func FormatMarketCap(v float64) string {
	if v >= 1000 {
		return fmt.Sprintf("%.2fK", v/1000)
	}
	return fmt.Sprintf("%.2f", v)
}

// FormatRatio renders a spike ratio as "12.34x".
func FormatRatio(r float64) string {
	return fmt.Sprintf("%.2fx", r)
}
