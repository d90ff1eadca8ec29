package universe

import "strings"

const defaultSuffix = ".NS"

var suffixes = []string{".NS", ".BO"}

// aliases maps tickers the upstream no longer lists (renames, mergers,
// truncated codes) to their canonical listing. Targets must not be keys.
var aliases = map[string]string{
	"ULTRACEM.NS":  "ULTRACEMCO.NS",
	"HDFC.NS":      "HDFCBANK.NS",
	"LTI.NS":       "LTIM.NS",
	"MINDTREE.NS":  "LTIM.NS",
	"INFOSYS.NS":   "INFY.NS",
	"MM.NS":        "M&M.NS",
	"BAJAJAUTO.NS": "BAJAJ-AUTO.NS",
}

// Normalize maps a caller-facing ticker to the symbol the upstream lists.
// It is pure and idempotent.
func Normalize(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return s
	}
	if !hasSuffix(s) {
		s += defaultSuffix
	}
	if canonical, ok := aliases[s]; ok {
		return canonical
	}
	return s
}

// Strip removes the exchange suffix.
func Strip(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return strings.TrimSuffix(s, suf)
		}
	}
	return s
}

func hasSuffix(s string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
