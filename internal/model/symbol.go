package model

import "sort"

// SymbolEntry pairs an exchange-suffixed ticker with its display name.
type SymbolEntry struct {
	Symbol      string `json:"symbol"`
	DisplayName string `json:"display_name"`
}

// Universe maps ticker → display name. It is replaced wholesale, never
// mutated after it has been handed out.
type Universe map[string]string

// Entries returns the universe as entries sorted by symbol.
func (u Universe) Entries() []SymbolEntry {
	out := make([]SymbolEntry, 0, len(u))
	for s, n := range u {
		out = append(out, SymbolEntry{Symbol: s, DisplayName: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Clone returns an independent copy.
func (u Universe) Clone() Universe {
	out := make(Universe, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}
