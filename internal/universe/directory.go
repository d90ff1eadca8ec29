// Package universe resolves the screening universe and maps caller-facing
// tickers to the symbols the upstream lists.
package universe

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"volscreener/internal/cache"
	"volscreener/internal/model"
)

// Options configures how a universe is rebuilt on cache miss.
type Options struct {
	// Symbols overrides the built-in reliable list when non-empty.
	Symbols []string
	// Listing is tried first when set; failures fall through to Symbols.
	Listing ListingSource
	// MaxSymbols caps a listing-derived universe. 0 means no cap.
	MaxSymbols int
}

// Directory resolves the universe through the shared symbol cache.
type Directory struct {
	cache *cache.Value[model.Universe]
	opts  Options
	log   *zap.Logger
}

// NewDirectory creates a Directory backed by the service's symbol cache.
func NewDirectory(c *cache.Service, opts Options, log *zap.Logger) *Directory {
	return &Directory{
		cache: c.Symbols,
		opts:  opts,
		log:   log.With(zap.String("component", "universe")),
	}
}

// Resolve returns the cached universe while it is fresh, otherwise rebuilds
// and caches it. It never fails: the worst case is the minimal universe.
func (d *Directory) Resolve(ctx context.Context) (u model.Universe) {
	if cached, ok := d.cache.Get(); ok && len(cached) > 0 {
		return cached.Clone()
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("universe build panicked, using minimal universe", zap.Any("panic", r))
			u = Minimal()
		}
	}()

	u = d.build(ctx)
	if len(u) == 0 {
		d.log.Warn("no symbols resolved, using minimal universe")
		return Minimal()
	}
	d.cache.Set(u.Clone())
	d.log.Info("universe resolved", zap.Int("symbols", len(u)))
	return u
}

func (d *Directory) build(ctx context.Context) model.Universe {
	if d.opts.Listing != nil {
		listed, err := d.opts.Listing.Listing(ctx)
		switch {
		case err != nil && len(listed) > 0:
			d.log.Warn("listing read incomplete, keeping partial listing", zap.Int("symbols", len(listed)), zap.Error(err))
			return d.capListing(listed)
		case err != nil:
			d.log.Warn("listing fetch failed, falling back to static list", zap.Error(err))
		case len(listed) == 0:
			d.log.Warn("listing returned no symbols, falling back to static list")
		default:
			return d.capListing(listed)
		}
	}

	symbols := d.opts.Symbols
	if len(symbols) == 0 {
		symbols = reliableSymbols
	}
	out := make(model.Universe, len(symbols))
	for _, s := range symbols {
		key := withSuffix(s)
		if key == "" {
			continue
		}
		out[key] = DisplayName(key)
	}
	return out
}

// capListing keeps known large caps first, then the rest alphabetically.
func (d *Directory) capListing(listed model.Universe) model.Universe {
	if d.opts.MaxSymbols <= 0 || len(listed) <= d.opts.MaxSymbols {
		return listed
	}
	keys := make([]string, 0, len(listed))
	for k := range listed {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		_, ki := displayNames[keys[i]]
		_, kj := displayNames[keys[j]]
		if ki != kj {
			return ki
		}
		return keys[i] < keys[j]
	})
	out := make(model.Universe, d.opts.MaxSymbols)
	for _, k := range keys[:d.opts.MaxSymbols] {
		out[k] = listed[k]
	}
	return out
}

// Minimal is the hard-coded universe of the most liquid names.
func Minimal() model.Universe {
	out := make(model.Universe, len(minimalSymbols))
	for _, s := range minimalSymbols {
		out[s] = displayNames[s]
	}
	return out
}

func withSuffix(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || hasSuffix(s) {
		return s
	}
	return s + defaultSuffix
}
