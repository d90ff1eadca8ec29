// Package batch runs a per-item function over a slice in fixed-size,
// sequential batches with a bounded worker pool inside each batch.
package batch

import (
	"context"
	"sync"
	"time"
)

// Options sizes a run.
type Options struct {
	BatchSize int
	Workers   int
	// Delay is waited between batches, never after the last one.
	Delay time.Duration
}

// ProgressFunc receives the completed fraction in [0, 1].
type ProgressFunc func(float64)

// Run applies fn to every item and returns the present results in
// submission order. fn reports absence with ok=false; a panic inside fn
// counts as absence. progress, if non-nil, is called after each batch and
// always ends at 1.0.
//
// Cancelling ctx stops scheduling further batches; items already handed
// to fn still complete.
func Run[T, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, bool), opts Options, progress ProgressFunc) []R {
	report := func(p float64) {
		if progress != nil {
			progress(p)
		}
	}
	total := len(items)
	if total == 0 {
		report(1)
		return nil
	}

	size := opts.BatchSize
	if size < 1 {
		size = total
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	type slot struct {
		val R
		ok  bool
	}
	slots := make([]slot, total)

	processed := 0
	for start := 0; start < total; start += size {
		if start > 0 {
			if !wait(ctx, opts.Delay) {
				break
			}
		}
		end := start + size
		if end > total {
			end = total
		}

		idx := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers && w < end-start; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range idx {
					slots[i].val, slots[i].ok = safeCall(ctx, fn, items[i])
				}
			}()
		}
		for i := start; i < end; i++ {
			idx <- i
		}
		close(idx)
		wg.Wait()

		processed = end
		report(fraction(processed, total))
	}
	if processed < total {
		report(1)
	}

	out := make([]R, 0, total)
	for _, s := range slots {
		if s.ok {
			out = append(out, s.val)
		}
	}
	return out
}

// Scale maps a run's fraction p into [offset, offset+span] of a wider bar.
func Scale(p ProgressFunc, offset, span float64) ProgressFunc {
	if p == nil {
		return nil
	}
	return func(f float64) { p(offset + f*span) }
}

func safeCall[T, R any](ctx context.Context, fn func(context.Context, T) (R, bool), item T) (r R, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			var zero R
			r, ok = zero, false
		}
	}()
	return fn(ctx, item)
}

func fraction(done, total int) float64 {
	f := float64(done) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}

func wait(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
