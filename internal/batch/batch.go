// Package batch runs per-item work concurrently and accumulates a per-item
// success/failure report. Items are fully independent: one item's failure
// never blocks or fails its siblings, and no ordering is guaranteed.
package batch

import (
	"context"
	"sync"
)

// ItemResult is the outcome of one batch item.
type ItemResult struct {
	Index int
	ID    string
	Err   error
}

// Failed reports whether the item must be redelivered.
func (r ItemResult) Failed() bool {
	return r.Err != nil
}

// Report collects the outcomes of one batch invocation.
type Report struct {
	mu    sync.Mutex
	items []ItemResult
}

// Items returns all item results, ordered by item index.
func (r *Report) Items() []ItemResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ItemResult, len(r.items))
	copy(out, r.items)
	return out
}

// Failed returns the results of items that must be redelivered.
func (r *Report) Failed() []ItemResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	var failed []ItemResult
	for _, item := range r.items {
		if item.Failed() {
			failed = append(failed, item)
		}
	}
	return failed
}

// FailedCount returns the number of failed items.
func (r *Report) FailedCount() int {
	return len(r.Failed())
}

func (r *Report) record(item ItemResult) {
	r.mu.Lock()
	r.items[item.Index] = item
	r.mu.Unlock()
}

// Fn processes a single batch item and returns its outcome. Implementations
// must respect ctx: items still in flight when the batch budget expires are
// expected to fail with the context error and be redelivered.
type Fn func(ctx context.Context, index int) ItemResult

// Run fans out one goroutine per item, waits for all of them, and returns
// the joined report. The shared report is the only cross-item state.
func Run(ctx context.Context, n int, fn Fn) *Report {
	report := &Report{items: make([]ItemResult, n)}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(index int) {
			defer wg.Done()
			report.record(fn(ctx, index))
		}(i)
	}
	wg.Wait()

	return report
}
