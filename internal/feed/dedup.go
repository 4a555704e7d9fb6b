package feed

import "sort"

// DefaultWindowLimit is the bound on the seen-transaction set before pruning.
const DefaultWindowLimit = 10000

// Window tracks seen transaction hashes and a monotonic watermark timestamp.
// A transaction hash present in the set is never reprocessed, and no event
// at or before the last accepted event's timestamp is re-emitted.
//
// Not safe for concurrent use: the feed confines it to the goroutine running
// the active acquisition strategy.
type Window struct {
	seen      map[string]int64
	watermark int64
	limit     int
}

// NewWindow creates a deduplication window bounded at limit entries.
func NewWindow(limit int) *Window {
	if limit <= 0 {
		limit = DefaultWindowLimit
	}
	return &Window{
		seen:  make(map[string]int64),
		limit: limit,
	}
}

// Accept reports whether the event identified by txHash at timestamp ts is
// new, recording it if so. Events with a seen hash or a timestamp at or
// before the watermark are rejected.
func (w *Window) Accept(txHash string, ts int64) bool {
	if txHash != "" {
		if _, ok := w.seen[txHash]; ok {
			return false
		}
	}
	if ts <= w.watermark {
		return false
	}

	if txHash != "" {
		w.seen[txHash] = ts
	}
	w.watermark = ts

	if len(w.seen) > w.limit {
		w.prune()
	}
	return true
}

// Watermark returns the timestamp of the most recently accepted event.
func (w *Window) Watermark() int64 {
	return w.watermark
}

// Len returns the number of tracked transaction hashes.
func (w *Window) Len() int {
	return len(w.seen)
}

// prune drops the oldest half of the seen set. Anything evicted is at or
// below the watermark, so the watermark check still rejects a re-delivery.
func (w *Window) prune() {
	type entry struct {
		tx string
		ts int64
	}
	entries := make([]entry, 0, len(w.seen))
	for tx, ts := range w.seen {
		entries = append(entries, entry{tx, ts})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ts > entries[j].ts
	})

	keep := w.limit / 2
	pruned := make(map[string]int64, keep)
	for i := 0; i < keep && i < len(entries); i++ {
		pruned[entries[i].tx] = entries[i].ts
	}
	w.seen = pruned
}
