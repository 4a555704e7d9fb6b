package market

import (
	"context"
	"log/slog"
	"time"
)

// DefaultTTL is how long a cached snapshot stays fresh.
const DefaultTTL = 60 * time.Second

// Fetcher fetches a fresh market snapshot.
type Fetcher interface {
	FetchMarket(ctx context.Context, conditionID string) (*Snapshot, error)
}

// Cache keeps recent market snapshots keyed by condition ID.
//
// Cache is not safe for concurrent use. The engine calls it from a single
// consumer goroutine.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	entries map[string]*Snapshot
	now     func() time.Time
}

// NewCache creates a cache in front of a fetcher. A non-positive ttl falls
// back to DefaultTTL.
func NewCache(fetcher Fetcher, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		entries: make(map[string]*Snapshot),
		now:     time.Now,
	}
}

// Get returns a snapshot for a condition ID, fetching a fresh one when the
// cached entry is missing or stale.
func (c *Cache) Get(ctx context.Context, conditionID string) (*Snapshot, error) {
	if snap, ok := c.entries[conditionID]; ok {
		if c.now().Sub(snap.CachedAt) < c.ttl {
			return snap, nil
		}
	}

	snap, err := c.fetcher.FetchMarket(ctx, conditionID)
	if err != nil {
		return nil, err
	}
	snap.CachedAt = c.now()
	c.entries[conditionID] = snap

	slog.Debug("market_cached",
		"condition_id", truncate(conditionID, 12),
		"closed", snap.Closed,
		"volume_24h", snap.Volume24h)
	return snap, nil
}

// Len returns the number of cached markets.
func (c *Cache) Len() int {
	return len(c.entries)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + ".."
}
