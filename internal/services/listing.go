package services

import (
	"sync"
	"time"

	"github.com/damacus/iron-studio/internal/metrics"
	"github.com/damacus/iron-studio/internal/models"
)

// ListingSnapshot is the visible listing of a session.
type ListingSnapshot struct {
	Seq    uint64
	Prefix string
	Items  []models.ViewItem
	Err    error
	// Valid is false before the first fetch and after every mutation.
	Valid     bool
	Loading   bool
	FetchedAt time.Time
}

// ListingCache holds the last listing fetched for a session. Every fetch
// is tagged with a sequence number from Begin; results for anything but the
// latest number are discarded.
type ListingCache struct {
	mu            sync.Mutex
	latest        uint64
	pendingPrefix string
	current       ListingSnapshot
}

// NewListingCache returns an empty cache.
func NewListingCache() *ListingCache {
	return &ListingCache{}
}

// Begin dispatches a fetch for prefix and returns its sequence number.
func (c *ListingCache) Begin(prefix string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest++
	c.pendingPrefix = prefix
	c.current.Loading = true
	return c.latest
}

// Apply stores items fetched under seq. It returns false, leaving the
// visible listing untouched, when a newer fetch was dispatched meanwhile.
func (c *ListingCache) Apply(seq uint64, items []models.ViewItem) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.latest {
		metrics.RecordListingDiscarded()
		return false
	}
	c.current = ListingSnapshot{
		Seq:       seq,
		Prefix:    c.pendingPrefix,
		Items:     items,
		Valid:     true,
		FetchedAt: time.Now(),
	}
	return true
}

// Fail records a failed fetch. The listing is cleared so the error is shown
// instead of stale rows. Stale failures are discarded like stale results.
func (c *ListingCache) Fail(seq uint64, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.latest {
		metrics.RecordListingDiscarded()
		return false
	}
	c.current = ListingSnapshot{
		Seq:       seq,
		Prefix:    c.pendingPrefix,
		Err:       err,
		FetchedAt: time.Now(),
	}
	return true
}

// Invalidate marks the listing stale after a mutation. Fetches dispatched
// before the call can no longer be applied.
func (c *ListingCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest++
	c.current.Valid = false
	c.current.Loading = false
}

// Current returns a copy of the visible listing.
func (c *ListingCache) Current() ListingSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.current
	snap.Items = append([]models.ViewItem(nil), c.current.Items...)
	return snap
}

// Fresh reports whether the cache holds a valid listing of prefix.
func (c *ListingCache) Fresh(prefix string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Valid && c.current.Prefix == prefix
}

// Reset drops the listing entirely, for a session that switched stores.
func (c *ListingCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest++
	c.pendingPrefix = ""
	c.current = ListingSnapshot{}
}
