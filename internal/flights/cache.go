package flights

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/yeonjoon13/Flight-State-Relay/internal/model"
)

const (
	DefaultMaxAge          = 15 * time.Minute
	DefaultCleanupInterval = 5 * time.Minute
)

// Entry is the last state relayed for one aircraft.
type Entry struct {
	State     model.StateVector `json:"state"`
	Partition string            `json:"partition"`
	SentAt    time.Time         `json:"sent_at"`
}

// Cache keeps the most recent delivered state per icao24. A nil *Cache
// ignores updates.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	maxAge  time.Duration
	now     func() time.Time
}

func NewCache(maxAge time.Duration) *Cache {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Cache{entries: make(map[string]Entry), maxAge: maxAge, now: time.Now}
}

// Update records s as delivered to partition. States without an icao24
// cannot be keyed and are not kept.
func (c *Cache) Update(s model.StateVector, partition string) {
	if c == nil || s.ID() == "" {
		return
	}
	c.mu.Lock()
	c.entries[s.ID()] = Entry{State: s, Partition: partition, SentAt: c.now()}
	c.mu.Unlock()
}

// Flights returns a snapshot ordered by icao24.
func (c *Cache) Flights() []Entry {
	c.mu.RLock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].State.ID() < out[j].State.ID() })
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Prune drops entries older than the max age and returns how many went.
func (c *Cache) Prune() int {
	cutoff := c.now().Add(-c.maxAge)
	removed := 0
	c.mu.Lock()
	for id, e := range c.entries {
		if e.SentAt.Before(cutoff) {
			delete(c.entries, id)
			removed++
		}
	}
	c.mu.Unlock()
	return removed
}

// RunCleanup prunes on every tick until ctx is done.
func (c *Cache) RunCleanup(ctx context.Context, interval time.Duration, onPrune func(removed, size int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.Prune(); removed > 0 && onPrune != nil {
				onPrune(removed, c.Len())
			}
		}
	}
}

// ServeHTTP writes the snapshot as a JSON array.
func (c *Cache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(c.Flights())
}
