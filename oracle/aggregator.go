package oracle

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"perpengine/market"
)

// Aggregator consults a priority-ordered list of named feeds and falls back
// across them when the highest-priority feed's reading is stale, grounded
// on the swap module's OracleAggregator.
type Aggregator struct {
	mu       sync.RWMutex
	priority []string
	feeds    map[string]Feed
	maxAge   time.Duration
}

// NewAggregator returns an aggregator with the given priority ordering and
// staleness window.
func NewAggregator(priority []string, maxAge time.Duration) *Aggregator {
	return &Aggregator{
		priority: append([]string{}, priority...),
		feeds:    make(map[string]Feed),
		maxAge:   maxAge,
	}
}

// Register adds or replaces a named feed, appending it to the priority list
// if not already present.
func (a *Aggregator) Register(name string, feed Feed) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feeds[key] = feed
	for _, p := range a.priority {
		if p == key {
			return
		}
	}
	a.priority = append(a.priority, key)
}

// GetUnsafe implements Feed, walking the priority list relative to the
// current time.
func (a *Aggregator) GetUnsafe(id market.ID) (Quote, error) {
	return a.GetUnsafeAt(id, time.Now())
}

// GetUnsafeAt returns the first fresh reading found walking the priority
// list, relative to now. Exposed separately from GetUnsafe so callers (and
// tests) can pin the staleness clock.
func (a *Aggregator) GetUnsafeAt(id market.ID, now time.Time) (Quote, error) {
	a.mu.RLock()
	priority := append([]string{}, a.priority...)
	feeds := a.feeds
	maxAge := a.maxAge
	a.mu.RUnlock()

	var lastErr error
	for _, name := range priority {
		feed, ok := feeds[name]
		if !ok {
			continue
		}
		q, err := feed.GetUnsafe(id)
		if err != nil {
			lastErr = err
			continue
		}
		if maxAge > 0 && !q.PublishTime.IsZero() && now.Sub(q.PublishTime) > maxAge {
			continue
		}
		return q, nil
	}
	if lastErr != nil {
		return Quote{}, lastErr
	}
	return Quote{}, fmt.Errorf("oracle: no fresh reading for market %s", id.String())
}

// Update applies payload to the first registered feed; real deployments
// typically have exactly one writable primary feed with others as
// read-only fallbacks.
func (a *Aggregator) Update(payload UpdatePayload) (*big.Int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, name := range a.priority {
		if feed, ok := a.feeds[name]; ok {
			return feed.Update(payload)
		}
	}
	return big.NewInt(0), fmt.Errorf("oracle: no feed registered")
}
