package oracle

import (
	"math/big"
	"sync"
	"time"

	"perpengine/market"
)

// StaticFeed is a reference Feed/ReferenceFeed implementation backed by an
// in-process map, used by the engine's tests and the demo binary. Keepers
// push readings via Set/SetReference instead of a real wire payload.
type StaticFeed struct {
	mu        sync.RWMutex
	quotes    map[market.ID]Quote
	reference map[market.ID]*big.Int
}

// NewStaticFeed returns an empty static feed.
func NewStaticFeed() *StaticFeed {
	return &StaticFeed{
		quotes:    make(map[market.ID]Quote),
		reference: make(map[market.ID]*big.Int),
	}
}

// Set installs the current oracle reading for id.
func (f *StaticFeed) Set(id market.ID, price, conf *big.Int, expo int32, publishTime time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[id] = Quote{
		Price:       new(big.Int).Set(price),
		Conf:        new(big.Int).Set(conf),
		Expo:        expo,
		PublishTime: publishTime,
	}
}

// SetReference installs the reference (18-decimal) price for id.
func (f *StaticFeed) SetReference(id market.ID, price *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reference[id] = new(big.Int).Set(price)
}

// GetUnsafe implements Feed.
func (f *StaticFeed) GetUnsafe(id market.ID) (Quote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, ok := f.quotes[id]
	if !ok {
		return Quote{Price: big.NewInt(0), Conf: big.NewInt(0)}, nil
	}
	return Quote{
		Price:       new(big.Int).Set(q.Price),
		Conf:        new(big.Int).Set(q.Conf),
		Expo:        q.Expo,
		PublishTime: q.PublishTime,
	}, nil
}

// Update implements Feed. StaticFeed treats every payload as free since it
// has no real wire format to charge against.
func (f *StaticFeed) Update(payload UpdatePayload) (*big.Int, error) {
	return big.NewInt(0), nil
}

// Get implements ReferenceFeed, returning 0 ("no reference") when unset.
func (f *StaticFeed) Get(id market.ID) *big.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.reference[id]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(p)
}
