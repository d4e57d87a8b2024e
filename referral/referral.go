// Package referral provides the ReferralDirectory capability: recording the
// referral code a trader submitted with their first order and the referrer
// it resolves to.
package referral

import (
	"sync"

	"perpengine/crypto"
)

// Directory is the ReferralDirectory capability consumed by the order book.
type Directory interface {
	Info(user crypto.Address) (code uint64, referrer crypto.Address)
	Set(user crypto.Address, code uint64, referrer crypto.Address)
}

// InMemory is a minimal map-backed Directory, grounded on the small
// single-purpose capability structs the example pack uses for peripheral
// compliance/lookup concerns.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	code     uint64
	referrer crypto.Address
}

// NewInMemory returns an empty directory.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]entry)}
}

// Info returns the stored referral code and referrer for user, or the zero
// value if none was ever recorded.
func (d *InMemory) Info(user crypto.Address) (uint64, crypto.Address) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[user.Key()]
	if !ok {
		return 0, crypto.Address{}
	}
	return e.code, e.referrer
}

// Set records the referral code once for user; subsequent calls overwrite
// it, which OrderBook.Submit avoids by only calling Set when no referral is
// recorded yet.
func (d *InMemory) Set(user crypto.Address, code uint64, referrer crypto.Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[user.Key()] = entry{code: code, referrer: referrer}
}
