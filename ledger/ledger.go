// Package ledger provides the Ledger capability (C1): holding and
// transferring collateral assets in and out of engine custody.
package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"

	"perpengine/crypto"
	"perpengine/market"
)

// ErrInsufficientBalance is returned by TransferIn when the source account
// does not hold enough of the requested asset.
var ErrInsufficientBalance = errors.New("ledger: insufficient balance")

// Ledger is the collaborator capability the engine consumes for moving
// collateral in and out of custody. The native asset is identified by
// market.AssetNative.
type Ledger interface {
	TransferIn(asset market.AssetID, from crypto.Address, amount *big.Int) error
	TransferOut(asset market.AssetID, to crypto.Address, amount *big.Int) error
	Balance(asset market.AssetID, who crypto.Address) *big.Int
}

// InMemory is a reference Ledger implementation backed by an in-process
// balance table, exercised by the engine's tests and demo binary. It is not
// the spec's collaborator contract itself (a host embeds this engine on top
// of real asset custody) but a faithful stand-in grounded on the balance
// mutation style of the engine's own account bookkeeping.
type InMemory struct {
	mu       sync.Mutex
	balances map[market.AssetID]map[string]*big.Int
}

// NewInMemory returns an empty in-memory ledger.
func NewInMemory() *InMemory {
	return &InMemory{balances: make(map[market.AssetID]map[string]*big.Int)}
}

// Credit sets up an initial balance for tests and the demo binary; it is not
// part of the Ledger capability contract.
func (l *InMemory) Credit(asset market.AssetID, who crypto.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(asset, who, amount)
}

func (l *InMemory) add(asset market.AssetID, who crypto.Address, amount *big.Int) {
	acct, ok := l.balances[asset]
	if !ok {
		acct = make(map[string]*big.Int)
		l.balances[asset] = acct
	}
	cur, ok := acct[who.Key()]
	if !ok {
		cur = big.NewInt(0)
	}
	acct[who.Key()] = new(big.Int).Add(cur, amount)
}

// TransferIn pulls amount of asset from "from" into engine custody.
func (l *InMemory) TransferIn(asset market.AssetID, from crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acct := l.balances[asset]
	cur, ok := acct[from.Key()]
	if !ok || cur.Cmp(amount) < 0 {
		return fmt.Errorf("%w: asset=%s from=%s", ErrInsufficientBalance, asset, from.String())
	}
	if _, err := toUint256(amount); err != nil {
		return err
	}
	acct[from.Key()] = new(big.Int).Sub(cur, amount)
	return nil
}

// TransferOut pays amount of asset out of engine custody to "to".
func (l *InMemory) TransferOut(asset market.AssetID, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if _, err := toUint256(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(asset, to, amount)
	return nil
}

// Balance returns who's current balance of asset, defaulting to zero.
func (l *InMemory) Balance(asset market.AssetID, who crypto.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.balances[asset]
	if !ok {
		return big.NewInt(0)
	}
	cur, ok := acct[who.Key()]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(cur)
}

// toUint256 enforces the spec's "unsigned 256-bit" framing at the ledger
// boundary before a value is allowed to move in or out of custody.
func toUint256(amount *big.Int) (*uint256.Int, error) {
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("ledger: negative amount %s", amount.String())
	}
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, fmt.Errorf("ledger: amount %s overflows 256 bits", amount.String())
	}
	return v, nil
}
