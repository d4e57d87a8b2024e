// Package orderbook implements the OrderBook (C7): order storage and
// lifecycle, TP/SL/OCO wiring, expiry and reduce-only rules.
package orderbook

import (
	"errors"
	"math/big"

	"perpengine/crypto"
	"perpengine/market"
)

// Errors surfaced to callers of the mutating entry points.
var (
	ErrUnauthorized      = errors.New("orderbook: unauthorized")
	ErrNotFound          = errors.New("orderbook: order not found")
	ErrInvalidInput      = errors.New("orderbook: invalid input")
	ErrAssetNotSupported = errors.New("orderbook: asset not supported")
	ErrMarketNotFound    = errors.New("orderbook: market not found")
)

// Detail carries the trigger discipline and auxiliary fields distinguishing
// market/limit/stop/trailing-stop orders, mirroring the spec's OrderDetail
// sub-record.
type Detail struct {
	Kind              market.OrderKind
	ReduceOnly        bool
	TriggerPrice      *big.Int
	Expiry            int64
	CancelOnExecuteID uint32
	ExecutionFee      *big.Int
	TrailingStopBps   uint64
}

// Order is the spec's Order record.
type Order struct {
	ID        uint32
	User      crypto.Address
	Asset     market.AssetID
	Market    market.ID
	IsLong    bool
	Margin    *big.Int
	Size      *big.Int
	Fee       *big.Int
	Timestamp int64
	Detail    Detail
}

// Clone returns a deep copy suitable for returning to a read-only caller.
func (o Order) Clone() Order {
	clone := o
	clone.Margin = new(big.Int).Set(o.Margin)
	clone.Size = new(big.Int).Set(o.Size)
	clone.Fee = new(big.Int).Set(o.Fee)
	clone.Detail = o.Detail
	if o.Detail.TriggerPrice != nil {
		clone.Detail.TriggerPrice = new(big.Int).Set(o.Detail.TriggerPrice)
	}
	if o.Detail.ExecutionFee != nil {
		clone.Detail.ExecutionFee = new(big.Int).Set(o.Detail.ExecutionFee)
	}
	return clone
}
