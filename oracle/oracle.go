// Package oracle provides the PriceFeed (C2) and ReferencePriceFeed (C3)
// collaborator capabilities, plus the confidence-adjusted normalization and
// reference-price bounding the execution engine layers on top of them.
package oracle

import (
	"math/big"
	"time"

	"perpengine/market"
)

// UpdatePayload is an opaque, feed-specific blob (e.g. a signed Pyth VAA)
// applied to a Feed via Update.
type UpdatePayload []byte

// Quote is the raw reading returned by a PriceFeed: a price with its
// exponent (price * 10^expo is the real-world value), a confidence interval
// in the same units as price, and the time it was published.
type Quote struct {
	Price       *big.Int
	Conf        *big.Int
	Expo        int32
	PublishTime time.Time
}

// Feed is the PriceFeed capability (C2): returns the current oracle reading
// for a market and applies keeper-submitted update payloads.
type Feed interface {
	GetUnsafe(id market.ID) (Quote, error)
	Update(payload UpdatePayload) (feeConsumed *big.Int, err error)
}

// ReferenceFeed is the ReferencePriceFeed capability (C3): returns a second,
// independent 18-decimal price used to bound Feed, or 0 to mean "no
// reference available".
type ReferenceFeed interface {
	Get(id market.ID) *big.Int
}
