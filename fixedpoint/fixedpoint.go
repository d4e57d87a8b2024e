// Package fixedpoint holds the engine-wide fixed-point constants and helpers
// shared by every native component, so the basis-point divisor and the
// 10^18 precision unit are defined exactly once.
package fixedpoint

import "math/big"

// BPS is the basis-point divisor: ratios expressed in basis points are out
// of 10_000.
const BPS = 10_000

// BPSInt is BPS as a *big.Int, reused by every MulDiv-by-bps call site.
var BPSInt = big.NewInt(BPS)

// Unit is 10^18, the fixed-point denominator used for funding and fee
// intermediate arithmetic.
var Unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// SecondsPerYear anchors the funding tracker's annualized rate to a
// calendar year.
const SecondsPerYear = 365 * 24 * 60 * 60

// MulDivBps returns x * bps / BPS using exact big.Int arithmetic, truncated
// toward zero (Quo, not Euclidean Div) so signed call sites round the way
// Solidity's int256 division does.
func MulDivBps(x *big.Int, bps uint64) *big.Int {
	r := new(big.Int).Mul(x, new(big.Int).SetUint64(bps))
	return r.Quo(r, BPSInt)
}

// MulDiv returns x * num / den using exact big.Int arithmetic, truncated
// toward zero. den must be non-zero; callers are expected to have already
// guarded against that.
func MulDiv(x, num, den *big.Int) *big.Int {
	r := new(big.Int).Mul(x, num)
	return r.Quo(r, den)
}

// LeverageUnits returns size*Unit/margin, the UNIT-denominated leverage
// figure the spec's invariants and events are expressed in. margin must be
// positive; callers guard against a zero margin before calling.
func LeverageUnits(size, margin *big.Int) *big.Int {
	r := new(big.Int).Mul(size, Unit)
	return r.Div(r, margin)
}
