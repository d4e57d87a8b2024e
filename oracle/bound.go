package oracle

import (
	"math/big"
)

// BPS is the basis-point divisor used throughout the engine.
const BPS = 10_000

// NormalizePrice converts a raw (price, expo) pair to its 18-decimal form,
// per get_oracle_price's normalization step. A negative price or a positive
// exponent is rejected (treated as "no price") exactly as the spec requires,
// since neither should occur for a sane feed and either indicates a feed bug
// worth surfacing as price=0 rather than propagating garbage.
func NormalizePrice(price *big.Int, expo int32) *big.Int {
	if price == nil || price.Sign() < 0 || expo > 0 {
		return big.NewInt(0)
	}
	conv := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18+expo)), nil)
	return new(big.Int).Mul(price, conv)
}

// AdjustForConfidence applies the spec's confidence-based price adjustment:
// when the normalized confidence interval exceeds priceConfThresholdBps of
// price, the price is nudged by confidence*priceConfMultiplierBps/BPS, added
// when maximise is true (biasing the execution price against the trader on
// the buy/long side) and subtracted otherwise.
func AdjustForConfidence(price, confNormalized *big.Int, confThresholdBps, confMultiplierBps uint64, maximise bool) *big.Int {
	if price == nil || price.Sign() == 0 || confMultiplierBps == 0 {
		return price
	}
	if confNormalized == nil || confNormalized.Sign() == 0 {
		return price
	}
	confBps := new(big.Int).Mul(confNormalized, big.NewInt(BPS))
	confBps.Div(confBps, price)
	if confBps.Cmp(new(big.Int).SetUint64(confThresholdBps)) <= 0 {
		return price
	}
	delta := new(big.Int).Mul(confNormalized, new(big.Int).SetUint64(confMultiplierBps))
	delta.Div(delta, big.NewInt(BPS))
	if maximise {
		return new(big.Int).Add(price, delta)
	}
	adjusted := new(big.Int).Sub(price, delta)
	if adjusted.Sign() < 0 {
		return big.NewInt(0)
	}
	return adjusted
}

// WithinReferenceBound implements the §4.5 reference-price deviation check:
// require reference == 0 (no reference configured) or maxDeviationBps == 0
// (bound disabled), or reference*(BPS-m)/BPS <= price <= reference*(BPS+m)/BPS.
func WithinReferenceBound(price, reference *big.Int, maxDeviationBps uint64) bool {
	if reference == nil || reference.Sign() == 0 || maxDeviationBps == 0 {
		return true
	}
	m := new(big.Int).SetUint64(maxDeviationBps)
	bpsInt := big.NewInt(BPS)
	lower := new(big.Int).Sub(bpsInt, m)
	lower.Mul(reference, lower)
	lower.Div(lower, bpsInt)
	upper := new(big.Int).Add(bpsInt, m)
	upper.Mul(reference, upper)
	upper.Div(upper, bpsInt)
	return price.Cmp(lower) >= 0 && price.Cmp(upper) <= 0
}
