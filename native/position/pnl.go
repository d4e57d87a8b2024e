package position

import (
	"math/big"

	"perpengine/fixedpoint"
	"perpengine/market"
)

// GetPnL implements §4.6's get_pnl: directional price P&L plus the signed
// funding-fee component sampled between the position's funding snapshot and
// the tracker's current projection. Returns (pnl, fundingFee); fundingFee is
// already subtracted (long) / added (short) into pnl, and is returned
// separately since callers (decrease_position, liquidation) report it too.
func (m *Manager) GetPnL(asset market.AssetID, id market.ID, isLong bool, price, avgPrice, size, snapshot *big.Int, now int64, yearlyFactorBps uint64) (*big.Int, *big.Int) {
	if price == nil || price.Sign() == 0 || avgPrice == nil || avgPrice.Sign() == 0 || size == nil || size.Sign() == 0 {
		return big.NewInt(0), big.NewInt(0)
	}

	var pnl *big.Int
	if isLong {
		diff := new(big.Int).Sub(price, avgPrice)
		pnl = fixedpoint.MulDiv(size, diff, avgPrice)
	} else {
		diff := new(big.Int).Sub(avgPrice, price)
		pnl = fixedpoint.MulDiv(size, diff, avgPrice)
	}

	fundingFee := big.NewInt(0)
	if m.funding != nil {
		nextTracker := m.funding.Projected(asset, id, now, yearlyFactorBps)
		delta := new(big.Int).Sub(nextTracker, snapshot)
		denom := new(big.Int).Mul(fixedpoint.BPSInt, fixedpoint.Unit)
		fundingFee = fixedpoint.MulDiv(size, delta, denom)
	}

	if isLong {
		pnl.Sub(pnl, fundingFee)
	} else {
		pnl.Add(pnl, fundingFee)
	}
	return pnl, fundingFee
}
