package position

import (
	"math/big"

	"perpengine/core/events"
	"perpengine/crypto"
	"perpengine/fixedpoint"
	"perpengine/market"
	"perpengine/native/common"
)

// Liquidate implements the position-mutating core of §4.5's
// liquidate_positions: given an execution price the ExecutionEngine has
// already validated (fresh, non-zero, within the reference bound, biased
// against the trader), checks whether the position's P&L has crossed the
// liquidation threshold and, if so, forcibly closes it, crediting the
// remaining margin (less fee) to the pool as a trader loss. Returns
// (liquidated, pnl, error); liquidated is false (no error) when the
// position is healthy.
func (m *Manager) Liquidate(user crypto.Address, asset market.AssetID, id market.ID, price *big.Int, now int64, keeper crypto.Address) (bool, *big.Int, error) {
	if err := common.Guard(m.pauses, "positions"); err != nil {
		return false, nil, err
	}
	key := m.posKeyOf(user, asset, id)
	pos, ok := m.positions[key]
	if !ok || pos.Size.Sign() == 0 {
		return false, nil, ErrNotFound
	}
	mkt, ok := m.registry.Market(id)
	if !ok {
		return false, nil, ErrInvalidInput
	}

	pnl, fundingFee := m.GetPnL(asset, id, pos.IsLong, price, pos.AvgPrice, pos.Size, pos.FundingSnapshot, now, mkt.FundingFactorBps)
	threshold := fixedpoint.MulDivBps(pos.Margin, mkt.LiqThresholdBps)
	negThreshold := new(big.Int).Neg(threshold)
	if pnl.Cmp(negThreshold) > 0 {
		return false, pnl, nil
	}

	fee := fixedpoint.MulDivBps(pos.Size, mkt.FeeBps+m.liquidationFeeBps)
	payout := new(big.Int).Sub(pos.Margin, fee)
	if payout.Sign() < 0 {
		payout = big.NewInt(0)
	}

	if m.pool != nil {
		m.pool.CreditTraderLoss(user, asset, id, payout, now)
	}
	if err := m.CreditFee(user, asset, id, fee, nil, true, keeper); err != nil {
		return false, pnl, err
	}
	if m.funding != nil {
		m.funding.Update(asset, id, now, mkt.FundingFactorBps)
	}

	size := new(big.Int).Set(pos.Size)
	margin := new(big.Int).Set(pos.Margin)
	m.decrementOI(asset, id, pos.IsLong, size)
	delete(m.positions, key)

	m.emitter.Emit(events.PositionLiquidated{
		User:       user.String(),
		Asset:      string(asset),
		Market:     id.String(),
		Size:       size,
		Margin:     margin,
		Price:      price,
		Pnl:        pnl,
		FundingFee: fundingFee,
		Fee:        fee,
		Keeper:     keeper.String(),
	})
	return true, pnl, nil
}
