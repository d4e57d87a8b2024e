package position

import (
	"math/big"

	"perpengine/core/events"
	"perpengine/crypto"
	"perpengine/fixedpoint"
	"perpengine/market"
	"perpengine/native/common"
)

// AddMargin implements §4.3's add_margin: pulls additional margin into
// custody for an existing position, rejecting if the resulting leverage
// would fall below 1x.
func (m *Manager) AddMargin(user crypto.Address, asset market.AssetID, id market.ID, amount *big.Int, now int64) error {
	if err := common.Guard(m.pauses, "positions"); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidInput
	}
	key := m.posKeyOf(user, asset, id)
	pos, ok := m.positions[key]
	if !ok || pos.Size.Sign() == 0 {
		return ErrNotFound
	}

	newMargin := new(big.Int).Add(pos.Margin, amount)
	if newMargin.Cmp(pos.Size) > 0 {
		return ErrLeverage
	}

	if m.ledger != nil {
		if err := m.ledger.TransferIn(asset, user, amount); err != nil {
			return err
		}
	}
	pos.Margin = newMargin

	m.emitter.Emit(events.MarginIncreased{User: user.String(), Asset: string(asset), Market: id.String(), Amount: amount})
	return nil
}

// RemoveMargin implements §4.3's remove_margin: rejects if the resulting
// leverage would exceed the market max, or if an unrealized loss against
// the reference price exceeds the buffered remaining margin.
func (m *Manager) RemoveMargin(user crypto.Address, asset market.AssetID, id market.ID, amount *big.Int, now int64) error {
	if err := common.Guard(m.pauses, "positions"); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidInput
	}
	key := m.posKeyOf(user, asset, id)
	pos, ok := m.positions[key]
	if !ok || pos.Size.Sign() == 0 {
		return ErrNotFound
	}
	if pos.Margin.Cmp(amount) <= 0 {
		return ErrInsufficientMargin
	}

	remainingMargin := new(big.Int).Sub(pos.Margin, amount)
	mkt, ok := m.registry.Market(id)
	if !ok {
		return ErrInvalidInput
	}
	maxLev := new(big.Int).SetUint64(mkt.MaxLeverage)
	if pos.Size.Cmp(new(big.Int).Mul(remainingMargin, maxLev)) > 0 {
		return ErrLeverage
	}

	if m.refFeed == nil {
		return ErrReferencePrice
	}
	refPrice := m.refFeed.Get(id)
	if refPrice == nil || refPrice.Sign() == 0 {
		return ErrReferencePrice
	}

	upl, _ := m.GetPnL(asset, id, pos.IsLong, refPrice, pos.AvgPrice, pos.Size, pos.FundingSnapshot, now, mkt.FundingFactorBps)
	if upl.Sign() < 0 {
		loss := new(big.Int).Neg(upl)
		bound := fixedpoint.MulDivBps(remainingMargin, fixedpoint.BPS-m.removeMarginBufferBps)
		if loss.Cmp(bound) >= 0 {
			return ErrUPLExceedsBuffer
		}
	}

	pos.Margin = remainingMargin
	if m.ledger != nil {
		if err := m.ledger.TransferOut(asset, user, amount); err != nil {
			return err
		}
	}

	m.emitter.Emit(events.MarginDecreased{User: user.String(), Asset: string(asset), Market: id.String(), Amount: amount})
	return nil
}
