package position

import (
	"fmt"
	"math/big"

	"perpengine/core/events"
	"perpengine/crypto"
	"perpengine/fixedpoint"
	"perpengine/market"
	"perpengine/native/common"
	"perpengine/native/orderbook"
)

// DecreasePosition implements §4.3's decrease_position(order_id, exec_price,
// is_trailing_stop, keeper): reduces or fully closes a position, settling
// P&L and funding against the pool, and — for a direction-flipping order
// that exceeds the existing position — carves out and immediately opens the
// opposite-side remainder exactly once.
func (m *Manager) DecreasePosition(orderID uint32, execPrice *big.Int, isTrailingStop bool, keeper crypto.Address, now int64) error {
	if err := common.Guard(m.pauses, "positions"); err != nil {
		return err
	}
	order, ok := m.orders.Order(orderID)
	if !ok {
		return ErrNotFound
	}

	lastIncKey := lastIncreasedKey(order.User, order.Market)
	if now-m.lastIncreased[lastIncKey] <= m.minPositionHoldTime {
		return ErrMinHoldTime
	}

	key := m.posKeyOf(order.User, order.Asset, order.Market)
	pos, ok := m.positions[key]
	if !ok || pos.Size.Sign() == 0 {
		return ErrNotFound
	}

	mkt, ok := m.registry.Market(order.Market)
	if !ok {
		return fmt.Errorf("%w: market not configured", ErrInvalidInput)
	}
	asset, ok := m.registry.Asset(order.Asset)
	if !ok {
		return fmt.Errorf("%w: asset not configured", ErrInvalidInput)
	}

	executed := new(big.Int).Set(pos.Size)
	if order.Size.Cmp(executed) < 0 {
		executed = new(big.Int).Set(order.Size)
	}
	remainingOrderSize := new(big.Int).Sub(order.Size, executed)

	amountToReturn := big.NewInt(0)
	var remainingOrderMargin *big.Int
	if !order.Detail.ReduceOnly && order.Size.Sign() > 0 {
		remainingOrderMargin = fixedpoint.MulDiv(order.Margin, remainingOrderSize, order.Size)
		amountToReturn.Add(amountToReturn, fixedpoint.MulDiv(order.Margin, executed, order.Size))
	} else {
		remainingOrderMargin = big.NewInt(0)
	}

	remainingPosSize := new(big.Int).Sub(pos.Size, executed)
	if remainingPosSize.Sign() > 0 && remainingPosSize.Cmp(asset.MinSizeInt()) < 0 {
		return ErrMinRemainingSize
	}

	feeBase := new(big.Int).Set(order.Fee)
	if isTrailingStop {
		feeBase.Add(feeBase, fixedpoint.MulDivBps(executed, m.trailingStopFeeBps))
	}
	fee := big.NewInt(0)
	if order.Size.Sign() > 0 {
		fee = fixedpoint.MulDiv(feeBase, executed, order.Size)
	}

	if m.funding != nil {
		m.funding.Update(order.Asset, order.Market, now, mkt.FundingFactorBps)
	}

	pnl, fundingFee := m.GetPnL(order.Asset, order.Market, pos.IsLong, execPrice, pos.AvgPrice, executed, pos.FundingSnapshot, now, mkt.FundingFactorBps)

	executedMargin := big.NewInt(0)
	if pos.Size.Sign() > 0 {
		executedMargin = fixedpoint.MulDiv(pos.Margin, executed, pos.Size)
	}

	negExecutedMargin := new(big.Int).Neg(executedMargin)
	fullClose := pnl.Cmp(negExecutedMargin) <= 0
	if fullClose {
		pnl = new(big.Int).Set(negExecutedMargin)
		executedMargin = new(big.Int).Set(pos.Margin)
		executed = new(big.Int).Set(pos.Size)
		pos.Size = big.NewInt(0)
		pos.Margin = big.NewInt(0)
	} else {
		pos.Size = new(big.Int).Sub(pos.Size, executed)
		pos.Margin = new(big.Int).Sub(pos.Margin, executedMargin)
		if m.funding != nil {
			pos.FundingSnapshot = m.funding.Current(order.Asset, order.Market)
		}
	}

	m.decrementOI(order.Asset, order.Market, pos.IsLong, executed)

	if m.risk != nil {
		if err := m.risk.CheckPoolDrawdown(order.Asset, pnl, now); err != nil {
			return err
		}
	}

	if pnl.Sign() < 0 {
		loss := new(big.Int).Neg(pnl)
		if m.pool != nil {
			m.pool.CreditTraderLoss(order.User, order.Asset, order.Market, loss, now)
		}
		totalLoss := new(big.Int).Add(loss, fee)
		if totalLoss.Cmp(executedMargin) < 0 {
			amountToReturn.Add(amountToReturn, new(big.Int).Sub(executedMargin, totalLoss))
		}
	} else {
		if m.pool != nil {
			if err := m.pool.DebitTraderProfit(order.User, order.Asset, order.Market, pnl, now); err != nil {
				return err
			}
		}
		amountToReturn.Add(amountToReturn, new(big.Int).Sub(executedMargin, fee))
	}

	if err := m.CreditFee(order.User, order.Asset, order.Market, fee, order.Detail.ExecutionFee, false, keeper); err != nil {
		return err
	}

	if pos.Size.Sign() == 0 {
		delete(m.positions, key)
	}

	m.orders.Remove(orderID)
	if amountToReturn.Sign() > 0 && m.ledger != nil {
		if err := m.ledger.TransferOut(order.Asset, order.User, amountToReturn); err != nil {
			return err
		}
	}

	m.emitter.Emit(events.PositionDecreased{
		User:           order.User.String(),
		Asset:          string(order.Asset),
		Market:         order.Market.String(),
		Executed:       executed,
		RemainingSize:  pos.Size,
		Pnl:            pnl,
		FundingFee:     fundingFee,
		AmountReturned: amountToReturn,
	})

	if remainingOrderSize.Sign() > 0 && !order.Detail.ReduceOnly {
		flip := orderbook.Order{
			User:   order.User,
			Asset:  order.Asset,
			Market: order.Market,
			IsLong: !pos.IsLong,
			Margin: remainingOrderMargin,
			Size:   remainingOrderSize,
			Fee:    fixedpoint.MulDivBps(remainingOrderSize, mkt.FeeBps),
			Detail: orderbook.Detail{
				Kind:         market.KindMarket,
				ReduceOnly:   false,
				ExecutionFee: order.Detail.ExecutionFee,
			},
		}
		newID := m.orders.Insert(flip, now)
		if err := m.IncreasePosition(newID, execPrice, keeper, now); err != nil {
			return err
		}
	}

	return nil
}
