package position

import (
	"fmt"
	"math/big"

	"perpengine/core/events"
	"perpengine/crypto"
	"perpengine/native/common"
)

// IncreasePosition implements §4.3's increase_position(order_id, exec_price,
// keeper): open or add to a position at the keeper-supplied execution
// price, averaging the entry price, before removing the order and
// distributing its fee.
func (m *Manager) IncreasePosition(orderID uint32, execPrice *big.Int, keeper crypto.Address, now int64) error {
	if err := common.Guard(m.pauses, "positions"); err != nil {
		return err
	}
	order, ok := m.orders.Order(orderID)
	if !ok {
		return ErrNotFound
	}

	mkt, ok := m.registry.Market(order.Market)
	if !ok {
		return fmt.Errorf("%w: market not configured", ErrInvalidInput)
	}

	if m.risk != nil {
		if err := m.risk.CheckMaxOI(order.Asset, order.Market, order.Size); err != nil {
			return err
		}
	}
	if m.funding != nil {
		m.funding.Update(order.Asset, order.Market, now, mkt.FundingFactorBps)
	}

	m.incrementOI(order.Asset, order.Market, order.IsLong, order.Size)

	key := m.posKeyOf(order.User, order.Asset, order.Market)
	pos, exists := m.positions[key]
	if !exists {
		snapshot := big.NewInt(0)
		if m.funding != nil {
			snapshot = m.funding.Current(order.Asset, order.Market)
		}
		pos = &Position{
			User:            order.User,
			Asset:           order.Asset,
			Market:          order.Market,
			IsLong:          order.IsLong,
			Size:            big.NewInt(0),
			Margin:          big.NewInt(0),
			AvgPrice:        big.NewInt(0),
			Timestamp:       now,
			FundingSnapshot: snapshot,
		}
		m.positions[key] = pos
	}

	newSize := new(big.Int).Add(pos.Size, order.Size)
	if newSize.Sign() > 0 {
		weighted := new(big.Int).Mul(pos.Size, pos.AvgPrice)
		weighted.Add(weighted, new(big.Int).Mul(order.Size, execPrice))
		pos.AvgPrice = new(big.Int).Quo(weighted, newSize)
	}
	pos.Size = newSize
	pos.Margin = new(big.Int).Add(pos.Margin, order.Margin)

	m.orders.Remove(orderID)

	if err := m.CreditFee(order.User, order.Asset, order.Market, order.Fee, order.Detail.ExecutionFee, false, keeper); err != nil {
		return err
	}

	m.lastIncreased[lastIncreasedKey(order.User, order.Market)] = now

	m.emitter.Emit(events.PositionIncreased{
		User:      order.User.String(),
		Asset:     string(order.Asset),
		Market:    order.Market.String(),
		IsLong:    pos.IsLong,
		Size:      pos.Size,
		Margin:    pos.Margin,
		AvgPrice:  pos.AvgPrice,
		ExecPrice: execPrice,
	})
	return nil
}
