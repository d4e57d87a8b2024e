package liquidity

import (
	"math/big"

	"perpengine/core/events"
	"perpengine/market"
)

// StreamBufferToPool implements the §4.2 buffer-streaming algorithm. It is
// invoked before any buffer-affecting mutation on the asset, per the
// engine's ordering guarantees.
func (p *Pool) StreamBufferToPool(asset market.AssetID, now int64) {
	s := p.state(asset)
	period := p.bufferPayoutPeriod
	if period <= 0 {
		return
	}
	epochStart := (now / period) * period
	remaining := s.CurrentEpochRemainingBuf
	buffer := s.BufferBalance
	lastPaid := s.LastPaidTs

	var amt *big.Int
	if lastPaid < epochStart-period {
		// More than one epoch elapsed: sweep the entire buffer.
		amt = new(big.Int).Set(buffer)
		remaining.SetInt64(0)
	} else {
		amt = big.NewInt(0)
		if lastPaid < epochStart {
			// Crossed into a new epoch: emit the prior epoch's remaining pot
			// first, then open a fresh pot sized at whatever is left.
			amt.Add(amt, remaining)
			remaining.Sub(buffer, remaining)
			if remaining.Sign() < 0 {
				remaining.SetInt64(0)
			}
			lastPaid = epochStart
		}
		if remaining.Sign() > 0 {
			elapsed := now - lastPaid
			denom := epochStart + period - lastPaid
			if denom > 0 {
				slice := new(big.Int).Mul(remaining, big.NewInt(elapsed))
				slice.Div(slice, big.NewInt(denom))
				if slice.Cmp(remaining) > 0 {
					slice.Set(remaining)
				}
				amt.Add(amt, slice)
				remaining.Sub(remaining, slice)
			}
		}
		if amt.Cmp(buffer) > 0 {
			amt.Set(buffer)
			remaining.SetInt64(0)
		}
	}

	s.LastPaidTs = now
	if amt.Sign() > 0 {
		s.BufferBalance.Sub(s.BufferBalance, amt)
		s.Balance.Add(s.Balance, amt)
		p.emitter.Emit(events.BufferToPool{Asset: string(asset), Amount: amt})
	}
}
