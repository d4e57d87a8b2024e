package liquidity

import "math/big"

// depositTaxBps implements:
//
//	deposit_tax_bps = max(0, BPS*(buffer-global_upl)/(balance+amount))  when global_upl < buffer
//	                = 0                                                 otherwise
func depositTaxBps(s *PoolState, amount *big.Int) uint64 {
	if s.GlobalUPL.Cmp(s.BufferBalance) >= 0 {
		return 0
	}
	diff := new(big.Int).Sub(s.BufferBalance, s.GlobalUPL)
	denom := new(big.Int).Add(s.Balance, amount)
	if denom.Sign() <= 0 {
		return fixedBPS
	}
	bps := new(big.Int).Mul(diff, big.NewInt(fixedBPS))
	bps.Div(bps, denom)
	if bps.Sign() < 0 {
		return 0
	}
	if !bps.IsUint64() || bps.Uint64() > fixedBPS {
		return fixedBPS
	}
	return bps.Uint64()
}

// withdrawalTaxBps implements the two explicit Open-Question branches
// faithfully: `amount < balance` takes the `balance-amount` denominator;
// `amount >= balance` blocks the withdrawal outright at BPS (tax = 100%).
//
//	withdrawal_tax_bps = max(0, BPS*(global_upl-buffer)/(balance-amount))  when global_upl > buffer
//	                   = 0                                                  otherwise
//	if amount >= balance: tax = BPS
func withdrawalTaxBps(s *PoolState, amount *big.Int) uint64 {
	if amount.Cmp(s.Balance) >= 0 {
		return fixedBPS
	}
	if s.GlobalUPL.Cmp(s.BufferBalance) <= 0 {
		return 0
	}
	diff := new(big.Int).Sub(s.GlobalUPL, s.BufferBalance)
	denom := new(big.Int).Sub(s.Balance, amount)
	bps := new(big.Int).Mul(diff, big.NewInt(fixedBPS))
	bps.Div(bps, denom)
	if bps.Sign() < 0 {
		return 0
	}
	if !bps.IsUint64() || bps.Uint64() > fixedBPS {
		return fixedBPS
	}
	return bps.Uint64()
}
