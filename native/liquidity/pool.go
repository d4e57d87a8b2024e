package liquidity

import (
	"fmt"
	"math/big"

	"perpengine/core/events"
	"perpengine/crypto"
	"perpengine/market"
	"perpengine/native/common"
)

// CreditTraderLoss streams the buffer, then adds amount to it. Never fails,
// per §4.2.
func (p *Pool) CreditTraderLoss(user crypto.Address, asset market.AssetID, marketID market.ID, amount *big.Int, now int64) {
	p.StreamBufferToPool(asset, now)
	if amount == nil || amount.Sign() == 0 {
		return
	}
	s := p.state(asset)
	s.BufferBalance.Add(s.BufferBalance, amount)
	p.emitter.Emit(events.PoolPayIn{
		User: user.String(), Asset: string(asset), Market: marketID.String(), Amount: amount,
	})
}

// DebitTraderProfit pays amount out of the pool to user, preferring the
// buffer before dipping into principal, per §4.2. Returns
// ErrInsufficientPoolLiquidity if principal cannot cover the shortfall.
func (p *Pool) DebitTraderProfit(user crypto.Address, asset market.AssetID, marketID market.ID, amount *big.Int, now int64) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	s := p.state(asset)
	bufferBefore := new(big.Int).Set(s.BufferBalance)
	remainingBefore := new(big.Int).Set(s.CurrentEpochRemainingBuf)

	bufferAfter := new(big.Int).Sub(bufferBefore, amount)
	if bufferAfter.Sign() < 0 {
		bufferAfter.SetInt64(0)
	}
	if bufferBefore.Cmp(amount) < 0 {
		fromPrincipal := new(big.Int).Sub(amount, bufferBefore)
		if s.Balance.Cmp(fromPrincipal) < 0 {
			return fmt.Errorf("%w: asset=%s amount=%s", ErrInsufficientPoolLiquidity, asset, amount.String())
		}
		s.Balance.Sub(s.Balance, fromPrincipal)
	}
	s.BufferBalance.Set(bufferAfter)
	threshold := new(big.Int).Add(remainingBefore, amount)
	if bufferAfter.Cmp(threshold) < 0 {
		s.CurrentEpochRemainingBuf.Set(bufferAfter)
	}
	p.StreamBufferToPool(asset, now)
	if p.ledger != nil {
		if err := p.ledger.TransferOut(asset, user, amount); err != nil {
			return err
		}
	}
	p.emitter.Emit(events.PoolPayOut{
		User: user.String(), Asset: string(asset), Market: marketID.String(), Amount: amount,
	})
	return nil
}

// DirectPoolDeposit implements direct_pool_deposit: a no-strings gift to the
// pool's buffer, no LP shares minted.
func (p *Pool) DirectPoolDeposit(sender crypto.Address, asset market.AssetID, amount *big.Int, now int64) error {
	if err := common.Guard(p.pauses, "liquidity"); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if _, ok := p.states[asset]; !ok {
		// Asset support is modeled by the market.Registry upstream; the pool
		// itself just refuses to originate state for an unconfigured asset.
		return ErrAssetNotSupported
	}
	if err := p.ledger.TransferIn(asset, sender, amount); err != nil {
		return err
	}
	p.StreamBufferToPool(asset, now)
	s := p.state(asset)
	s.BufferBalance.Add(s.BufferBalance, amount)
	p.emitter.Emit(events.DirectPoolDeposit{Sender: sender.String(), Asset: string(asset), Amount: amount})
	return nil
}

// CreditFeeToPool implements position.PoolAccounting: routes a fee's
// pool-bound share into the asset's principal balance, diluting LP shares
// in depositors' favor the same as a direct deposit would.
func (p *Pool) CreditFeeToPool(asset market.AssetID, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	p.state(asset).Balance.Add(p.state(asset).Balance, amount)
}

// CreditFeeReserve implements position.PoolAccounting: routes a fee's
// treasury-bound share into the asset's fee reserve, held separately from
// principal until a governance withdrawal.
func (p *Pool) CreditFeeReserve(asset market.AssetID, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	p.state(asset).FeeReserve.Add(p.state(asset).FeeReserve, amount)
}

// EnsureAsset registers asset as supported by the pool so direct deposits
// and liquidity orders against it are accepted; called once per configured
// asset during engine wiring.
func (p *Pool) EnsureAsset(asset market.AssetID) {
	p.state(asset)
}
