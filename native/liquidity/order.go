package liquidity

import (
	"errors"
	"math/big"

	"perpengine/core/events"
	"perpengine/crypto"
	"perpengine/market"
	"perpengine/native/common"
)

// Errors surfaced by the LiquidityOrder lifecycle.
var (
	ErrOrderNotFound    = errors.New("liquidity: order not found")
	ErrNotOwner         = errors.New("liquidity: not order owner")
	ErrTaxExceedsAmount = errors.New("liquidity: !tax")
	ErrBelowMinAmount   = errors.New("liquidity: !min-amount")
	ErrZeroAmount       = errors.New("liquidity: !zero-amount")
	ErrLiquidityLocked  = errors.New("liquidity: !not-available-liquidity")
)

// Request bundles the caller-facing inputs to deposit_request /
// withdraw_request.
type Request struct {
	User              crypto.Address
	Asset             market.AssetID
	Amount            *big.Int
	MinAmountAfterTax *big.Int
	ExecutionFee      *big.Int
}

// DepositRequest implements deposit_request: escrows amount plus
// execution_fee (combined into a single native transfer when the collateral
// asset itself is native) and opens a pending LiquidityOrder.
func (p *Pool) DepositRequest(sender crypto.Address, req Request, now int64) (uint32, error) {
	return p.submitOrder(sender, KindDeposit, req, now)
}

// WithdrawRequest implements withdraw_request: escrows only execution_fee
// (the withdrawn amount is not in the caller's custody yet) and opens a
// pending LiquidityOrder.
func (p *Pool) WithdrawRequest(sender crypto.Address, req Request, now int64) (uint32, error) {
	return p.submitOrder(sender, KindWithdraw, req, now)
}

func (p *Pool) submitOrder(sender crypto.Address, kind OrderKind, req Request, now int64) (uint32, error) {
	if err := common.Guard(p.pauses, "liquidity"); err != nil {
		return 0, err
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	if _, ok := p.states[req.Asset]; !ok {
		return 0, ErrAssetNotSupported
	}

	user := sender
	if p.fundingAccounts[sender.Key()] {
		if req.User.IsZero() {
			return 0, ErrInvalidAmount
		}
		user = req.User
	}

	execFee := req.ExecutionFee
	if execFee == nil {
		execFee = big.NewInt(0)
	}

	if kind == KindDeposit {
		if req.Asset == market.AssetNative {
			combined := new(big.Int).Add(req.Amount, execFee)
			if err := p.ledger.TransferIn(market.AssetNative, sender, combined); err != nil {
				return 0, err
			}
		} else {
			if err := p.ledger.TransferIn(req.Asset, sender, req.Amount); err != nil {
				return 0, err
			}
			if execFee.Sign() > 0 {
				if err := p.ledger.TransferIn(market.AssetNative, sender, execFee); err != nil {
					return 0, err
				}
			}
		}
	} else {
		if execFee.Sign() > 0 {
			if err := p.ledger.TransferIn(market.AssetNative, sender, execFee); err != nil {
				return 0, err
			}
		}
	}

	minAfterTax := req.MinAmountAfterTax
	if minAfterTax == nil {
		minAfterTax = big.NewInt(0)
	}

	p.nextOrderID++
	id := p.nextOrderID
	p.orders[id] = &Order{
		ID:                id,
		User:              user,
		Asset:             req.Asset,
		Kind:              kind,
		Amount:            new(big.Int).Set(req.Amount),
		MinAmountAfterTax: minAfterTax,
		Timestamp:         now,
		ExecutionFee:      execFee,
	}

	return id, nil
}

// CancelLiquidityOrder implements cancel_liquidity_order: the owner may
// cancel a pending order at will, subject to the processing pause.
func (p *Pool) CancelLiquidityOrder(owner crypto.Address, id uint32) error {
	if err := common.Guard(p.pauses, "liquidity"); err != nil {
		return err
	}
	o, ok := p.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if !o.User.Equal(owner) {
		return ErrNotOwner
	}
	p.cancelOrder(o, owner)
	return nil
}

// cancelOrder refunds amount (deposit only) and the execution fee to
// feeReceiver, preserving the original combined native transfer when the
// order's asset is itself native.
func (p *Pool) cancelOrder(o *Order, feeReceiver crypto.Address) {
	delete(p.orders, o.ID)
	if p.ledger == nil {
		return
	}
	execFee := o.ExecutionFee
	if execFee == nil {
		execFee = big.NewInt(0)
	}
	if o.Kind == KindDeposit {
		if o.Asset == market.AssetNative {
			combined := new(big.Int).Add(o.Amount, execFee)
			if combined.Sign() > 0 {
				p.ledger.TransferOut(market.AssetNative, o.User, combined)
			}
		} else {
			if o.Amount.Sign() > 0 {
				p.ledger.TransferOut(o.Asset, o.User, o.Amount)
			}
			if execFee.Sign() > 0 {
				p.ledger.TransferOut(market.AssetNative, feeReceiver, execFee)
			}
		}
	} else if execFee.Sign() > 0 {
		p.ledger.TransferOut(market.AssetNative, feeReceiver, execFee)
	}
	p.emitter.Emit(events.OrderSkipped{OrderID: o.ID, Reason: "cancelled"})
}

// ExecuteOrders implements the keeper-driven execute_orders (liquidity)
// batch: writes global_upl for each supplied asset, streams each asset's
// buffer, then attempts to execute each order id in the given order; a
// failure cancels that order with the error as reason rather than aborting
// the batch.
func (p *Pool) ExecuteOrders(keeper crypto.Address, ids []uint32, assets []market.AssetID, upls []*big.Int, now int64) error {
	if err := common.Guard(p.pauses, "liquidity"); err != nil {
		return err
	}
	if err := p.setGlobalUPLs(assets, upls, now); err != nil {
		return err
	}
	for _, id := range ids {
		o, ok := p.orders[id]
		if !ok {
			continue
		}
		if err := p.execute(o, keeper, now); err != nil {
			p.cancelOrder(o, keeper)
			p.emitter.Emit(events.OrderSkipped{OrderID: id, Reason: err.Error()})
		}
	}
	return nil
}

// SetGlobalUPLs implements "set_global_upls": writes the externally
// supplied unrealized-P&L aggregate for each asset and streams its buffer,
// independent of executing any pending LiquidityOrder.
func (p *Pool) SetGlobalUPLs(assets []market.AssetID, upls []*big.Int, now int64) error {
	if err := common.Guard(p.pauses, "liquidity"); err != nil {
		return err
	}
	return p.setGlobalUPLs(assets, upls, now)
}

func (p *Pool) setGlobalUPLs(assets []market.AssetID, upls []*big.Int, now int64) error {
	if len(assets) != len(upls) {
		return ErrInvalidAmount
	}
	for i, asset := range assets {
		s := p.state(asset)
		s.GlobalUPL = new(big.Int).Set(upls[i])
		p.emitter.Emit(events.GlobalUPLSet{Asset: string(asset), Upl: upls[i]})
		p.StreamBufferToPool(asset, now)
	}
	return nil
}

// execute implements _execute: the deposit/withdraw tax-and-mint/burn
// arithmetic of §4.2, consuming and removing o from the pending set on
// success.
func (p *Pool) execute(o *Order, keeper crypto.Address, now int64) error {
	if p.maxLiquidityOrderTTL > 0 && now-o.Timestamp > p.maxLiquidityOrderTTL {
		return errors.New("liquidity: expired")
	}
	s := p.state(o.Asset)
	userKey := o.User.Key()

	if o.Kind == KindDeposit {
		taxBps := depositTaxBps(s, o.Amount)
		if taxBps >= fixedBPS {
			return ErrTaxExceedsAmount
		}
		amountAfterTax := new(big.Int).Mul(o.Amount, big.NewInt(int64(fixedBPS-taxBps)))
		amountAfterTax.Div(amountAfterTax, big.NewInt(fixedBPS))
		if amountAfterTax.Cmp(o.MinAmountAfterTax) < 0 {
			return ErrBelowMinAmount
		}

		var minted *big.Int
		if s.Balance.Sign() == 0 || s.LPSupply.Sign() == 0 {
			minted = new(big.Int).Set(amountAfterTax)
		} else {
			minted = new(big.Int).Mul(amountAfterTax, s.LPSupply)
			minted.Div(minted, s.Balance)
		}

		s.Balance.Add(s.Balance, o.Amount)
		s.LPSupply.Add(s.LPSupply, minted)
		existing, ok := s.UserLP[userKey]
		if !ok {
			existing = big.NewInt(0)
		}
		s.UserLP[userKey] = new(big.Int).Add(existing, minted)

		delete(p.orders, o.ID)
		if o.ExecutionFee != nil && o.ExecutionFee.Sign() > 0 && p.ledger != nil && !keeper.IsZero() {
			p.ledger.TransferOut(market.AssetNative, keeper, o.ExecutionFee)
		}
		p.emitter.Emit(events.PoolDeposit{
			User:           o.User.String(),
			Asset:          string(o.Asset),
			Amount:         o.Amount,
			AmountAfterTax: amountAfterTax,
			TaxBps:         taxBps,
			SharesMinted:   minted,
		})
		return nil
	}

	// Withdraw.
	userLP, ok := s.UserLP[userKey]
	if !ok {
		userLP = big.NewInt(0)
	}
	var userBalance *big.Int
	if s.LPSupply.Sign() == 0 {
		userBalance = big.NewInt(0)
	} else {
		userBalance = new(big.Int).Mul(userLP, s.Balance)
		userBalance.Div(userBalance, s.LPSupply)
	}
	amount := new(big.Int).Set(o.Amount)
	if amount.Cmp(userBalance) > 0 {
		amount = userBalance
	}
	if amount.Sign() <= 0 {
		return ErrZeroAmount
	}

	if p.oi != nil {
		available := new(big.Int).Sub(s.Balance, amount)
		utilMult := s.UtilizationMultiplierBps
		if utilMult < fixedBPS {
			utilMult = fixedBPS
		}
		lhs := new(big.Int).Mul(available, big.NewInt(int64(utilMult)))
		lhs.Div(lhs, big.NewInt(fixedBPS))
		oi := p.oi.AssetOpenInterest(o.Asset)
		if lhs.Cmp(oi) < 0 {
			return ErrLiquidityLocked
		}
	}

	taxBps := withdrawalTaxBps(s, amount)
	if taxBps >= fixedBPS {
		return ErrTaxExceedsAmount
	}
	amountAfterTax := new(big.Int).Mul(amount, big.NewInt(int64(fixedBPS-taxBps)))
	amountAfterTax.Div(amountAfterTax, big.NewInt(fixedBPS))
	if amountAfterTax.Cmp(o.MinAmountAfterTax) < 0 {
		return ErrBelowMinAmount
	}

	burnLP := new(big.Int).Mul(amount, s.LPSupply)
	burnLP.Div(burnLP, s.Balance)

	s.UserLP[userKey] = new(big.Int).Sub(userLP, burnLP)
	s.LPSupply.Sub(s.LPSupply, burnLP)
	s.Balance.Sub(s.Balance, amountAfterTax)

	delete(p.orders, o.ID)
	if p.ledger != nil {
		if err := p.ledger.TransferOut(o.Asset, o.User, amountAfterTax); err != nil {
			return err
		}
		if o.ExecutionFee != nil && o.ExecutionFee.Sign() > 0 && !keeper.IsZero() {
			p.ledger.TransferOut(market.AssetNative, keeper, o.ExecutionFee)
		}
	}
	p.emitter.Emit(events.PoolWithdrawal{
		User:           o.User.String(),
		Asset:          string(o.Asset),
		Amount:         amount,
		AmountAfterTax: amountAfterTax,
		TaxBps:         taxBps,
		SharesBurned:   burnLP,
	})
	return nil
}
