package engine

import (
	"math/big"

	"perpengine/crypto"
	"perpengine/market"
	"perpengine/native/liquidity"
	"perpengine/native/orderbook"
	"perpengine/oracle"
)

// SubmitOrder implements "submit_order".
func (e *Engine) SubmitOrder(sender crypto.Address, sub orderbook.Submission, now int64) (orderbook.Result, error) {
	return e.Book.Submit(sender, sub, now)
}

// CancelOrder implements "cancel_order(id)".
func (e *Engine) CancelOrder(owner crypto.Address, id uint32) error {
	return e.Book.Cancel(owner, id)
}

// CancelOrders implements "cancel_orders([id])", cancelling each id in turn
// and returning the first error encountered (prior cancellations in the
// batch are not rolled back, matching each individual Cancel's own atomic
// refund).
func (e *Engine) CancelOrders(owner crypto.Address, ids []uint32) error {
	for _, id := range ids {
		if err := e.Book.Cancel(owner, id); err != nil {
			return err
		}
	}
	return nil
}

// AddMargin implements "add_margin".
func (e *Engine) AddMargin(user crypto.Address, asset market.AssetID, id market.ID, amount *big.Int, now int64) error {
	return e.Positions.AddMargin(user, asset, id, amount, now)
}

// RemoveMargin implements "remove_margin".
func (e *Engine) RemoveMargin(user crypto.Address, asset market.AssetID, id market.ID, amount *big.Int, now int64) error {
	return e.Positions.RemoveMargin(user, asset, id, amount, now)
}

// DepositRequest implements "deposit_request".
func (e *Engine) DepositRequest(sender crypto.Address, req liquidity.Request, now int64) (uint32, error) {
	return e.Pool.DepositRequest(sender, req, now)
}

// WithdrawRequest implements "withdraw_request".
func (e *Engine) WithdrawRequest(sender crypto.Address, req liquidity.Request, now int64) (uint32, error) {
	return e.Pool.WithdrawRequest(sender, req, now)
}

// CancelLiquidityOrder implements "cancel_liquidity_order(id)".
func (e *Engine) CancelLiquidityOrder(owner crypto.Address, id uint32) error {
	return e.Pool.CancelLiquidityOrder(owner, id)
}

// DirectPoolDeposit implements "direct_pool_deposit".
func (e *Engine) DirectPoolDeposit(sender crypto.Address, asset market.AssetID, amount *big.Int, now int64) error {
	return e.Pool.DirectPoolDeposit(sender, asset, amount, now)
}

// ExecuteOrders implements the trading "execute_orders" keeper batch.
func (e *Engine) ExecuteOrders(keeper crypto.Address, ids []uint32, payload oracle.UpdatePayload, feePaid *big.Int, trailingRefs map[uint32]*big.Int, now int64) error {
	return e.Execution.ExecuteOrders(keeper, ids, payload, feePaid, trailingRefs, now)
}

// ExecuteLiquidityOrders implements the liquidity "execute_orders" keeper
// batch.
func (e *Engine) ExecuteLiquidityOrders(keeper crypto.Address, ids []uint32, assets []market.AssetID, upls []*big.Int, now int64) error {
	return e.Execution.ExecuteLiquidityOrders(keeper, ids, assets, upls, now)
}

// LiquidatePositions implements "liquidate_positions".
func (e *Engine) LiquidatePositions(keeper crypto.Address, users []crypto.Address, assets []market.AssetID, markets []market.ID, payload oracle.UpdatePayload, now int64) error {
	return e.Execution.LiquidatePositions(keeper, users, assets, markets, payload, now)
}

// SetGlobalUPLs implements "set_global_upls".
func (e *Engine) SetGlobalUPLs(keeper crypto.Address, assets []market.AssetID, upls []*big.Int, now int64) error {
	return e.Execution.SetGlobalUPLs(keeper, assets, upls, now)
}
