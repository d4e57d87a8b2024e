package engine

import (
	"math/big"

	"perpengine/crypto"
	"perpengine/market"
)

// SetMarket implements "set_market".
func (e *Engine) SetMarket(m market.Market) error { return e.Registry.SetMarket(m) }

// SetAsset implements "set_asset".
func (e *Engine) SetAsset(a market.Asset) error {
	if err := e.Registry.SetAsset(a); err != nil {
		return err
	}
	e.Pool.EnsureAsset(a.ID)
	return nil
}

// SetFeeShare implements "set_fee_share": the net-of-keeper fee's pool vs.
// treasury split.
func (e *Engine) SetFeeShare(bps uint64) { e.Positions.SetPoolFeeShare(bps) }

// SetBufferPayoutPeriod implements "set_buffer_payout_period".
func (e *Engine) SetBufferPayoutPeriod(seconds int64) { e.Pool.SetBufferPayoutPeriod(seconds) }

// SetUtilizationMultiplier implements "set_utilization_multiplier".
func (e *Engine) SetUtilizationMultiplier(asset market.AssetID, bps uint64) {
	e.Pool.SetUtilizationMultiplier(asset, bps)
}

// SetMaxLiquidityOrderTTL implements "set_max_liquidity_order_ttl".
func (e *Engine) SetMaxLiquidityOrderTTL(seconds int64) { e.Pool.SetMaxLiquidityOrderTTL(seconds) }

// SetOrderExecutionFee implements "set_order_execution_fee".
func (e *Engine) SetOrderExecutionFee(fee *big.Int) { e.Execution.SetOrderExecutionFee(fee) }

// SetMaxMarketOrderTTL implements "set_max_market_order_ttl".
func (e *Engine) SetMaxMarketOrderTTL(seconds int64) { e.Book.SetMaxMarketOrderTTL(seconds) }

// SetMaxTriggerOrderTTL implements "set_max_trigger_order_ttl".
func (e *Engine) SetMaxTriggerOrderTTL(seconds int64) { e.Book.SetMaxTriggerOrderTTL(seconds) }

// SetMinPositionHoldTime implements "set_min_position_hold_time".
func (e *Engine) SetMinPositionHoldTime(seconds int64) { e.Positions.SetMinPositionHoldTime(seconds) }

// SetRemoveMarginBuffer implements "set_remove_margin_buffer".
func (e *Engine) SetRemoveMarginBuffer(bps uint64) { e.Positions.SetRemoveMarginBuffer(bps) }

// SetKeeperFeeShare implements "set_keeper_fee_share".
func (e *Engine) SetKeeperFeeShare(bps uint64) { e.Positions.SetKeeperFeeShare(bps) }

// SetTrailingStopFee implements "set_trailing_stop_fee".
func (e *Engine) SetTrailingStopFee(bps uint64) { e.Positions.SetTrailingStopFee(bps) }

// SetLiquidationFee implements "set_liquidation_fee".
func (e *Engine) SetLiquidationFee(bps uint64) { e.Positions.SetLiquidationFee(bps) }

// SetPoolHourlyDecay implements "set_pool_hourly_decay".
func (e *Engine) SetPoolHourlyDecay(asset market.AssetID, bps uint64) error {
	return e.Risk.SetPoolHourlyDecay(asset, bps)
}

// SetPoolProfitLimit implements "set_pool_profit_limit".
func (e *Engine) SetPoolProfitLimit(asset market.AssetID, bps uint64) error {
	return e.Risk.SetPoolProfitLimit(asset, bps)
}

// SetMaxOI implements "set_max_oi".
func (e *Engine) SetMaxOI(asset market.AssetID, id market.ID, cap *big.Int) {
	e.Risk.SetMaxOI(asset, id, cap)
}

// SetWhitelistedKeeper implements the keeper-whitelist governance surface.
func (e *Engine) SetWhitelistedKeeper(addr crypto.Address, whitelisted bool) {
	e.Execution.SetWhitelistedKeeper(addr, whitelisted)
}

// SetApprovedAccount implements the approved-account whitelist governance
// surface.
func (e *Engine) SetApprovedAccount(addr crypto.Address, approved bool) {
	e.Book.SetApprovedAccount(addr, approved)
}

// SetFundingAccount implements the funding-account whitelist governance
// surface, applying to both order submission and liquidity requests on a
// trader's behalf.
func (e *Engine) SetFundingAccount(addr crypto.Address, whitelisted bool) {
	e.Book.SetFundingAccount(addr, whitelisted)
	e.Pool.SetFundingAccount(addr, whitelisted)
}

// SetPaused implements the "pause toggles" governance surface. Module names:
// "orders", "positions", "liquidity", "processing".
func (e *Engine) SetPaused(module string, paused bool) { e.Pauses.SetPaused(module, paused) }
