package engine

import "perpengine/market"

// Config is the toml-loadable bootstrap configuration for a complete engine
// instance: market/asset definitions plus every governance-tunable
// parameter's initial value. A host typically loads this once at startup and
// applies it via New; subsequent changes go through the Set* governance
// methods on Engine, not through reloading this struct.
type Config struct {
	Markets []market.MarketConfig `toml:"markets"`
	Assets  []market.AssetConfig  `toml:"assets"`

	FundingIntervalSeconds      int64 `toml:"funding_interval_s"`
	BufferPayoutPeriodSeconds   int64 `toml:"buffer_payout_period_s"`
	MaxLiquidityOrderTTLSeconds int64 `toml:"max_liquidity_order_ttl_s"`
	MaxMarketOrderTTLSeconds    int64 `toml:"max_market_order_ttl_s"`
	MaxTriggerOrderTTLSeconds   int64 `toml:"max_trigger_order_ttl_s"`

	MinPositionHoldTimeSeconds int64  `toml:"min_position_hold_time_s"`
	RemoveMarginBufferBps      uint64 `toml:"remove_margin_buffer_bps"`
	KeeperFeeShareBps          uint64 `toml:"keeper_fee_share_bps"`
	PoolFeeShareBps            uint64 `toml:"pool_fee_share_bps"`
	TrailingStopFeeBps         uint64 `toml:"trailing_stop_fee_bps"`
	LiquidationFeeBps          uint64 `toml:"liquidation_fee_bps"`

	// OrderExecutionFee is a base-10 integer string (avoids toml's lack of a
	// native big-integer type) denominated in the native asset's smallest
	// unit.
	OrderExecutionFee string `toml:"order_execution_fee"`
	ApprovalMessage   string `toml:"approval_message"`

	WhitelistedKeepers []string `toml:"whitelisted_keepers"`
	ApprovedAccounts   []string `toml:"approved_accounts"`
	FundingAccounts    []string `toml:"funding_accounts"`
}

// marketConfig adapts Config's flattened market/asset fields back into
// market.Config's shape for Registry.Apply.
func (c Config) marketConfig() market.Config {
	mc := market.Config{Markets: c.Markets, Assets: c.Assets}
	mc.EnsureDefaults()
	return mc
}
