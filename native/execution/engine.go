// Package execution implements the ExecutionEngine (C9): keeper-driven,
// price-bounded order execution, liquidation, and trailing-stop
// reference-price validation.
package execution

import (
	"errors"
	"math/big"

	"perpengine/crypto"
	"perpengine/ledger"
	"perpengine/market"
	"perpengine/native/common"
	"perpengine/native/orderbook"
	"perpengine/oracle"

	"perpengine/core/events"
)

// Errors surfaced to callers of the batch entry points.
var (
	ErrUnauthorizedKeeper = errors.New("execution: unauthorized keeper")
)

// OrderSource is the subset of OrderBook (C7) the engine drives.
type OrderSource interface {
	Order(id uint32) (orderbook.Order, bool)
	KeeperCancel(id uint32, reason string, feeReceiver crypto.Address) error
	MaxMarketOrderTTL() int64
	MaxTriggerOrderTTL() int64
}

// PositionSource is the subset of PositionManager (C6) the engine drives.
type PositionSource interface {
	IncreasePosition(orderID uint32, execPrice *big.Int, keeper crypto.Address, now int64) error
	DecreasePosition(orderID uint32, execPrice *big.Int, isTrailingStop bool, keeper crypto.Address, now int64) error
	Liquidate(user crypto.Address, asset market.AssetID, id market.ID, price *big.Int, now int64, keeper crypto.Address) (bool, *big.Int, error)
	HasPosition(user crypto.Address, asset market.AssetID, id market.ID) (isLong bool, size *big.Int, ok bool)
}

// LiquiditySource is the subset of LiquidityPool (C5) the engine drives for
// the liquidity execute_orders batch and set_global_upls.
type LiquiditySource interface {
	ExecuteOrders(keeper crypto.Address, ids []uint32, assets []market.AssetID, upls []*big.Int, now int64) error
	SetGlobalUPLs(assets []market.AssetID, upls []*big.Int, now int64) error
}

// Engine is the ExecutionEngine component: it owns no position or order
// state of its own, routing keeper-authenticated batches to OrderBook,
// PositionManager, and LiquidityPool while applying the oracle price
// bounding rules.
type Engine struct {
	ledger   ledger.Ledger
	emitter  events.Emitter
	pauses   common.PauseView
	registry *market.Registry
	feed     oracle.Feed
	refFeed  oracle.ReferenceFeed

	orders    OrderSource
	positions PositionSource
	liquidity LiquiditySource

	whitelistedKeepers map[string]bool
	orderExecutionFee  *big.Int
}

// New constructs an Engine. Collaborators may be supplied as nil and
// resolved later via the Set* methods, matching the rest of the engine's
// two-phase wiring discipline.
func New(lg ledger.Ledger, emitter events.Emitter, pauses common.PauseView, registry *market.Registry) *Engine {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Engine{
		ledger:             lg,
		emitter:            emitter,
		pauses:             pauses,
		registry:           registry,
		whitelistedKeepers: make(map[string]bool),
		orderExecutionFee:  big.NewInt(0),
	}
}

func (e *Engine) SetFeed(feed oracle.Feed)                { e.feed = feed }
func (e *Engine) SetReferenceFeed(f oracle.ReferenceFeed) { e.refFeed = f }
func (e *Engine) SetOrderSource(o OrderSource)             { e.orders = o }
func (e *Engine) SetPositionSource(p PositionSource)       { e.positions = p }
func (e *Engine) SetLiquiditySource(l LiquiditySource)     { e.liquidity = l }

// SetWhitelistedKeeper implements the "whitelisted_keepers" governance list.
func (e *Engine) SetWhitelistedKeeper(addr crypto.Address, whitelisted bool) {
	if whitelisted {
		e.whitelistedKeepers[addr.Key()] = true
	} else {
		delete(e.whitelistedKeepers, addr.Key())
	}
}

// IsWhitelistedKeeper reports whether addr may invoke the batch entry
// points.
func (e *Engine) IsWhitelistedKeeper(addr crypto.Address) bool {
	return e.whitelistedKeepers[addr.Key()]
}

// SetOrderExecutionFee implements "set_order_execution_fee": the default
// native-asset fee a new order submission is expected to escrow for its
// eventual keeper-driven execution.
func (e *Engine) SetOrderExecutionFee(fee *big.Int) {
	if fee == nil {
		fee = big.NewInt(0)
	}
	e.orderExecutionFee = new(big.Int).Set(fee)
}

// OrderExecutionFee returns the configured default execution fee.
func (e *Engine) OrderExecutionFee() *big.Int {
	return new(big.Int).Set(e.orderExecutionFee)
}

func (e *Engine) requireKeeper(keeper crypto.Address) error {
	if !e.whitelistedKeepers[keeper.Key()] {
		return ErrUnauthorizedKeeper
	}
	return nil
}

// getOraclePrice implements get_oracle_price(market, maximise): reads the
// raw quote, normalizes to 18 decimals, and nudges it by the confidence
// interval when it exceeds the market's configured threshold.
func (e *Engine) getOraclePrice(mkt market.Market, maximise bool) (*big.Int, bool) {
	if e.feed == nil {
		return big.NewInt(0), false
	}
	quote, err := e.feed.GetUnsafe(mkt.ID)
	if err != nil {
		return big.NewInt(0), false
	}
	price := oracle.NormalizePrice(quote.Price, quote.Expo)
	if price.Sign() == 0 {
		return price, true
	}
	confNorm := oracle.NormalizePrice(quote.Conf, quote.Expo)
	adjusted := oracle.AdjustForConfidence(price, confNorm, mkt.PriceConfThresholdBps, mkt.PriceConfMultiplierBps, maximise)
	return adjusted, true
}

// isStale reports whether mkt's current quote is older than its configured
// oracle_max_age_s.
func (e *Engine) isStale(mkt market.Market, now int64) bool {
	if e.feed == nil {
		return true
	}
	quote, err := e.feed.GetUnsafe(mkt.ID)
	if err != nil {
		return true
	}
	if quote.PublishTime.IsZero() {
		return false
	}
	return mkt.OracleMaxAgeSeconds > 0 && now-quote.PublishTime.Unix() > mkt.OracleMaxAgeSeconds
}
