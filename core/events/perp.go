package events

import (
	"math/big"
	"strconv"

	"perpengine/core/types"
)

// Event type tags, one per mutation enumerated in the engine's external
// interface. Every mutating command emits one or more of these, one per
// state change.
const (
	TypeOrderCreated            = "order.created"
	TypeOrderCancelled          = "order.cancelled"
	TypePositionIncreased       = "position.increased"
	TypePositionDecreased       = "position.decreased"
	TypeMarginIncreased         = "margin.increased"
	TypeMarginDecreased         = "margin.decreased"
	TypeFeePaid                 = "fee.paid"
	TypePositionLiquidated      = "position.liquidated"
	TypePoolDeposit              = "pool.deposit"
	TypePoolWithdrawal           = "pool.withdrawal"
	TypeDirectPoolDeposit        = "pool.direct_deposit"
	TypePoolPayIn                = "pool.pay_in"
	TypePoolPayOut               = "pool.pay_out"
	TypeBufferToPool             = "pool.buffer_to_pool"
	TypeFundingUpdated           = "funding.updated"
	TypeIncrementOI              = "oi.increment"
	TypeDecrementOI              = "oi.decrement"
	TypeGlobalUPLSet             = "pool.global_upl_set"
	TypeOrderExecuted            = "order.executed"
	TypeOrderSkipped             = "order.skipped"
	TypeLiquidationError         = "position.liquidation_error"
	TypeTrailingStopOrderExecuted = "order.trailing_stop_executed"
)

func amt(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// OrderCreated is emitted when an order is indexed into the order book.
type OrderCreated struct {
	OrderID uint32
	User    string
	Asset   string
	Market  string
	IsLong  bool
	Kind    uint8
	Size    *big.Int
	Margin  *big.Int
	Fee     *big.Int
}

func (OrderCreated) EventType() string { return TypeOrderCreated }

func (e OrderCreated) Event() *types.Event {
	return &types.Event{Type: TypeOrderCreated, Attributes: map[string]string{
		"orderId": strconv.FormatUint(uint64(e.OrderID), 10),
		"user":    e.User,
		"asset":   e.Asset,
		"market":  e.Market,
		"isLong":  strconv.FormatBool(e.IsLong),
		"kind":    strconv.FormatUint(uint64(e.Kind), 10),
		"size":    amt(e.Size),
		"margin":  amt(e.Margin),
		"fee":     amt(e.Fee),
	}}
}

// OrderCancelled is emitted whenever an order is removed without executing.
type OrderCancelled struct {
	OrderID     uint32
	User        string
	Reason      string
	FeeReceiver string
}

func (OrderCancelled) EventType() string { return TypeOrderCancelled }

func (e OrderCancelled) Event() *types.Event {
	return &types.Event{Type: TypeOrderCancelled, Attributes: map[string]string{
		"orderId":     strconv.FormatUint(uint64(e.OrderID), 10),
		"user":        e.User,
		"reason":      e.Reason,
		"feeReceiver": e.FeeReceiver,
	}}
}

// PositionIncreased is emitted when a position is opened or added to.
type PositionIncreased struct {
	User      string
	Asset     string
	Market    string
	IsLong    bool
	Size      *big.Int
	Margin    *big.Int
	AvgPrice  *big.Int
	ExecPrice *big.Int
}

func (PositionIncreased) EventType() string { return TypePositionIncreased }

func (e PositionIncreased) Event() *types.Event {
	return &types.Event{Type: TypePositionIncreased, Attributes: map[string]string{
		"user":      e.User,
		"asset":     e.Asset,
		"market":    e.Market,
		"isLong":    strconv.FormatBool(e.IsLong),
		"size":      amt(e.Size),
		"margin":    amt(e.Margin),
		"avgPrice":  amt(e.AvgPrice),
		"execPrice": amt(e.ExecPrice),
	}}
}

// PositionDecreased is emitted when a position is reduced or fully closed.
type PositionDecreased struct {
	User           string
	Asset          string
	Market         string
	Executed       *big.Int
	RemainingSize  *big.Int
	Pnl            *big.Int
	FundingFee     *big.Int
	AmountReturned *big.Int
}

func (PositionDecreased) EventType() string { return TypePositionDecreased }

func (e PositionDecreased) Event() *types.Event {
	return &types.Event{Type: TypePositionDecreased, Attributes: map[string]string{
		"user":           e.User,
		"asset":          e.Asset,
		"market":         e.Market,
		"executed":       amt(e.Executed),
		"remainingSize":  amt(e.RemainingSize),
		"pnl":            amt(e.Pnl),
		"fundingFee":     amt(e.FundingFee),
		"amountReturned": amt(e.AmountReturned),
	}}
}

// MarginIncreased is emitted by add_margin.
type MarginIncreased struct {
	User   string
	Asset  string
	Market string
	Amount *big.Int
}

func (MarginIncreased) EventType() string { return TypeMarginIncreased }

func (e MarginIncreased) Event() *types.Event {
	return &types.Event{Type: TypeMarginIncreased, Attributes: map[string]string{
		"user": e.User, "asset": e.Asset, "market": e.Market, "amount": amt(e.Amount),
	}}
}

// MarginDecreased is emitted by remove_margin.
type MarginDecreased struct {
	User   string
	Asset  string
	Market string
	Amount *big.Int
}

func (MarginDecreased) EventType() string { return TypeMarginDecreased }

func (e MarginDecreased) Event() *types.Event {
	return &types.Event{Type: TypeMarginDecreased, Attributes: map[string]string{
		"user": e.User, "asset": e.Asset, "market": e.Market, "amount": amt(e.Amount),
	}}
}

// FeePaid is emitted for every fee distribution, open/close/liquidation alike.
type FeePaid struct {
	User           string
	Asset          string
	Market         string
	Total          *big.Int
	KeeperShare    *big.Int
	PoolShare      *big.Int
	TreasuryShare  *big.Int
	ExecutionFee   *big.Int
	IsLiquidation  bool
	Keeper         string
}

func (FeePaid) EventType() string { return TypeFeePaid }

func (e FeePaid) Event() *types.Event {
	return &types.Event{Type: TypeFeePaid, Attributes: map[string]string{
		"user":          e.User,
		"asset":         e.Asset,
		"market":        e.Market,
		"total":         amt(e.Total),
		"keeperShare":   amt(e.KeeperShare),
		"poolShare":     amt(e.PoolShare),
		"treasuryShare": amt(e.TreasuryShare),
		"executionFee":  amt(e.ExecutionFee),
		"isLiquidation": strconv.FormatBool(e.IsLiquidation),
		"keeper":        e.Keeper,
	}}
}

// PositionLiquidated is emitted when a position crosses the liquidation
// threshold and is forcibly closed.
type PositionLiquidated struct {
	User       string
	Asset      string
	Market     string
	Size       *big.Int
	Margin     *big.Int
	Price      *big.Int
	Pnl        *big.Int
	FundingFee *big.Int
	Fee        *big.Int
	Keeper     string
}

func (PositionLiquidated) EventType() string { return TypePositionLiquidated }

func (e PositionLiquidated) Event() *types.Event {
	return &types.Event{Type: TypePositionLiquidated, Attributes: map[string]string{
		"user":       e.User,
		"asset":      e.Asset,
		"market":     e.Market,
		"size":       amt(e.Size),
		"margin":     amt(e.Margin),
		"price":      amt(e.Price),
		"pnl":        amt(e.Pnl),
		"fundingFee": amt(e.FundingFee),
		"fee":        amt(e.Fee),
		"keeper":     e.Keeper,
	}}
}

// PoolDeposit is emitted when a liquidity deposit order executes.
type PoolDeposit struct {
	User           string
	Asset          string
	Amount         *big.Int
	AmountAfterTax *big.Int
	TaxBps         uint64
	SharesMinted   *big.Int
}

func (PoolDeposit) EventType() string { return TypePoolDeposit }

func (e PoolDeposit) Event() *types.Event {
	return &types.Event{Type: TypePoolDeposit, Attributes: map[string]string{
		"user":           e.User,
		"asset":          e.Asset,
		"amount":         amt(e.Amount),
		"amountAfterTax": amt(e.AmountAfterTax),
		"taxBps":         strconv.FormatUint(e.TaxBps, 10),
		"sharesMinted":   amt(e.SharesMinted),
	}}
}

// PoolWithdrawal is emitted when a liquidity withdrawal order executes.
type PoolWithdrawal struct {
	User           string
	Asset          string
	Amount         *big.Int
	AmountAfterTax *big.Int
	TaxBps         uint64
	SharesBurned   *big.Int
}

func (PoolWithdrawal) EventType() string { return TypePoolWithdrawal }

func (e PoolWithdrawal) Event() *types.Event {
	return &types.Event{Type: TypePoolWithdrawal, Attributes: map[string]string{
		"user":           e.User,
		"asset":          e.Asset,
		"amount":         amt(e.Amount),
		"amountAfterTax": amt(e.AmountAfterTax),
		"taxBps":         strconv.FormatUint(e.TaxBps, 10),
		"sharesBurned":   amt(e.SharesBurned),
	}}
}

// DirectPoolDeposit is emitted by direct_pool_deposit (no LP shares minted).
type DirectPoolDeposit struct {
	Sender string
	Asset  string
	Amount *big.Int
}

func (DirectPoolDeposit) EventType() string { return TypeDirectPoolDeposit }

func (e DirectPoolDeposit) Event() *types.Event {
	return &types.Event{Type: TypeDirectPoolDeposit, Attributes: map[string]string{
		"sender": e.Sender, "asset": e.Asset, "amount": amt(e.Amount),
	}}
}

// PoolPayIn is emitted whenever a trader loss is credited to the buffer.
type PoolPayIn struct {
	User   string
	Asset  string
	Market string
	Amount *big.Int
}

func (PoolPayIn) EventType() string { return TypePoolPayIn }

func (e PoolPayIn) Event() *types.Event {
	return &types.Event{Type: TypePoolPayIn, Attributes: map[string]string{
		"user": e.User, "asset": e.Asset, "market": e.Market, "amount": amt(e.Amount),
	}}
}

// PoolPayOut is emitted whenever a trader profit is debited out of the pool.
type PoolPayOut struct {
	User   string
	Asset  string
	Market string
	Amount *big.Int
}

func (PoolPayOut) EventType() string { return TypePoolPayOut }

func (e PoolPayOut) Event() *types.Event {
	return &types.Event{Type: TypePoolPayOut, Attributes: map[string]string{
		"user": e.User, "asset": e.Asset, "market": e.Market, "amount": amt(e.Amount),
	}}
}

// BufferToPool is emitted whenever the buffer streamer moves funds into the
// pool principal.
type BufferToPool struct {
	Asset  string
	Amount *big.Int
}

func (BufferToPool) EventType() string { return TypeBufferToPool }

func (e BufferToPool) Event() *types.Event {
	return &types.Event{Type: TypeBufferToPool, Attributes: map[string]string{
		"asset": e.Asset, "amount": amt(e.Amount),
	}}
}

// FundingUpdated is emitted whenever the funding tracker advances its index.
type FundingUpdated struct {
	Asset   string
	Market  string
	Index   *big.Int
	Accrued *big.Int
}

func (FundingUpdated) EventType() string { return TypeFundingUpdated }

func (e FundingUpdated) Event() *types.Event {
	return &types.Event{Type: TypeFundingUpdated, Attributes: map[string]string{
		"asset": e.Asset, "market": e.Market, "index": amt(e.Index), "accrued": amt(e.Accrued),
	}}
}

// IncrementOI / DecrementOI are emitted on every open-interest mutation.
type IncrementOI struct {
	Asset  string
	Market string
	IsLong bool
	Amount *big.Int
}

func (IncrementOI) EventType() string { return TypeIncrementOI }

func (e IncrementOI) Event() *types.Event {
	return &types.Event{Type: TypeIncrementOI, Attributes: map[string]string{
		"asset": e.Asset, "market": e.Market, "isLong": strconv.FormatBool(e.IsLong), "amount": amt(e.Amount),
	}}
}

type DecrementOI struct {
	Asset  string
	Market string
	IsLong bool
	Amount *big.Int
}

func (DecrementOI) EventType() string { return TypeDecrementOI }

func (e DecrementOI) Event() *types.Event {
	return &types.Event{Type: TypeDecrementOI, Attributes: map[string]string{
		"asset": e.Asset, "market": e.Market, "isLong": strconv.FormatBool(e.IsLong), "amount": amt(e.Amount),
	}}
}

// GlobalUPLSet is emitted by set_global_upls.
type GlobalUPLSet struct {
	Asset string
	Upl   *big.Int
}

func (GlobalUPLSet) EventType() string { return TypeGlobalUPLSet }

func (e GlobalUPLSet) Event() *types.Event {
	return &types.Event{Type: TypeGlobalUPLSet, Attributes: map[string]string{
		"asset": e.Asset, "upl": amt(e.Upl),
	}}
}

// OrderExecuted is emitted when a keeper batch successfully executes an order.
type OrderExecuted struct {
	OrderID uint32
	Keeper  string
	Price   *big.Int
}

func (OrderExecuted) EventType() string { return TypeOrderExecuted }

func (e OrderExecuted) Event() *types.Event {
	return &types.Event{Type: TypeOrderExecuted, Attributes: map[string]string{
		"orderId": strconv.FormatUint(uint64(e.OrderID), 10), "keeper": e.Keeper, "price": amt(e.Price),
	}}
}

// OrderSkipped is emitted when an order in a keeper batch is left untouched
// (transient non-match: stale oracle, reference-price deviation, not yet
// triggered, too early).
type OrderSkipped struct {
	OrderID uint32
	Reason  string
}

func (OrderSkipped) EventType() string { return TypeOrderSkipped }

func (e OrderSkipped) Event() *types.Event {
	return &types.Event{Type: TypeOrderSkipped, Attributes: map[string]string{
		"orderId": strconv.FormatUint(uint64(e.OrderID), 10), "reason": e.Reason,
	}}
}

// LiquidationError is emitted for a row in a liquidate_positions batch that
// did not result in a liquidation (position healthy, stale oracle, ...).
type LiquidationError struct {
	User   string
	Asset  string
	Market string
	Reason string
}

func (LiquidationError) EventType() string { return TypeLiquidationError }

func (e LiquidationError) Event() *types.Event {
	return &types.Event{Type: TypeLiquidationError, Attributes: map[string]string{
		"user": e.User, "asset": e.Asset, "market": e.Market, "reason": e.Reason,
	}}
}

// TrailingStopOrderExecuted is emitted specifically for trailing-stop fills,
// additionally to the generic OrderExecuted, since it carries the keeper's
// reference price.
type TrailingStopOrderExecuted struct {
	OrderID  uint32
	RefPrice *big.Int
	Price    *big.Int
}

func (TrailingStopOrderExecuted) EventType() string { return TypeTrailingStopOrderExecuted }

func (e TrailingStopOrderExecuted) Event() *types.Event {
	return &types.Event{Type: TypeTrailingStopOrderExecuted, Attributes: map[string]string{
		"orderId":  strconv.FormatUint(uint64(e.OrderID), 10),
		"refPrice": amt(e.RefPrice),
		"price":    amt(e.Price),
	}}
}
