// Package position implements the PositionManager (C6): open-interest
// bookkeeping, average-price arithmetic, P&L calculation, margin add/remove,
// and fee distribution.
package position

import (
	"errors"
	"math/big"

	"perpengine/core/events"
	"perpengine/crypto"
	"perpengine/ledger"
	"perpengine/market"
	"perpengine/native/common"
	"perpengine/native/orderbook"
	"perpengine/oracle"
)

// Errors surfaced to callers of the mutating entry points.
var (
	ErrNotFound           = errors.New("position: not found")
	ErrMinHoldTime        = errors.New("position: !min-hold-time")
	ErrMinRemainingSize   = errors.New("position: !min-remaining-size")
	ErrInvalidInput       = errors.New("position: invalid input")
	ErrInsufficientMargin = errors.New("position: insufficient margin")
	ErrLeverage           = errors.New("position: leverage out of bounds")
	ErrReferencePrice     = errors.New("position: reference price unavailable")
	ErrUPLExceedsBuffer   = errors.New("position: !upl")
)

// OrderStore is the subset of OrderBook (C7) the position manager consumes:
// loading and removing an order once it has executed.
type OrderStore interface {
	Order(id uint32) (orderbook.Order, bool)
	Remove(id uint32)
	KeeperCancel(id uint32, reason string, feeReceiver crypto.Address) error
	// Insert adopts an already-funded synthetic order (the direction-flip
	// remainder from decrease_position) directly into storage, bypassing the
	// normal submission fee-pull and invariant checks since its margin is
	// already in custody from the order it was carved out of.
	Insert(order orderbook.Order, now int64) uint32
}

// PoolAccounting is the subset of LiquidityPool (C5) the position manager
// consumes for trader P&L settlement and fee distribution.
type PoolAccounting interface {
	CreditTraderLoss(user crypto.Address, asset market.AssetID, id market.ID, amount *big.Int, now int64)
	DebitTraderProfit(user crypto.Address, asset market.AssetID, id market.ID, amount *big.Int, now int64) error
	CreditFeeToPool(asset market.AssetID, amount *big.Int)
	CreditFeeReserve(asset market.AssetID, amount *big.Int)
}

// FundingTracker is the subset of FundingTracker (C4) the position manager
// consumes.
type FundingTracker interface {
	Update(asset market.AssetID, id market.ID, now int64, yearlyFactorBps uint64) (*big.Int, bool)
	Projected(asset market.AssetID, id market.ID, now int64, yearlyFactorBps uint64) *big.Int
	Current(asset market.AssetID, id market.ID) *big.Int
}

// RiskValidator is the subset of RiskValidator (C8) the position manager
// consumes.
type RiskValidator interface {
	CheckMaxOI(asset market.AssetID, id market.ID, size *big.Int) error
	CheckPoolDrawdown(asset market.AssetID, pnl *big.Int, now int64) error
}

// Position is the spec's Position record, keyed by (user, asset, market).
type Position struct {
	User            crypto.Address
	Asset           market.AssetID
	Market          market.ID
	IsLong          bool
	Size            *big.Int
	Margin          *big.Int
	AvgPrice        *big.Int
	Timestamp       int64
	FundingSnapshot *big.Int // signed
}

func (p Position) clone() Position {
	c := p
	c.Size = new(big.Int).Set(p.Size)
	c.Margin = new(big.Int).Set(p.Margin)
	c.AvgPrice = new(big.Int).Set(p.AvgPrice)
	c.FundingSnapshot = new(big.Int).Set(p.FundingSnapshot)
	return c
}

type posKey struct {
	user   string
	asset  market.AssetID
	market market.ID
}

type oiKey struct {
	asset  market.AssetID
	market market.ID
}

type oiState struct {
	long  *big.Int
	short *big.Int
}

func newOIState() *oiState { return &oiState{long: big.NewInt(0), short: big.NewInt(0)} }

// Manager is the PositionManager component.
type Manager struct {
	ledger   ledger.Ledger
	emitter  events.Emitter
	pauses   common.PauseView
	registry *market.Registry
	refFeed  oracle.ReferenceFeed

	orders  OrderStore
	pool    PoolAccounting
	funding FundingTracker
	risk    RiskValidator

	positions map[posKey]*Position
	byMarket  map[oiKey]*oiState
	byAsset   map[market.AssetID]*oiState

	lastIncreased map[string]int64

	minPositionHoldTime   int64
	removeMarginBufferBps uint64
	keeperFeeShareBps     uint64
	poolFeeShareBps       uint64
	trailingStopFeeBps    uint64
	liquidationFeeBps     uint64
	fundingIntervalSecs   int64
}

// New constructs a Manager. orders/pool/funding/risk may be nil at
// construction time and resolved later via the Set* methods, matching the
// engine's two-phase init discipline for cyclic component references.
func New(lg ledger.Ledger, emitter events.Emitter, pauses common.PauseView, registry *market.Registry, fundingIntervalSecs int64) *Manager {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Manager{
		ledger:              lg,
		emitter:             emitter,
		pauses:              pauses,
		registry:            registry,
		fundingIntervalSecs: fundingIntervalSecs,
		positions:           make(map[posKey]*Position),
		byMarket:            make(map[oiKey]*oiState),
		byAsset:             make(map[market.AssetID]*oiState),
		lastIncreased:       make(map[string]int64),
	}
}

func (m *Manager) SetOrderStore(s OrderStore)       { m.orders = s }
func (m *Manager) SetPool(p PoolAccounting)         { m.pool = p }
func (m *Manager) SetFundingTracker(f FundingTracker) { m.funding = f }
func (m *Manager) SetRiskValidator(r RiskValidator) { m.risk = r }
func (m *Manager) SetReferenceFeed(f oracle.ReferenceFeed) { m.refFeed = f }

// SetMinPositionHoldTime implements "set_min_position_hold_time".
func (m *Manager) SetMinPositionHoldTime(seconds int64) { m.minPositionHoldTime = seconds }

// SetRemoveMarginBuffer implements "set_remove_margin_buffer".
func (m *Manager) SetRemoveMarginBuffer(bps uint64) { m.removeMarginBufferBps = bps }

// SetKeeperFeeShare implements "set_keeper_fee_share".
func (m *Manager) SetKeeperFeeShare(bps uint64) { m.keeperFeeShareBps = bps }

// SetPoolFeeShare implements "set_fee_share": the net-of-keeper fee's share
// routed to the pool principal versus the treasury reserve.
func (m *Manager) SetPoolFeeShare(bps uint64) { m.poolFeeShareBps = bps }

// SetTrailingStopFee implements "set_trailing_stop_fee".
func (m *Manager) SetTrailingStopFee(bps uint64) { m.trailingStopFeeBps = bps }

// SetLiquidationFee implements "set_liquidation_fee".
func (m *Manager) SetLiquidationFee(bps uint64) { m.liquidationFeeBps = bps }

func (m *Manager) posKeyOf(user crypto.Address, asset market.AssetID, id market.ID) posKey {
	return posKey{user: user.Key(), asset: asset, market: id}
}

// Position returns a defensive copy of the caller's position, if any.
func (m *Manager) Position(user crypto.Address, asset market.AssetID, id market.ID) (Position, bool) {
	p, ok := m.positions[m.posKeyOf(user, asset, id)]
	if !ok {
		return Position{}, false
	}
	return p.clone(), true
}

// HasPosition implements orderbook.PositionProvider.
func (m *Manager) HasPosition(user crypto.Address, asset market.AssetID, id market.ID) (bool, *big.Int, bool) {
	p, ok := m.positions[m.posKeyOf(user, asset, id)]
	if !ok {
		return false, nil, false
	}
	return p.IsLong, new(big.Int).Set(p.Size), true
}

func (m *Manager) oiMarketState(asset market.AssetID, id market.ID) *oiState {
	k := oiKey{asset, id}
	s, ok := m.byMarket[k]
	if !ok {
		s = newOIState()
		m.byMarket[k] = s
	}
	return s
}

func (m *Manager) oiAssetState(asset market.AssetID) *oiState {
	s, ok := m.byAsset[asset]
	if !ok {
		s = newOIState()
		m.byAsset[asset] = s
	}
	return s
}

// OpenInterest implements funding.OIProvider: the per-(asset,market) split.
func (m *Manager) OpenInterest(asset market.AssetID, id market.ID) (*big.Int, *big.Int) {
	s := m.oiMarketState(asset, id)
	return new(big.Int).Set(s.long), new(big.Int).Set(s.short)
}

// TotalOpenInterest implements risk.OIProvider: long+short for (asset,market).
func (m *Manager) TotalOpenInterest(asset market.AssetID, id market.ID) *big.Int {
	s := m.oiMarketState(asset, id)
	return new(big.Int).Add(s.long, s.short)
}

// AssetOpenInterest implements liquidity.OIProvider: long+short totaled
// across every market for asset.
func (m *Manager) AssetOpenInterest(asset market.AssetID) *big.Int {
	s := m.oiAssetState(asset)
	return new(big.Int).Add(s.long, s.short)
}

func (m *Manager) incrementOI(asset market.AssetID, id market.ID, isLong bool, amount *big.Int) {
	ms := m.oiMarketState(asset, id)
	as := m.oiAssetState(asset)
	if isLong {
		ms.long.Add(ms.long, amount)
		as.long.Add(as.long, amount)
	} else {
		ms.short.Add(ms.short, amount)
		as.short.Add(as.short, amount)
	}
	m.emitter.Emit(events.IncrementOI{Asset: string(asset), Market: id.String(), IsLong: isLong, Amount: amount})
}

func (m *Manager) decrementOI(asset market.AssetID, id market.ID, isLong bool, amount *big.Int) {
	ms := m.oiMarketState(asset, id)
	as := m.oiAssetState(asset)
	if isLong {
		ms.long = saturatingSub(ms.long, amount)
		as.long = saturatingSub(as.long, amount)
	} else {
		ms.short = saturatingSub(ms.short, amount)
		as.short = saturatingSub(as.short, amount)
	}
	m.emitter.Emit(events.DecrementOI{Asset: string(asset), Market: id.String(), IsLong: isLong, Amount: amount})
}

func saturatingSub(a, b *big.Int) *big.Int {
	r := new(big.Int).Sub(a, b)
	if r.Sign() < 0 {
		return big.NewInt(0)
	}
	return r
}

func lastIncreasedKey(user crypto.Address, id market.ID) string {
	return user.Key() + "|" + id.String()
}
