// Package liquidity implements the LiquidityPool (C5): per-asset balance,
// buffer, and LP share accounting, the buffer-to-pool streaming algorithm,
// and the two-phase deposit/withdraw LiquidityOrder lifecycle.
package liquidity

import (
	"errors"
	"math/big"

	"perpengine/core/events"
	"perpengine/crypto"
	"perpengine/ledger"
	"perpengine/market"
	"perpengine/native/common"
)

// Errors surfaced to callers of the mutating entry points. Internal
// invariant violations (nil state) are not expected to occur given the
// engine's construction discipline and are not modelled as sentinels.
var (
	ErrInsufficientPoolLiquidity = errors.New("liquidity: insufficient pool liquidity")
	ErrAssetNotSupported         = errors.New("liquidity: asset not supported")
	ErrInvalidAmount             = errors.New("liquidity: invalid amount")
)

// OrderKind distinguishes a deposit from a withdrawal LiquidityOrder.
type OrderKind uint8

const (
	KindDeposit OrderKind = iota
	KindWithdraw
)

// Order is the LiquidityOrder record.
type Order struct {
	ID                uint32
	User              crypto.Address
	Asset             market.AssetID
	Kind              OrderKind
	Amount            *big.Int
	MinAmountAfterTax *big.Int
	Timestamp         int64
	ExecutionFee      *big.Int
}

// PoolState is the per-asset accounting record.
type PoolState struct {
	Balance                    *big.Int
	BufferBalance              *big.Int
	LPSupply                   *big.Int
	UserLP                     map[string]*big.Int
	LastPaidTs                 int64
	CurrentEpochRemainingBuf   *big.Int
	GlobalUPL                  *big.Int // signed
	FeeReserve                 *big.Int
	UtilizationMultiplierBps   uint64
}

func newPoolState() *PoolState {
	return &PoolState{
		Balance:                  big.NewInt(0),
		BufferBalance:            big.NewInt(0),
		LPSupply:                 big.NewInt(0),
		UserLP:                   make(map[string]*big.Int),
		CurrentEpochRemainingBuf: big.NewInt(0),
		GlobalUPL:                big.NewInt(0),
		FeeReserve:               big.NewInt(0),
		UtilizationMultiplierBps: fixedBPS,
	}
}

const fixedBPS = 10_000

// OIProvider exposes the asset-level open interest total, consulted by the
// withdrawal liquidity check.
type OIProvider interface {
	AssetOpenInterest(asset market.AssetID) *big.Int
}

// Pool is the LiquidityPool component.
type Pool struct {
	ledger  ledger.Ledger
	emitter events.Emitter
	pauses  common.PauseView
	oi      OIProvider

	bufferPayoutPeriod   int64
	maxLiquidityOrderTTL int64
	fundingAccounts      map[string]bool

	states      map[market.AssetID]*PoolState
	orders      map[uint32]*Order
	nextOrderID uint32
}

// New constructs a Pool. oi may be nil until SetOIProvider resolves the
// cyclic PositionManager reference.
func New(lg ledger.Ledger, emitter events.Emitter, pauses common.PauseView, bufferPayoutPeriod, maxLiquidityOrderTTL int64) *Pool {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Pool{
		ledger:               lg,
		emitter:              emitter,
		pauses:               pauses,
		bufferPayoutPeriod:   bufferPayoutPeriod,
		maxLiquidityOrderTTL: maxLiquidityOrderTTL,
		fundingAccounts:      make(map[string]bool),
		states:               make(map[market.AssetID]*PoolState),
		orders:               make(map[uint32]*Order),
	}
}

// SetOIProvider resolves the cyclic LiquidityPool<->PositionManager
// reference once both components exist.
func (p *Pool) SetOIProvider(oi OIProvider) { p.oi = oi }

// SetFundingAccount marks addr as a whitelisted funding account permitted to
// submit a direct-deposit order on another user's behalf.
func (p *Pool) SetFundingAccount(addr crypto.Address, whitelisted bool) {
	if whitelisted {
		p.fundingAccounts[addr.Key()] = true
	} else {
		delete(p.fundingAccounts, addr.Key())
	}
}

func (p *Pool) state(asset market.AssetID) *PoolState {
	s, ok := p.states[asset]
	if !ok {
		s = newPoolState()
		p.states[asset] = s
	}
	return s
}

// State returns a defensive copy of asset's pool state for read-only
// inspection.
func (p *Pool) State(asset market.AssetID) PoolState {
	s := p.state(asset)
	clone := PoolState{
		Balance:                  new(big.Int).Set(s.Balance),
		BufferBalance:            new(big.Int).Set(s.BufferBalance),
		LPSupply:                 new(big.Int).Set(s.LPSupply),
		UserLP:                   make(map[string]*big.Int, len(s.UserLP)),
		CurrentEpochRemainingBuf: new(big.Int).Set(s.CurrentEpochRemainingBuf),
		GlobalUPL:                new(big.Int).Set(s.GlobalUPL),
		FeeReserve:               new(big.Int).Set(s.FeeReserve),
		LastPaidTs:               s.LastPaidTs,
		UtilizationMultiplierBps: s.UtilizationMultiplierBps,
	}
	for k, v := range s.UserLP {
		clone.UserLP[k] = new(big.Int).Set(v)
	}
	return clone
}

// PoolBalance implements risk.PoolBalanceProvider: the principal balance
// the pool-drawdown tracker sizes the profit limit against.
func (p *Pool) PoolBalance(asset market.AssetID) *big.Int {
	return new(big.Int).Set(p.state(asset).Balance)
}

// SetUtilizationMultiplier implements the "set_utilization_multiplier"
// governance command.
func (p *Pool) SetUtilizationMultiplier(asset market.AssetID, bps uint64) {
	p.state(asset).UtilizationMultiplierBps = bps
}

// SetBufferPayoutPeriod implements "set_buffer_payout_period".
func (p *Pool) SetBufferPayoutPeriod(seconds int64) { p.bufferPayoutPeriod = seconds }

// SetMaxLiquidityOrderTTL implements "set_max_liquidity_order_ttl".
func (p *Pool) SetMaxLiquidityOrderTTL(seconds int64) { p.maxLiquidityOrderTTL = seconds }
