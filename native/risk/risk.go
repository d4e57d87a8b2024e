// Package risk implements the RiskValidator (C8): max-open-interest caps and
// a time-decayed pool-drawdown tracker consulted synchronously by
// PositionManager (C6) and OrderBook (C7).
package risk

import (
	"errors"
	"fmt"
	"math/big"

	"perpengine/fixedpoint"
	"perpengine/market"
)

// ErrOICapExceeded is returned by CheckMaxOI when admitting the proposed
// order size would push open interest past the configured cap.
var ErrOICapExceeded = errors.New("risk: open interest cap exceeded")

// ErrPoolDrawdownExceeded is returned by CheckPoolDrawdown when the rolling,
// hourly-decayed payout tracker would exceed the pool's profit limit.
var ErrPoolDrawdownExceeded = errors.New("risk: pool profit limit exceeded")

const secondsPerHour = 3600

// OIProvider exposes the total (long+short) open interest for a
// (asset, market) pair; PositionManager (C6) implements it.
type OIProvider interface {
	TotalOpenInterest(asset market.AssetID, id market.ID) *big.Int
}

// PoolBalanceProvider exposes the pool principal balance for an asset;
// LiquidityPool (C5) implements it.
type PoolBalanceProvider interface {
	PoolBalance(asset market.AssetID) *big.Int
}

type assetState struct {
	poolProfitTracker *big.Int // signed
	lastCheckedTs     int64
	profitLimitBps    uint64
	maxOI             map[market.ID]*big.Int
	hourlyDecayBps    uint64
}

func newAssetState() *assetState {
	return &assetState{
		poolProfitTracker: big.NewInt(0),
		maxOI:             make(map[market.ID]*big.Int),
	}
}

// Validator is the RiskValidator component.
type Validator struct {
	oi     OIProvider
	pool   PoolBalanceProvider
	states map[market.AssetID]*assetState
}

// New constructs a Validator. oi and pool may be nil at construction time and
// resolved later via SetOIProvider/SetPoolProvider, matching the engine's
// two-phase init discipline for cyclic component references.
func New(oi OIProvider, pool PoolBalanceProvider) *Validator {
	return &Validator{oi: oi, pool: pool, states: make(map[market.AssetID]*assetState)}
}

// SetOIProvider resolves the cyclic RiskValidator<->PositionManager reference.
func (v *Validator) SetOIProvider(oi OIProvider) { v.oi = oi }

// SetPoolProvider resolves the cyclic RiskValidator<->LiquidityPool reference.
func (v *Validator) SetPoolProvider(pool PoolBalanceProvider) { v.pool = pool }

func (v *Validator) state(asset market.AssetID) *assetState {
	s, ok := v.states[asset]
	if !ok {
		s = newAssetState()
		v.states[asset] = s
	}
	return s
}

// SetMaxOI installs the open-interest cap for (asset, market): the
// "set_max_oi" governance command.
func (v *Validator) SetMaxOI(asset market.AssetID, id market.ID, cap *big.Int) {
	v.state(asset).maxOI[id] = new(big.Int).Set(cap)
}

// SetPoolProfitLimit installs the profit-limit basis points used by
// CheckPoolDrawdown: "set_pool_profit_limit". Must satisfy the configuration
// bound profit_limit_bps < BPS.
func (v *Validator) SetPoolProfitLimit(asset market.AssetID, bps uint64) error {
	if bps >= fixedpoint.BPS {
		return fmt.Errorf("risk: profit_limit_bps=%d must be < %d", bps, fixedpoint.BPS)
	}
	v.state(asset).profitLimitBps = bps
	return nil
}

// SetPoolHourlyDecay installs the hourly decay basis points for the
// drawdown tracker: "set_pool_hourly_decay". Must satisfy
// pool_hourly_decay_bps < BPS.
func (v *Validator) SetPoolHourlyDecay(asset market.AssetID, bps uint64) error {
	if bps >= fixedpoint.BPS {
		return fmt.Errorf("risk: pool_hourly_decay_bps=%d must be < %d", bps, fixedpoint.BPS)
	}
	v.state(asset).hourlyDecayBps = bps
	return nil
}

// CheckMaxOI implements check_max_oi: admitting an order of size on
// (asset, market) must not push total open interest past the configured
// cap. A zero or unset cap means "uncapped".
func (v *Validator) CheckMaxOI(asset market.AssetID, id market.ID, size *big.Int) error {
	s := v.state(asset)
	cap, ok := s.maxOI[id]
	if !ok || cap.Sign() <= 0 {
		return nil
	}
	current := big.NewInt(0)
	if v.oi != nil {
		if t := v.oi.TotalOpenInterest(asset, id); t != nil {
			current = t
		}
	}
	projected := new(big.Int).Add(current, size)
	if projected.Cmp(cap) > 0 {
		return fmt.Errorf("%w: asset=%s market=%s projected=%s cap=%s", ErrOICapExceeded, asset, id.String(), projected.String(), cap.String())
	}
	return nil
}

// CheckPoolDrawdown implements check_pool_drawdown. It decays the stored
// profit tracker by the configured hourly rate (capping the decay
// multiplier at zero so it can never go negative for a large elapsed time,
// per the source's open question), adds pnl when it represents a payout to
// the trader (pnl > 0, i.e. a pool loss), and rejects if the result would
// exceed profit_limit_bps of the pool's current balance.
//
// The tracker and last-checked timestamp are computed into locals and only
// persisted
// when the check passes; on a rejection, state is left exactly as it was
// before the call.
func (v *Validator) CheckPoolDrawdown(asset market.AssetID, pnl *big.Int, now int64) error {
	s := v.state(asset)

	tracker := new(big.Int).Set(s.poolProfitTracker)
	if s.hourlyDecayBps > 0 {
		elapsed := now - s.lastCheckedTs
		if elapsed > 0 {
			hoursPassed := elapsed / secondsPerHour
			decayed := new(big.Int).SetUint64(s.hourlyDecayBps)
			decayed.Mul(decayed, big.NewInt(hoursPassed))
			multiplier := new(big.Int).Sub(fixedpoint.BPSInt, decayed)
			if multiplier.Sign() < 0 {
				multiplier.SetInt64(0)
			}
			tracker.Mul(tracker, multiplier)
			tracker.Div(tracker, fixedpoint.BPSInt)
		}
	}

	if pnl != nil && pnl.Sign() > 0 {
		tracker.Add(tracker, pnl)
	}

	if s.profitLimitBps > 0 && v.pool != nil {
		balance := v.pool.PoolBalance(asset)
		if balance != nil && balance.Sign() > 0 {
			limit := fixedpoint.MulDivBps(balance, s.profitLimitBps)
			if tracker.Cmp(limit) > 0 {
				return fmt.Errorf("%w: asset=%s tracker=%s limit=%s", ErrPoolDrawdownExceeded, asset, tracker.String(), limit.String())
			}
		}
	}

	s.poolProfitTracker = tracker
	s.lastCheckedTs = now
	return nil
}

// ProfitTracker returns a defensive copy of the current tracker value for
// asset, for read-only inspection.
func (v *Validator) ProfitTracker(asset market.AssetID) *big.Int {
	return new(big.Int).Set(v.state(asset).poolProfitTracker)
}

// MaxOI returns the configured cap for (asset, market), or nil if unset.
func (v *Validator) MaxOI(asset market.AssetID, id market.ID) *big.Int {
	s := v.state(asset)
	cap, ok := s.maxOI[id]
	if !ok {
		return nil
	}
	return new(big.Int).Set(cap)
}
