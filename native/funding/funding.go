// Package funding implements the FundingTracker (C4): a cumulative, signed
// funding index per (asset, market) driven by long/short open-interest
// skew.
package funding

import (
	"math/big"

	"perpengine/fixedpoint"
	"perpengine/market"
)

// OIProvider is the capability the tracker consults for the current
// open-interest split on a (asset, market) pair; PositionManager (C6)
// implements it.
type OIProvider interface {
	OpenInterest(asset market.AssetID, id market.ID) (long, short *big.Int)
}

type key struct {
	asset market.AssetID
	id    market.ID
}

type state struct {
	index         *big.Int // signed, UNIT*bps units
	lastUpdatedTs int64
}

// Tracker holds the per-(asset,market) funding index state.
type Tracker struct {
	intervalSeconds int64
	states          map[key]*state
	oi              OIProvider
}

// New returns a Tracker with the given funding interval (seconds) and OI
// source. Link-style construction matches the engine's two-phase init: oi
// may be nil at construction time and set later via SetOIProvider.
func New(intervalSeconds int64, oi OIProvider) *Tracker {
	return &Tracker{intervalSeconds: intervalSeconds, states: make(map[key]*state), oi: oi}
}

// SetOIProvider resolves the cyclic FundingTracker<->PositionManager
// reference once both components exist.
func (t *Tracker) SetOIProvider(oi OIProvider) { t.oi = oi }

func (t *Tracker) get(asset market.AssetID, id market.ID) *state {
	k := key{asset, id}
	s, ok := t.states[k]
	if !ok {
		s = &state{index: big.NewInt(0)}
		t.states[k] = s
	}
	return s
}

// Update advances the cumulative index for (asset, market) as of now,
// following §4.1 exactly: a call while last_updated is still 0 (never
// updated, so a timestamp of 0 cannot serve as an anchor) just anchors
// last_updated to now; an update
// inside the current interval is a no-op; a balanced book produces no
// change; otherwise the signed accrual is added.
func (t *Tracker) Update(asset market.AssetID, id market.ID, now int64, yearlyFactorBps uint64) (*big.Int, bool) {
	s := t.get(asset, id)
	if s.lastUpdatedTs == 0 {
		s.lastUpdatedTs = now
		return new(big.Int).Set(s.index), false
	}
	elapsed := now - s.lastUpdatedTs
	if elapsed < t.intervalSeconds {
		return new(big.Int).Set(s.index), false
	}
	n := elapsed / t.intervalSeconds
	oiLong, oiShort := t.oiOf(asset, id)
	delta := computeAccrual(yearlyFactorBps, oiLong, oiShort, n, t.intervalSeconds)
	if delta.Sign() != 0 {
		s.index.Add(s.index, delta)
	}
	s.lastUpdatedTs = now
	return new(big.Int).Set(s.index), delta.Sign() != 0
}

// Current returns the latest stored index.
func (t *Tracker) Current(asset market.AssetID, id market.ID) *big.Int {
	return new(big.Int).Set(t.get(asset, id).index)
}

// Projected returns the index including not-yet-committed accrual as of
// now, without mutating state.
func (t *Tracker) Projected(asset market.AssetID, id market.ID, now int64, yearlyFactorBps uint64) *big.Int {
	s := t.get(asset, id)
	if s.lastUpdatedTs == 0 {
		return new(big.Int).Set(s.index)
	}
	elapsed := now - s.lastUpdatedTs
	if elapsed < t.intervalSeconds {
		return new(big.Int).Set(s.index)
	}
	n := elapsed / t.intervalSeconds
	oiLong, oiShort := t.oiOf(asset, id)
	delta := computeAccrual(yearlyFactorBps, oiLong, oiShort, n, t.intervalSeconds)
	return new(big.Int).Add(s.index, delta)
}

// Accrued returns the signed delta the tracker would add for n intervals at
// the current open interest, without touching stored state.
func (t *Tracker) Accrued(asset market.AssetID, id market.ID, intervals int64, yearlyFactorBps uint64) *big.Int {
	oiLong, oiShort := t.oiOf(asset, id)
	return computeAccrual(yearlyFactorBps, oiLong, oiShort, intervals, t.intervalSeconds)
}

func (t *Tracker) oiOf(asset market.AssetID, id market.ID) (*big.Int, *big.Int) {
	if t.oi == nil {
		return big.NewInt(0), big.NewInt(0)
	}
	l, s := t.oi.OpenInterest(asset, id)
	if l == nil {
		l = big.NewInt(0)
	}
	if s == nil {
		s = big.NewInt(0)
	}
	return l, s
}

// computeAccrual implements:
//
//	accrued = UNIT * yearlyFactorBps * |oiLong - oiShort| * n /
//	          ((secondsPerYear / fundingInterval) * (oiLong + oiShort))
//
// positive when longs dominate (longs pay shorts), negative otherwise.
func computeAccrual(yearlyFactorBps uint64, oiLong, oiShort *big.Int, n, fundingInterval int64) *big.Int {
	total := new(big.Int).Add(oiLong, oiShort)
	if total.Sign() == 0 || n == 0 {
		return big.NewInt(0)
	}
	skew := new(big.Int).Sub(oiLong, oiShort)
	longsDominate := skew.Sign() > 0
	if skew.Sign() < 0 {
		skew.Neg(skew)
	}
	if skew.Sign() == 0 {
		return big.NewInt(0)
	}

	numerator := new(big.Int).Mul(fixedpoint.Unit, new(big.Int).SetUint64(yearlyFactorBps))
	numerator.Mul(numerator, skew)
	numerator.Mul(numerator, big.NewInt(n))

	intervalsPerYear := fixedpoint.SecondsPerYear / fundingInterval
	denominator := new(big.Int).Mul(big.NewInt(intervalsPerYear), total)

	accrued := new(big.Int).Div(numerator, denominator)
	if !longsDominate {
		accrued.Neg(accrued)
	}
	return accrued
}
