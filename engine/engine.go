// Package engine wires the nine collaborating components (Ledger,
// PriceFeed, ReferencePriceFeed, FundingTracker, LiquidityPool,
// PositionManager, OrderBook, RiskValidator, ExecutionEngine) into a single
// deterministic state machine and exposes the spec's full command surface as
// one facade, so a host only has to construct and drive an Engine.
package engine

import (
	"fmt"
	"math/big"

	"perpengine/core/events"
	"perpengine/crypto"
	"perpengine/ledger"
	"perpengine/market"
	"perpengine/native/execution"
	"perpengine/native/funding"
	"perpengine/native/liquidity"
	"perpengine/native/orderbook"
	"perpengine/native/position"
	"perpengine/native/risk"
	"perpengine/oracle"
	"perpengine/referral"
)

// Engine is the top-level orchestrator. Its component fields are exported
// so a host or test can reach past the facade for read-only inspection
// (e.g. Position, State, ProfitTracker), but all mutation should go through
// Engine's own methods so the pause/keeper-authentication gates apply
// consistently.
type Engine struct {
	Ledger    ledger.Ledger
	Emitter   events.Emitter
	Pauses    *PauseSet
	Registry  *market.Registry
	Referrals referral.Directory

	Book      *orderbook.Book
	Positions *position.Manager
	Pool      *liquidity.Pool
	Funding   *funding.Tracker
	Risk      *risk.Validator
	Execution *execution.Engine
}

// New constructs a fully wired Engine from cfg: it builds the market
// registry, constructs every component with the two-phase init discipline
// the native packages already use for their cyclic references, resolves
// those references, and applies every governance parameter cfg carries.
// The oracle feeds are not part of Config (they are protocol-specific
// collaborators, not bootstrap data) and must be supplied afterward via
// SetFeed/SetReferenceFeed.
func New(cfg Config, lg ledger.Ledger, emitter events.Emitter, referrals referral.Directory) (*Engine, error) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	if referrals == nil {
		referrals = referral.NewInMemory()
	}

	registry := market.NewRegistry()
	if err := cfg.marketConfig().Apply(registry); err != nil {
		return nil, fmt.Errorf("engine: applying market config: %w", err)
	}

	pauses := NewPauseSet()

	book := orderbook.New(lg, emitter, pauses, registry, cfg.MaxMarketOrderTTLSeconds, cfg.MaxTriggerOrderTTLSeconds)
	pool := liquidity.New(lg, emitter, pauses, cfg.BufferPayoutPeriodSeconds, cfg.MaxLiquidityOrderTTLSeconds)
	fundingTracker := funding.New(cfg.FundingIntervalSeconds, nil)
	riskValidator := risk.New(nil, nil)
	positions := position.New(lg, emitter, pauses, registry, cfg.FundingIntervalSeconds)
	exec := execution.New(lg, emitter, pauses, registry)

	book.SetPositionProvider(positions)
	book.SetRiskValidator(riskValidator)
	book.SetReferralDirectory(referrals)

	positions.SetOrderStore(book)
	positions.SetPool(pool)
	positions.SetFundingTracker(fundingTracker)
	positions.SetRiskValidator(riskValidator)

	fundingTracker.SetOIProvider(positions)
	riskValidator.SetOIProvider(positions)
	riskValidator.SetPoolProvider(pool)
	pool.SetOIProvider(positions)

	exec.SetOrderSource(book)
	exec.SetPositionSource(positions)
	exec.SetLiquiditySource(pool)

	e := &Engine{
		Ledger:    lg,
		Emitter:   emitter,
		Pauses:    pauses,
		Registry:  registry,
		Referrals: referrals,
		Book:      book,
		Positions: positions,
		Pool:      pool,
		Funding:   fundingTracker,
		Risk:      riskValidator,
		Execution: exec,
	}

	for _, ac := range cfg.Assets {
		pool.EnsureAsset(market.AssetID(ac.ID))
	}

	positions.SetMinPositionHoldTime(cfg.MinPositionHoldTimeSeconds)
	positions.SetRemoveMarginBuffer(cfg.RemoveMarginBufferBps)
	positions.SetKeeperFeeShare(cfg.KeeperFeeShareBps)
	positions.SetPoolFeeShare(cfg.PoolFeeShareBps)
	positions.SetTrailingStopFee(cfg.TrailingStopFeeBps)
	positions.SetLiquidationFee(cfg.LiquidationFeeBps)
	book.SetApprovalMessage([]byte(cfg.ApprovalMessage))

	if cfg.OrderExecutionFee != "" {
		fee, ok := new(big.Int).SetString(cfg.OrderExecutionFee, 10)
		if !ok {
			return nil, fmt.Errorf("engine: invalid order_execution_fee %q", cfg.OrderExecutionFee)
		}
		exec.SetOrderExecutionFee(fee)
	}

	if err := e.applyWhitelists(cfg); err != nil {
		return nil, err
	}

	return e, nil
}

func (e *Engine) applyWhitelists(cfg Config) error {
	for _, s := range cfg.WhitelistedKeepers {
		addr, err := crypto.DecodeAddress(s)
		if err != nil {
			return fmt.Errorf("engine: whitelisted_keepers: %w", err)
		}
		e.Execution.SetWhitelistedKeeper(addr, true)
	}
	for _, s := range cfg.ApprovedAccounts {
		addr, err := crypto.DecodeAddress(s)
		if err != nil {
			return fmt.Errorf("engine: approved_accounts: %w", err)
		}
		e.Book.SetApprovedAccount(addr, true)
	}
	for _, s := range cfg.FundingAccounts {
		addr, err := crypto.DecodeAddress(s)
		if err != nil {
			return fmt.Errorf("engine: funding_accounts: %w", err)
		}
		e.Book.SetFundingAccount(addr, true)
		e.Pool.SetFundingAccount(addr, true)
	}
	return nil
}

// SetFeed wires the PriceFeed (C2) collaborator into every component that
// consumes it.
func (e *Engine) SetFeed(feed oracle.Feed) { e.Execution.SetFeed(feed) }

// SetReferenceFeed wires the ReferencePriceFeed (C3) collaborator into every
// component that consumes it: the execution engine's deviation bound and
// the position manager's remove_margin buffered-loss check.
func (e *Engine) SetReferenceFeed(f oracle.ReferenceFeed) {
	e.Execution.SetReferenceFeed(f)
	e.Positions.SetReferenceFeed(f)
}
