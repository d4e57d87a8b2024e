package execution

import (
	"errors"
	"math/big"

	"perpengine/core/events"
	"perpengine/crypto"
	"perpengine/market"
	"perpengine/native/common"
	"perpengine/oracle"
)

// ErrMismatchedRows is returned by LiquidatePositions and SetGlobalUPLs when
// the input slices have mismatched lengths.
var ErrMismatchedRows = errors.New("execution: mismatched row lengths")

// LiquidatePositions implements the keeper-driven liquidate_positions
// batch: per (user, asset, market) row, fetches an oracle price biased
// against the trader, validates it, and routes to PositionManager.Liquidate.
// A row that cannot be liquidated (no price, stale, out of reference bound,
// or a PositionManager error) is recorded as LiquidationError and skipped
// rather than aborting the batch.
func (e *Engine) LiquidatePositions(keeper crypto.Address, users []crypto.Address, assets []market.AssetID, markets []market.ID, payload oracle.UpdatePayload, now int64) error {
	if err := common.Guard(e.pauses, "processing"); err != nil {
		return err
	}
	if err := e.requireKeeper(keeper); err != nil {
		return err
	}
	if len(users) != len(assets) || len(assets) != len(markets) {
		return ErrMismatchedRows
	}
	if e.feed != nil && len(payload) > 0 {
		if _, err := e.feed.Update(payload); err != nil {
			return err
		}
	}

	for i, user := range users {
		asset, id := assets[i], markets[i]
		mkt, ok := e.registry.Market(id)
		if !ok {
			continue
		}
		isLong, _, hasPosition := e.positions.HasPosition(user, asset, id)
		if !hasPosition {
			continue
		}

		if e.isStale(mkt, now) {
			e.emitter.Emit(events.LiquidationError{User: user.String(), Asset: string(asset), Market: id.String(), Reason: "!stale"})
			continue
		}
		price, ok := e.getOraclePrice(mkt, !isLong)
		if !ok || price == nil || price.Sign() == 0 {
			e.emitter.Emit(events.LiquidationError{User: user.String(), Asset: string(asset), Market: id.String(), Reason: "!no-price"})
			continue
		}
		if e.refFeed != nil {
			ref := e.refFeed.Get(id)
			if !oracle.WithinReferenceBound(price, ref, mkt.MaxDeviationBps) {
				e.emitter.Emit(events.LiquidationError{User: user.String(), Asset: string(asset), Market: id.String(), Reason: "!reference-price-deviation"})
				continue
			}
		}

		if _, _, err := e.positions.Liquidate(user, asset, id, price, now, keeper); err != nil {
			e.emitter.Emit(events.LiquidationError{User: user.String(), Asset: string(asset), Market: id.String(), Reason: err.Error()})
		}
	}
	return nil
}

// ExecuteLiquidityOrders implements the keeper-driven execute_orders
// (liquidity) command, authenticating the keeper before delegating to the
// LiquidityPool.
func (e *Engine) ExecuteLiquidityOrders(keeper crypto.Address, ids []uint32, assets []market.AssetID, upls []*big.Int, now int64) error {
	if err := e.requireKeeper(keeper); err != nil {
		return err
	}
	return e.liquidity.ExecuteOrders(keeper, ids, assets, upls, now)
}

// SetGlobalUPLs implements the keeper-driven set_global_upls command,
// delegating to the LiquidityPool.
func (e *Engine) SetGlobalUPLs(keeper crypto.Address, assets []market.AssetID, upls []*big.Int, now int64) error {
	if err := e.requireKeeper(keeper); err != nil {
		return err
	}
	return e.liquidity.SetGlobalUPLs(assets, upls, now)
}
