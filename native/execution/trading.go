package execution

import (
	"math/big"

	"perpengine/core/events"
	"perpengine/crypto"
	"perpengine/fixedpoint"
	"perpengine/market"
	"perpengine/native/common"
	"perpengine/oracle"
)

// ExecuteOrders implements the keeper-driven execute_orders (trading)
// batch: pays the oracle update fee and applies the payload, then attempts
// each order id in the given order, cancelling on a hard failure and
// leaving the order in place on a transient non-match.
//
// trailingRefs optionally supplies a keeper-quoted trailing-stop reference
// price per order id, since the oracle feed carries no notion of a rolling
// extremum on its own; an id absent from the map defaults to 0
// ("!ts-no-ref-price", matching the batch entry point's spec default).
func (e *Engine) ExecuteOrders(keeper crypto.Address, ids []uint32, payload oracle.UpdatePayload, feePaid *big.Int, trailingRefs map[uint32]*big.Int, now int64) error {
	if err := common.Guard(e.pauses, "processing"); err != nil {
		return err
	}
	if err := e.requireKeeper(keeper); err != nil {
		return err
	}

	consumed := big.NewInt(0)
	if e.feed != nil {
		c, err := e.feed.Update(payload)
		if err != nil {
			return err
		}
		if c != nil {
			consumed = c
		}
	}
	if feePaid != nil && feePaid.Sign() > 0 && e.ledger != nil {
		if err := e.ledger.TransferIn(market.AssetNative, keeper, feePaid); err != nil {
			return err
		}
		refund := new(big.Int).Sub(feePaid, consumed)
		if refund.Sign() > 0 {
			if err := e.ledger.TransferOut(market.AssetNative, keeper, refund); err != nil {
				return err
			}
		}
	}

	for _, id := range ids {
		order, ok := e.orders.Order(id)
		if !ok {
			continue
		}
		mkt, ok := e.registry.Market(order.Market)
		if !ok {
			continue
		}
		if now-order.Timestamp < mkt.MinOrderAgeSeconds {
			continue // "!early": not yet eligible, do not cancel
		}
		if e.isStale(mkt, now) {
			continue // "!stale"
		}
		price, _ := e.getOraclePrice(mkt, order.IsLong)

		var trailingRef *big.Int
		if trailingRefs != nil {
			trailingRef = trailingRefs[id]
		}
		if trailingRef == nil {
			trailingRef = big.NewInt(0)
		}

		ok2, reason := e.executeOrder(id, price, trailingRef, keeper, now)
		if !ok2 {
			e.orders.KeeperCancel(id, reason, keeper)
			continue
		}
		if reason != "" {
			continue // transient non-match, order kept
		}
		e.emitter.Emit(events.OrderExecuted{OrderID: id, Keeper: keeper.String(), Price: price})
	}
	return nil
}

// executeOrder implements _execute_order(id, price, trailing_ref, keeper):
// returns (false, reason) when the order should be cancelled, (true,
// non-empty reason) when it should be left in place, and (true, "") on a
// successful route to PositionManager.
func (e *Engine) executeOrder(id uint32, price, trailingRef *big.Int, keeper crypto.Address, now int64) (bool, string) {
	order, ok := e.orders.Order(id)
	if !ok {
		return false, "!order"
	}
	if order.Detail.Expiry > 0 && order.Detail.Expiry <= now {
		return false, "!expired"
	}

	ttl := now - order.Timestamp
	if order.Detail.Kind == market.KindMarket {
		if ttlCap := e.orders.MaxMarketOrderTTL(); ttlCap > 0 && ttl > ttlCap {
			return false, "!too-old"
		}
	} else if ttlCap := e.orders.MaxTriggerOrderTTL(); ttlCap > 0 && ttl > ttlCap {
		return false, "!too-old"
	}

	if price == nil || price.Sign() == 0 {
		return false, "!no-price"
	}

	mkt, ok := e.registry.Market(order.Market)
	if !ok {
		return false, "!order"
	}
	if e.refFeed != nil {
		ref := e.refFeed.Get(order.Market)
		if !oracle.WithinReferenceBound(price, ref, mkt.MaxDeviationBps) {
			return true, "!reference-price-deviation"
		}
	}

	isTrailingStop := false
	switch order.Detail.Kind {
	case market.KindTrailingStop:
		isTrailingStop = true
		if order.Detail.TrailingStopBps == 0 {
			return false, "!no-trailing-stop-percentage"
		}
		if trailingRef == nil || trailingRef.Sign() <= 0 {
			return true, "!ts-no-ref-price"
		}
		bps := new(big.Int).SetUint64(order.Detail.TrailingStopBps)
		bpsDivisor := big.NewInt(fixedpoint.BPS)
		if order.IsLong {
			threshold := new(big.Int).Add(bpsDivisor, bps)
			threshold.Mul(threshold, trailingRef)
			threshold.Div(threshold, bpsDivisor)
			if price.Cmp(threshold) < 0 {
				return true, "!no-trailing-stop-execution"
			}
		} else {
			threshold := new(big.Int).Sub(bpsDivisor, bps)
			threshold.Mul(threshold, trailingRef)
			threshold.Div(threshold, bpsDivisor)
			if price.Cmp(threshold) > 0 {
				return true, "!no-trailing-stop-execution"
			}
		}
	case market.KindLimit:
		trigger := order.Detail.TriggerPrice
		if order.IsLong {
			if trigger == nil || price.Cmp(trigger) > 0 {
				return true, "!no-match"
			}
		} else {
			if trigger == nil || price.Cmp(trigger) < 0 {
				return true, "!no-match"
			}
		}
	case market.KindStop:
		trigger := order.Detail.TriggerPrice
		if order.IsLong {
			if trigger == nil || price.Cmp(trigger) < 0 {
				return true, "!no-match"
			}
		} else {
			if trigger == nil || price.Cmp(trigger) > 0 {
				return true, "!no-match"
			}
		}
	default: // KindMarket, possibly "protected" with a trigger price set
		if order.Detail.TriggerPrice != nil && order.Detail.TriggerPrice.Sign() > 0 {
			trigger := order.Detail.TriggerPrice
			worse := (order.IsLong && price.Cmp(trigger) > 0) || (!order.IsLong && price.Cmp(trigger) < 0)
			if worse {
				return false, "!protected"
			}
		}
	}

	if order.Detail.CancelOnExecuteID > 0 {
		if err := e.orders.KeeperCancel(order.Detail.CancelOnExecuteID, "!oco", keeper); err != nil {
			return false, err.Error()
		}
	}

	isLong, size, hasPosition := e.positions.HasPosition(order.User, order.Asset, order.Market)
	switch {
	case !order.Detail.ReduceOnly && (!hasPosition || isLong == order.IsLong):
		if err := e.positions.IncreasePosition(id, price, keeper, now); err != nil {
			return false, err.Error()
		}
	case hasPosition && isLong != order.IsLong && size != nil && size.Sign() > 0:
		if err := e.positions.DecreasePosition(id, price, isTrailingStop, keeper, now); err != nil {
			return false, err.Error()
		}
		if isTrailingStop {
			e.emitter.Emit(events.TrailingStopOrderExecuted{OrderID: id, RefPrice: trailingRef, Price: price})
		}
	default:
		return false, "!reduce"
	}
	return true, ""
}
