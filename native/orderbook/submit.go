package orderbook

import (
	"errors"
	"fmt"
	"math/big"

	"perpengine/core/events"
	"perpengine/crypto"
	"perpengine/fixedpoint"
	"perpengine/market"
	"perpengine/native/common"
)

// ErrApprovalRequired is returned by Submit when the sender is not yet in
// approved_accounts and did not supply a valid signature over the
// configured approval message.
var ErrApprovalRequired = errors.New("orderbook: approval signature required")

// Submission is the caller-facing request bundling the spec's
// submit_order(Order, tp, sl, trailing_bps, referral, signature?) inputs.
type Submission struct {
	Order           Order
	TPPrice         *big.Int
	SLPrice         *big.Int
	TrailingStopBps uint64
	ReferralCode    uint64
	Signature       []byte
	MsgValue        *big.Int
}

// Result reports the ids created by a single Submit call: the main order
// plus up to two auxiliary reduce-only orders (stop-loss/trailing-stop and
// take-profit).
type Result struct {
	MainID uint32
	SLID   uint32 // 0 if absent
	TPID   uint32 // 0 if absent
	Refund *big.Int
}

// Submit implements the spec's submit_order command end to end: approval
// gating, user resolution, core invariant checks, TP/SL/trailing-stop
// synthesis and cross-linking, and native-asset fee accounting.
func (b *Book) Submit(sender crypto.Address, sub Submission, now int64) (Result, error) {
	if err := common.Guard(b.pauses, "orders"); err != nil {
		return Result{}, err
	}

	if !b.approvedAccounts[sender.Key()] {
		if len(sub.Signature) == 0 || len(b.approvalMessage) == 0 {
			return Result{}, ErrApprovalRequired
		}
		hash := crypto.HashApprovalMessage(b.approvalMessage)
		signer, err := crypto.RecoverApprovalSigner(hash, sub.Signature)
		if err != nil || !signer.Equal(sender) {
			return Result{}, ErrApprovalRequired
		}
		b.approvedAccounts[sender.Key()] = true
	}

	order := sub.Order
	hasTP := sub.TPPrice != nil && sub.TPPrice.Sign() > 0
	hasSL := sub.SLPrice != nil && sub.SLPrice.Sign() > 0
	hasTS := sub.TrailingStopBps > 0
	if hasTP || hasSL || hasTS {
		order.Detail.ReduceOnly = false
	}

	needsOpposite := hasTS || order.Detail.ReduceOnly
	if needsOpposite {
		if b.positions == nil {
			return Result{}, fmt.Errorf("%w: no open position", ErrInvalidInput)
		}
		isLong, size, ok := b.positions.HasPosition(sender, order.Asset, order.Market)
		if !ok || size == nil || size.Sign() == 0 {
			return Result{}, fmt.Errorf("%w: no open position", ErrInvalidInput)
		}
		if isLong == order.IsLong {
			return Result{}, fmt.Errorf("%w: reduce-only order must be opposite the existing position's direction", ErrInvalidInput)
		}
	}
	if hasTS {
		order.Detail.TriggerPrice = big.NewInt(0)
	}

	// Resolve user.
	user := sender
	if b.fundingAccounts[sender.Key()] {
		if !order.User.IsZero() {
			if order.Detail.ReduceOnly || order.Detail.Kind != market.KindMarket {
				return Result{}, fmt.Errorf("%w: funding-account order must be non-reduce-only market", ErrInvalidInput)
			}
			user = order.User
		}
	}
	order.User = user
	if !user.Equal(sender) {
		order.Detail.CancelOnExecuteID = 0
	}

	mainOrder, err := b.submitOne(order, now)
	if err != nil {
		return Result{}, err
	}

	if sub.ReferralCode != 0 && b.referrals != nil {
		if code, _ := b.referrals.Info(user); code == 0 {
			b.referrals.Set(user, sub.ReferralCode, crypto.Address{})
		}
	}

	result := Result{MainID: mainOrder.ID}
	totalExecFee := new(big.Int).Set(zeroIfNil(mainOrder.Detail.ExecutionFee))
	var valueConsumed *big.Int
	if mainOrder.Asset == market.AssetNative {
		valueConsumed = new(big.Int).Add(mainOrder.Margin, mainOrder.Fee)
	} else {
		valueConsumed = big.NewInt(0)
	}

	auxIsLong := !mainOrder.IsLong
	var slID, tpID uint32

	if hasSL || hasTS {
		kind := market.KindStop
		trigger := sub.SLPrice
		trailingBps := uint64(0)
		if hasTS {
			kind = market.KindTrailingStop
			trigger = big.NewInt(0)
			trailingBps = sub.TrailingStopBps
		}
		if err := validateTPSLOrdering(mainOrder.IsLong, sub.TPPrice, trigger, mainOrder.Detail.TriggerPrice); err != nil {
			return Result{}, err
		}
		aux := Order{
			User:   user,
			Asset:  mainOrder.Asset,
			Market: mainOrder.Market,
			IsLong: auxIsLong,
			Margin: big.NewInt(0),
			Size:   mainOrder.Size,
			Detail: Detail{
				Kind:            kind,
				ReduceOnly:      true,
				TriggerPrice:    trigger,
				Expiry:          0,
				ExecutionFee:    mainOrder.Detail.ExecutionFee,
				TrailingStopBps: trailingBps,
			},
		}
		created, err := b.submitOne(aux, now)
		if err != nil {
			return Result{}, err
		}
		slID = created.ID
		totalExecFee.Add(totalExecFee, zeroIfNil(created.Detail.ExecutionFee))
		if created.Asset == market.AssetNative {
			valueConsumed.Add(valueConsumed, created.Margin)
		}
	}

	if hasTP {
		if err := validateTPSLOrdering(mainOrder.IsLong, sub.TPPrice, nil, mainOrder.Detail.TriggerPrice); err != nil {
			return Result{}, err
		}
		aux := Order{
			User:   user,
			Asset:  mainOrder.Asset,
			Market: mainOrder.Market,
			IsLong: auxIsLong,
			Margin: big.NewInt(0),
			Size:   mainOrder.Size,
			Detail: Detail{
				Kind:         market.KindLimit,
				ReduceOnly:   true,
				TriggerPrice: sub.TPPrice,
				Expiry:       0,
				ExecutionFee: mainOrder.Detail.ExecutionFee,
			},
		}
		created, err := b.submitOne(aux, now)
		if err != nil {
			return Result{}, err
		}
		tpID = created.ID
		totalExecFee.Add(totalExecFee, zeroIfNil(created.Detail.ExecutionFee))
		if created.Asset == market.AssetNative {
			valueConsumed.Add(valueConsumed, created.Margin)
		}
	}

	if slID != 0 && tpID != 0 {
		b.crossLink(slID, tpID)
	}

	result.SLID = slID
	result.TPID = tpID

	requiredNative := new(big.Int).Add(valueConsumed, totalExecFee)
	if mainOrder.Asset != market.AssetNative {
		requiredNative = totalExecFee
	}
	msgValue := sub.MsgValue
	if msgValue == nil {
		msgValue = big.NewInt(0)
	}
	if msgValue.Cmp(requiredNative) < 0 {
		return Result{}, fmt.Errorf("%w: insufficient native value for fees/margin", ErrInvalidInput)
	}
	result.Refund = new(big.Int).Sub(msgValue, requiredNative)
	return result, nil
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

// crossLink sets each order's CancelOnExecuteID to the other's id, wiring
// OCO cancellation between a TP and its paired SL/trailing-stop.
func (b *Book) crossLink(slID, tpID uint32) {
	if sl, ok := b.orders[slID]; ok {
		sl.Detail.CancelOnExecuteID = tpID
	}
	if tp, ok := b.orders[tpID]; ok {
		tp.Detail.CancelOnExecuteID = slID
	}
}

// validateTPSLOrdering enforces: for a long, tp > trigger > sl; for a
// short, the reverse; tp and sl must each be internally consistent with the
// main order's trigger (or, for a protected market order, with zero).
func validateTPSLOrdering(isLong bool, tp, sl, mainTrigger *big.Int) error {
	ref := mainTrigger
	if ref == nil || ref.Sign() == 0 {
		ref = nil
	}
	if isLong {
		if tp != nil && tp.Sign() > 0 && ref != nil && tp.Cmp(ref) <= 0 {
			return fmt.Errorf("%w: tp must exceed trigger for a long", ErrInvalidInput)
		}
		if sl != nil && sl.Sign() > 0 && ref != nil && sl.Cmp(ref) >= 0 {
			return fmt.Errorf("%w: sl must be below trigger for a long", ErrInvalidInput)
		}
		if tp != nil && tp.Sign() > 0 && sl != nil && sl.Sign() > 0 && tp.Cmp(sl) <= 0 {
			return fmt.Errorf("%w: tp must exceed sl", ErrInvalidInput)
		}
	} else {
		if tp != nil && tp.Sign() > 0 && ref != nil && tp.Cmp(ref) >= 0 {
			return fmt.Errorf("%w: tp must be below trigger for a short", ErrInvalidInput)
		}
		if sl != nil && sl.Sign() > 0 && ref != nil && sl.Cmp(ref) <= 0 {
			return fmt.Errorf("%w: sl must exceed trigger for a short", ErrInvalidInput)
		}
		if tp != nil && tp.Sign() > 0 && sl != nil && sl.Sign() > 0 && tp.Cmp(sl) >= 0 {
			return fmt.Errorf("%w: tp must be below sl", ErrInvalidInput)
		}
	}
	return nil
}

// submitOne implements _submit(order): the core per-order invariant checks,
// fee computation, fund pulling, id assignment, and indexing.
func (b *Book) submitOne(order Order, now int64) (*Order, error) {
	if !order.Detail.Kind.Valid() {
		return nil, fmt.Errorf("%w: invalid order kind", ErrInvalidInput)
	}
	switch order.Detail.Kind {
	case market.KindLimit, market.KindStop:
		if order.Detail.TriggerPrice == nil || order.Detail.TriggerPrice.Sign() <= 0 {
			return nil, fmt.Errorf("%w: trigger_price must be positive", ErrInvalidInput)
		}
	case market.KindTrailingStop:
		if order.Detail.TrailingStopBps == 0 || order.Detail.TrailingStopBps > 2000 {
			return nil, fmt.Errorf("%w: trailing_stop_bps must be in (0,2000]", ErrInvalidInput)
		}
		if !order.Detail.ReduceOnly {
			return nil, fmt.Errorf("%w: trailing-stop must be reduce-only", ErrInvalidInput)
		}
	}

	asset, ok := b.registry.Asset(order.Asset)
	if !ok {
		return nil, ErrAssetNotSupported
	}
	mkt, ok := b.registry.Market(order.Market)
	if !ok {
		return nil, ErrMarketNotFound
	}

	if !order.Detail.ReduceOnly {
		if mkt.IsReduceOnly {
			return nil, fmt.Errorf("%w: market is reduce-only", ErrInvalidInput)
		}
		if order.Size == nil || order.Size.Cmp(asset.MinSizeInt()) < 0 {
			return nil, fmt.Errorf("%w: size below asset minimum", ErrInvalidInput)
		}
		if order.Margin == nil || order.Margin.Sign() <= 0 {
			return nil, fmt.Errorf("%w: margin must be positive", ErrInvalidInput)
		}
		if order.Size.Cmp(order.Margin) < 0 {
			return nil, fmt.Errorf("%w: leverage below 1x", ErrInvalidInput)
		}
		maxLev := new(big.Int).SetUint64(mkt.MaxLeverage)
		if order.Size.Cmp(new(big.Int).Mul(order.Margin, maxLev)) > 0 {
			return nil, fmt.Errorf("%w: leverage exceeds market max", ErrInvalidInput)
		}
	}

	ttlCap := b.maxTriggerOrderTTL
	if order.Detail.Kind == market.KindMarket {
		ttlCap = b.maxMarketOrderTTL
	}
	if order.Detail.Expiry != 0 {
		if order.Detail.Expiry < now || order.Detail.Expiry > now+ttlCap {
			return nil, fmt.Errorf("%w: expiry out of bounds", ErrInvalidInput)
		}
	}

	if order.Detail.CancelOnExecuteID != 0 {
		sibling, ok := b.orders[order.Detail.CancelOnExecuteID]
		if !ok || !sibling.User.Equal(order.User) {
			return nil, fmt.Errorf("%w: cancel_on_execute_id must reference caller's own order", ErrInvalidInput)
		}
	}

	order.Timestamp = now
	if order.Size == nil {
		order.Size = big.NewInt(0)
	}
	order.Fee = fixedpoint.MulDivBps(order.Size, mkt.FeeBps)

	if order.Detail.ReduceOnly {
		order.Margin = big.NewInt(0)
	} else {
		if b.risk != nil {
			if err := b.risk.CheckMaxOI(order.Asset, order.Market, order.Size); err != nil {
				return nil, err
			}
		}
		toPull := new(big.Int).Add(order.Margin, order.Fee)
		if b.ledger != nil {
			if err := b.ledger.TransferIn(order.Asset, order.User, toPull); err != nil {
				return nil, err
			}
		}
	}

	b.nextOrderID++
	order.ID = b.nextOrderID
	stored := order
	b.orders[stored.ID] = &stored
	b.index(&stored)

	b.emitter.Emit(events.OrderCreated{
		OrderID: stored.ID,
		User:    stored.User.String(),
		Asset:   string(stored.Asset),
		Market:  stored.Market.String(),
		IsLong:  stored.IsLong,
		Kind:    uint8(stored.Detail.Kind),
		Size:    stored.Size,
		Margin:  stored.Margin,
		Fee:     stored.Fee,
	})

	return &stored, nil
}
