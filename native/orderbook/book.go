package orderbook

import (
	"math/big"

	"perpengine/core/events"
	"perpengine/crypto"
	"perpengine/ledger"
	"perpengine/market"
	"perpengine/native/common"
)

// PositionProvider exposes whether user already holds an open position on
// (asset, market), consulted by Submit's reduce-only/trailing-stop gating
// and by the TP/SL price-ordering validation. PositionManager (C6)
// implements it.
type PositionProvider interface {
	HasPosition(user crypto.Address, asset market.AssetID, id market.ID) (isLong bool, size *big.Int, ok bool)
}

// RiskValidator is the subset of the RiskValidator capability (C8) the book
// consults before pulling margin+fee for a non-reduce-only order.
type RiskValidator interface {
	CheckMaxOI(asset market.AssetID, id market.ID, size *big.Int) error
}

// ReferralDirectory is the subset of the referral capability the book
// consults when a submission carries a referral code.
type ReferralDirectory interface {
	Info(user crypto.Address) (code uint64, referrer crypto.Address)
	Set(user crypto.Address, code uint64, referrer crypto.Address)
}

// Book is the OrderBook component.
type Book struct {
	ledger    ledger.Ledger
	emitter   events.Emitter
	pauses    common.PauseView
	registry  *market.Registry
	positions PositionProvider
	risk      RiskValidator
	referrals ReferralDirectory

	approvedAccounts map[string]bool
	fundingAccounts  map[string]bool
	approvalMessage  []byte

	maxMarketOrderTTL  int64
	maxTriggerOrderTTL int64

	nextOrderID uint32
	orders      map[uint32]*Order
	userOrders  map[string]*idSet
	marketIDs   map[orderIndexKey]*idSet
	triggerIDs  map[orderIndexKey]*idSet
}

type orderIndexKey struct {
	asset market.AssetID
	id    market.ID
}

// New constructs a Book. positions/risk may be nil at construction time and
// resolved later via SetPositionProvider/SetRiskValidator.
func New(lg ledger.Ledger, emitter events.Emitter, pauses common.PauseView, registry *market.Registry, maxMarketOrderTTL, maxTriggerOrderTTL int64) *Book {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Book{
		ledger:             lg,
		emitter:            emitter,
		pauses:             pauses,
		registry:           registry,
		approvedAccounts:   make(map[string]bool),
		fundingAccounts:    make(map[string]bool),
		maxMarketOrderTTL:  maxMarketOrderTTL,
		maxTriggerOrderTTL: maxTriggerOrderTTL,
		orders:             make(map[uint32]*Order),
		userOrders:         make(map[string]*idSet),
		marketIDs:          make(map[orderIndexKey]*idSet),
		triggerIDs:         make(map[orderIndexKey]*idSet),
	}
}

// SetPositionProvider resolves the cyclic OrderBook<->PositionManager
// reference once both components exist.
func (b *Book) SetPositionProvider(p PositionProvider) { b.positions = p }

// SetRiskValidator resolves the cyclic OrderBook<->RiskValidator reference.
func (b *Book) SetRiskValidator(r RiskValidator) { b.risk = r }

// SetReferralDirectory wires the optional ReferralDirectory collaborator.
func (b *Book) SetReferralDirectory(d ReferralDirectory) { b.referrals = d }

// SetApprovalMessage configures the canonical message a new sender must sign
// the first time they submit an order.
func (b *Book) SetApprovalMessage(msg []byte) {
	b.approvalMessage = append([]byte(nil), msg...)
}

// SetFundingAccount marks addr as a whitelisted funding account permitted to
// submit orders on another user's behalf ("whitelisted_funding_account").
func (b *Book) SetFundingAccount(addr crypto.Address, whitelisted bool) {
	if whitelisted {
		b.fundingAccounts[addr.Key()] = true
	} else {
		delete(b.fundingAccounts, addr.Key())
	}
}

// SetApprovedAccount pre-approves addr so its first submission skips the
// signature-over-approval-message gate; part of the "whitelists" governance
// surface.
func (b *Book) SetApprovedAccount(addr crypto.Address, approved bool) {
	if approved {
		b.approvedAccounts[addr.Key()] = true
	} else {
		delete(b.approvedAccounts, addr.Key())
	}
}

// SetMaxMarketOrderTTL implements "set_max_market_order_ttl".
func (b *Book) SetMaxMarketOrderTTL(seconds int64) { b.maxMarketOrderTTL = seconds }

// SetMaxTriggerOrderTTL implements "set_max_trigger_order_ttl".
func (b *Book) SetMaxTriggerOrderTTL(seconds int64) { b.maxTriggerOrderTTL = seconds }

// MaxMarketOrderTTL returns the configured market-order TTL cap, consulted
// by the ExecutionEngine's "!too-old" check.
func (b *Book) MaxMarketOrderTTL() int64 { return b.maxMarketOrderTTL }

// MaxTriggerOrderTTL returns the configured trigger-order TTL cap.
func (b *Book) MaxTriggerOrderTTL() int64 { return b.maxTriggerOrderTTL }

// Order returns a defensive copy of the order and whether it exists.
func (b *Book) Order(id uint32) (Order, bool) {
	o, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	return o.Clone(), true
}

// UserOrders returns the ids of user's open orders. They are in submission
// order until one of the user's orders is removed; each removal moves the
// most recent id into the removed id's place.
func (b *Book) UserOrders(user crypto.Address) []uint32 {
	set, ok := b.userOrders[user.Key()]
	if !ok {
		return nil
	}
	return set.ids()
}

// MarketOrderIDs returns the ids of open, non-trigger (kind=Market with no
// trigger) orders indexed under (asset, market).
func (b *Book) MarketOrderIDs(asset market.AssetID, id market.ID) []uint32 {
	set, ok := b.marketIDs[orderIndexKey{asset, id}]
	if !ok {
		return nil
	}
	return set.ids()
}

// TriggerOrderIDs returns the ids of open trigger (limit/stop/trailing-stop,
// or protected market) orders indexed under (asset, market).
func (b *Book) TriggerOrderIDs(asset market.AssetID, id market.ID) []uint32 {
	set, ok := b.triggerIDs[orderIndexKey{asset, id}]
	if !ok {
		return nil
	}
	return set.ids()
}

func isTrigger(o *Order) bool {
	return o.Detail.Kind != market.KindMarket || (o.Detail.TriggerPrice != nil && o.Detail.TriggerPrice.Sign() > 0)
}

func (b *Book) index(o *Order) {
	us, ok := b.userOrders[o.User.Key()]
	if !ok {
		us = newIDSet()
		b.userOrders[o.User.Key()] = us
	}
	us.add(o.ID)

	key := orderIndexKey{o.Asset, o.Market}
	if isTrigger(o) {
		set, ok := b.triggerIDs[key]
		if !ok {
			set = newIDSet()
			b.triggerIDs[key] = set
		}
		set.add(o.ID)
	} else {
		set, ok := b.marketIDs[key]
		if !ok {
			set = newIDSet()
			b.marketIDs[key] = set
		}
		set.add(o.ID)
	}
}

func (b *Book) deindex(o *Order) {
	if us, ok := b.userOrders[o.User.Key()]; ok {
		us.remove(o.ID)
	}
	key := orderIndexKey{o.Asset, o.Market}
	if isTrigger(o) {
		if set, ok := b.triggerIDs[key]; ok {
			set.remove(o.ID)
		}
	} else {
		if set, ok := b.marketIDs[key]; ok {
			set.remove(o.ID)
		}
	}
}

// Insert adopts an already-funded order directly into the book, assigning
// it the next id and indexing it, without running Submit's fee-pull or
// invariant checks. Used by PositionManager to carve out the opposite-side
// remainder of a direction-flipping decrease_position.
func (b *Book) Insert(order Order, now int64) uint32 {
	b.nextOrderID++
	order.ID = b.nextOrderID
	order.Timestamp = now
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
	return stored.ID
}

// Remove deletes id from the book's storage and indexes. It is called
// exactly once per order, by execution, cancellation, or expiry-driven
// cancellation, per the spec's ownership/lifecycle rule.
func (b *Book) Remove(id uint32) {
	o, ok := b.orders[id]
	if !ok {
		return
	}
	b.deindex(o)
	delete(b.orders, id)
}
