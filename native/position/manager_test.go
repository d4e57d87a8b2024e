package position

import (
	"math/big"
	"testing"

	"perpengine/crypto"
	"perpengine/market"
	"perpengine/native/orderbook"
)

type stubOrderStore struct {
	orders map[uint32]orderbook.Order
	nextID uint32
}

func newStubOrderStore() *stubOrderStore {
	return &stubOrderStore{orders: make(map[uint32]orderbook.Order)}
}

func (s *stubOrderStore) put(o orderbook.Order) uint32 {
	s.nextID++
	o.ID = s.nextID
	s.orders[o.ID] = o
	return o.ID
}

func (s *stubOrderStore) Order(id uint32) (orderbook.Order, bool) {
	o, ok := s.orders[id]
	return o, ok
}

func (s *stubOrderStore) Remove(id uint32) { delete(s.orders, id) }

func (s *stubOrderStore) KeeperCancel(id uint32, reason string, feeReceiver crypto.Address) error {
	delete(s.orders, id)
	return nil
}

func (s *stubOrderStore) Insert(order orderbook.Order, now int64) uint32 {
	return s.put(order)
}

type stubPool struct{ losses, profits []*big.Int }

func (p *stubPool) CreditTraderLoss(crypto.Address, market.AssetID, market.ID, *big.Int, int64) {
	p.losses = append(p.losses, nil)
}
func (p *stubPool) DebitTraderProfit(crypto.Address, market.AssetID, market.ID, *big.Int, int64) error {
	p.profits = append(p.profits, nil)
	return nil
}
func (p *stubPool) CreditFeeToPool(market.AssetID, *big.Int)    {}
func (p *stubPool) CreditFeeReserve(market.AssetID, *big.Int)   {}

type stubFunding struct{}

func (stubFunding) Update(market.AssetID, market.ID, int64, uint64) (*big.Int, bool) {
	return big.NewInt(0), false
}
func (stubFunding) Projected(market.AssetID, market.ID, int64, uint64) *big.Int { return big.NewInt(0) }
func (stubFunding) Current(market.AssetID, market.ID) *big.Int                 { return big.NewInt(0) }

type stubRisk struct{}

func (stubRisk) CheckMaxOI(market.AssetID, market.ID, *big.Int) error         { return nil }
func (stubRisk) CheckPoolDrawdown(market.AssetID, *big.Int, int64) error { return nil }

type stubRefFeed struct{ price *big.Int }

func (f stubRefFeed) Get(market.ID) *big.Int { return f.price }

func addr(b byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = b
	return crypto.MustNewAddress(crypto.TraderPrefix, raw)
}

func newTestManager(t *testing.T) (*Manager, *stubOrderStore) {
	t.Helper()
	registry := market.NewRegistry()
	if err := registry.SetMarket(market.Market{
		ID: market.NewID("ETH-USD"), Name: "ETH-USD", MaxLeverage: 10,
		FeeBps: 10, LiqThresholdBps: 500, OracleMaxAgeSeconds: 60,
	}); err != nil {
		t.Fatalf("set market: %v", err)
	}
	if err := registry.SetAsset(market.Asset{ID: market.AssetNative, MinSize: "1"}); err != nil {
		t.Fatalf("set asset: %v", err)
	}
	mgr := New(nil, nil, nil, registry, 3600)
	store := newStubOrderStore()
	mgr.SetOrderStore(store)
	mgr.SetPool(&stubPool{})
	mgr.SetFundingTracker(stubFunding{})
	mgr.SetRiskValidator(stubRisk{})
	return mgr, store
}

func TestIncreasePositionAveragesEntryPrice(t *testing.T) {
	mgr, store := newTestManager(t)
	trader := addr(1)
	mkt := market.NewID("ETH-USD")

	id1 := store.put(orderbook.Order{User: trader, Asset: market.AssetNative, Market: mkt, IsLong: true, Margin: big.NewInt(100), Size: big.NewInt(100), Fee: big.NewInt(0)})
	if err := mgr.IncreasePosition(id1, big.NewInt(2_000), crypto.Address{}, 1_000); err != nil {
		t.Fatalf("increase 1: %v", err)
	}

	id2 := store.put(orderbook.Order{User: trader, Asset: market.AssetNative, Market: mkt, IsLong: true, Margin: big.NewInt(100), Size: big.NewInt(100), Fee: big.NewInt(0)})
	if err := mgr.IncreasePosition(id2, big.NewInt(2_200), crypto.Address{}, 1_000); err != nil {
		t.Fatalf("increase 2: %v", err)
	}

	pos, ok := mgr.Position(trader, market.AssetNative, mkt)
	if !ok {
		t.Fatalf("expected position to exist")
	}
	if pos.Size.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("unexpected size: %s", pos.Size)
	}
	if pos.AvgPrice.Cmp(big.NewInt(2_100)) != 0 {
		t.Fatalf("unexpected average entry price: %s", pos.AvgPrice)
	}
}

func TestAddMarginRejectsLeverageBelow1x(t *testing.T) {
	mgr, store := newTestManager(t)
	trader := addr(2)
	mkt := market.NewID("ETH-USD")

	id := store.put(orderbook.Order{User: trader, Asset: market.AssetNative, Market: mkt, IsLong: true, Margin: big.NewInt(100), Size: big.NewInt(100), Fee: big.NewInt(0)})
	if err := mgr.IncreasePosition(id, big.NewInt(2_000), crypto.Address{}, 1_000); err != nil {
		t.Fatalf("increase: %v", err)
	}

	if err := mgr.AddMargin(trader, market.AssetNative, mkt, big.NewInt(1), 1_000); err != ErrLeverage {
		t.Fatalf("expected ErrLeverage when margin would exceed size, got %v", err)
	}
}

func TestRemoveMarginRejectsWithoutReferencePrice(t *testing.T) {
	mgr, store := newTestManager(t)
	trader := addr(3)
	mkt := market.NewID("ETH-USD")

	id := store.put(orderbook.Order{User: trader, Asset: market.AssetNative, Market: mkt, IsLong: true, Margin: big.NewInt(1_000), Size: big.NewInt(2_000), Fee: big.NewInt(0)})
	if err := mgr.IncreasePosition(id, big.NewInt(2_000), crypto.Address{}, 1_000); err != nil {
		t.Fatalf("increase: %v", err)
	}

	if err := mgr.RemoveMargin(trader, market.AssetNative, mkt, big.NewInt(100), 1_000); err != ErrReferencePrice {
		t.Fatalf("expected ErrReferencePrice without a wired reference feed, got %v", err)
	}

	mgr.SetReferenceFeed(stubRefFeed{price: big.NewInt(2_000)})
	if err := mgr.RemoveMargin(trader, market.AssetNative, mkt, big.NewInt(100), 1_000); err != nil {
		t.Fatalf("expected remove_margin to succeed once a reference price is wired: %v", err)
	}
}

func TestDecreasePositionFullCloseAtProfitRemovesPositionAndOrder(t *testing.T) {
	mgr, store := newTestManager(t)
	trader := addr(4)
	mkt := market.NewID("ETH-USD")

	openID := store.put(orderbook.Order{User: trader, Asset: market.AssetNative, Market: mkt, IsLong: true, Margin: big.NewInt(1_000), Size: big.NewInt(2_000), Fee: big.NewInt(0)})
	if err := mgr.IncreasePosition(openID, big.NewInt(2_000), crypto.Address{}, 1_000); err != nil {
		t.Fatalf("increase: %v", err)
	}

	closeID := store.put(orderbook.Order{
		User: trader, Asset: market.AssetNative, Market: mkt, IsLong: false,
		Size: big.NewInt(2_000), Fee: big.NewInt(0),
		Detail: orderbook.Detail{ReduceOnly: true},
	})
	if err := mgr.DecreasePosition(closeID, big.NewInt(2_200), false, crypto.Address{}, 2_000); err != nil {
		t.Fatalf("decrease: %v", err)
	}

	if _, ok := mgr.Position(trader, market.AssetNative, mkt); ok {
		t.Fatalf("expected position to be fully closed")
	}
	if _, ok := store.Order(closeID); ok {
		t.Fatalf("expected close order to be removed")
	}
}

func TestDecreasePositionRejectsBeforeMinHoldTime(t *testing.T) {
	mgr, store := newTestManager(t)
	mgr.SetMinPositionHoldTime(3_600)
	trader := addr(5)
	mkt := market.NewID("ETH-USD")

	openID := store.put(orderbook.Order{User: trader, Asset: market.AssetNative, Market: mkt, IsLong: true, Margin: big.NewInt(1_000), Size: big.NewInt(2_000), Fee: big.NewInt(0)})
	if err := mgr.IncreasePosition(openID, big.NewInt(2_000), crypto.Address{}, 1_000); err != nil {
		t.Fatalf("increase: %v", err)
	}

	closeID := store.put(orderbook.Order{
		User: trader, Asset: market.AssetNative, Market: mkt, IsLong: false,
		Size: big.NewInt(2_000), Fee: big.NewInt(0),
		Detail: orderbook.Detail{ReduceOnly: true},
	})
	if err := mgr.DecreasePosition(closeID, big.NewInt(2_200), false, crypto.Address{}, 1_100); err != ErrMinHoldTime {
		t.Fatalf("expected ErrMinHoldTime, got %v", err)
	}
}

// TestLiquidateThresholdBoundary pins the exact boundary: at margin=1000,
// size=2000, avg_price=2000 and a 500bps liquidation threshold, the trigger
// is a loss of exactly 50 — price=1950 crosses it, price=1951 does not.
func TestLiquidateThresholdBoundary(t *testing.T) {
	mgr, store := newTestManager(t)
	trader := addr(6)
	mkt := market.NewID("ETH-USD")

	openID := store.put(orderbook.Order{User: trader, Asset: market.AssetNative, Market: mkt, IsLong: true, Margin: big.NewInt(1_000), Size: big.NewInt(2_000), Fee: big.NewInt(0)})
	if err := mgr.IncreasePosition(openID, big.NewInt(2_000), crypto.Address{}, 1_000); err != nil {
		t.Fatalf("increase: %v", err)
	}

	liquidated, _, err := mgr.Liquidate(trader, market.AssetNative, mkt, big.NewInt(1_951), 2_000, crypto.Address{})
	if err != nil {
		t.Fatalf("liquidate at 1951: %v", err)
	}
	if liquidated {
		t.Fatalf("expected position to survive one unit inside the threshold")
	}

	liquidated, _, err = mgr.Liquidate(trader, market.AssetNative, mkt, big.NewInt(1_950), 2_000, crypto.Address{})
	if err != nil {
		t.Fatalf("liquidate at 1950: %v", err)
	}
	if !liquidated {
		t.Fatalf("expected position to be liquidated exactly at the threshold")
	}
	if _, ok := mgr.Position(trader, market.AssetNative, mkt); ok {
		t.Fatalf("expected position to be removed after liquidation")
	}
}
