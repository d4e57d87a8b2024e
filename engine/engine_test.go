package engine

import (
	"math/big"
	"testing"
	"time"

	"perpengine/crypto"
	"perpengine/fixedpoint"
	"perpengine/ledger"
	"perpengine/market"
	"perpengine/native/liquidity"
	"perpengine/native/orderbook"
	"perpengine/oracle"
)

func addr(b byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = b
	return crypto.MustNewAddress(crypto.TraderPrefix, raw)
}

func newTestEngine(t *testing.T) (*Engine, *ledger.InMemory, *oracle.StaticFeed, market.ID) {
	t.Helper()
	cfg := Config{
		Markets: []market.MarketConfig{{
			Name: "ETH-USD", MaxLeverage: 10, FeeBps: 10, LiqThresholdBps: 500,
			OracleMaxAgeSeconds: 3_600,
		}},
		Assets:                      []market.AssetConfig{{ID: "A0"}},
		FundingIntervalSeconds:      3_600,
		MaxMarketOrderTTLSeconds:    300,
		MaxTriggerOrderTTLSeconds:   2_592_000,
		BufferPayoutPeriodSeconds:   86_400,
		MaxLiquidityOrderTTLSeconds: 86_400,
	}
	lg := ledger.NewInMemory()
	eng, err := New(cfg, lg, nil, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	feed := oracle.NewStaticFeed()
	eng.SetFeed(feed)
	eng.SetReferenceFeed(feed)
	return eng, lg, feed, market.NewID("ETH-USD")
}

func TestEngineOpenAndCloseRoundTrip(t *testing.T) {
	eng, lg, feed, mkt := newTestEngine(t)
	now := int64(1_000)

	trader, lp, keeper := addr(1), addr(2), addr(9)
	eng.SetWhitelistedKeeper(keeper, true)
	eng.SetApprovedAccount(trader, true)
	eng.SetApprovedAccount(lp, true)

	lpDeposit := new(big.Int).Mul(big.NewInt(10_000), fixedpoint.Unit)
	margin := new(big.Int).Mul(big.NewInt(100), fixedpoint.Unit)
	size := new(big.Int).Mul(big.NewInt(300), fixedpoint.Unit)
	lg.Credit(market.AssetNative, lp, lpDeposit)
	lg.Credit(market.AssetNative, trader, new(big.Int).Mul(big.NewInt(2), margin))

	lpOrderID, err := eng.DepositRequest(lp, liquidity.Request{
		User: lp, Asset: market.AssetNative, Amount: lpDeposit, MinAmountAfterTax: big.NewInt(0),
	}, now)
	if err != nil {
		t.Fatalf("lp deposit request: %v", err)
	}
	if err := eng.ExecuteLiquidityOrders(keeper, []uint32{lpOrderID}, nil, nil, now); err != nil {
		t.Fatalf("execute lp deposit: %v", err)
	}

	feed.Set(mkt, big.NewInt(2_000), big.NewInt(0), 0, time.Unix(now, 0))
	feed.SetReference(mkt, new(big.Int).Mul(big.NewInt(2_000), fixedpoint.Unit))

	openResult, err := eng.SubmitOrder(trader, orderbook.Submission{
		Order: orderbook.Order{
			User: trader, Asset: market.AssetNative, Market: mkt, IsLong: true,
			Margin: margin, Size: size,
		},
		MsgValue: new(big.Int).Mul(big.NewInt(2), margin),
	}, now)
	if err != nil {
		t.Fatalf("submit open order: %v", err)
	}
	if err := eng.ExecuteOrders(keeper, []uint32{openResult.MainID}, nil, big.NewInt(0), nil, now); err != nil {
		t.Fatalf("execute open order: %v", err)
	}
	pos, ok := eng.Positions.Position(trader, market.AssetNative, mkt)
	if !ok {
		t.Fatalf("expected position to be opened")
	}
	if pos.Size.Cmp(size) != 0 {
		t.Fatalf("unexpected position size: %s", pos.Size)
	}

	laterNow := now + 60
	feed.Set(mkt, big.NewInt(2_050), big.NewInt(0), 0, time.Unix(laterNow, 0))
	feed.SetReference(mkt, new(big.Int).Mul(big.NewInt(2_050), fixedpoint.Unit))

	closeResult, err := eng.SubmitOrder(trader, orderbook.Submission{
		Order: orderbook.Order{
			User: trader, Asset: market.AssetNative, Market: mkt, IsLong: false,
			Size: size, Detail: orderbook.Detail{ReduceOnly: true},
		},
	}, laterNow)
	if err != nil {
		t.Fatalf("submit close order: %v", err)
	}
	if err := eng.ExecuteOrders(keeper, []uint32{closeResult.MainID}, nil, big.NewInt(0), nil, laterNow); err != nil {
		t.Fatalf("execute close order: %v", err)
	}
	if _, ok := eng.Positions.Position(trader, market.AssetNative, mkt); ok {
		t.Fatalf("expected position fully closed")
	}
	if balance := lg.Balance(market.AssetNative, trader); balance.Sign() <= 0 {
		t.Fatalf("expected trader to recover margin and profit, got %s", balance)
	}
}

func TestEngineOCOTakeProfitCancelsStopLoss(t *testing.T) {
	eng, lg, feed, mkt := newTestEngine(t)
	now := int64(1_000)

	trader, lp, keeper := addr(3), addr(4), addr(9)
	eng.SetWhitelistedKeeper(keeper, true)
	eng.SetApprovedAccount(trader, true)
	eng.SetApprovedAccount(lp, true)

	lpDeposit := new(big.Int).Mul(big.NewInt(10_000), fixedpoint.Unit)
	margin := new(big.Int).Mul(big.NewInt(100), fixedpoint.Unit)
	size := new(big.Int).Mul(big.NewInt(300), fixedpoint.Unit)
	lg.Credit(market.AssetNative, lp, lpDeposit)
	lg.Credit(market.AssetNative, trader, new(big.Int).Mul(big.NewInt(3), margin))

	lpOrderID, err := eng.DepositRequest(lp, liquidity.Request{
		User: lp, Asset: market.AssetNative, Amount: lpDeposit, MinAmountAfterTax: big.NewInt(0),
	}, now)
	if err != nil {
		t.Fatalf("lp deposit request: %v", err)
	}
	if err := eng.ExecuteLiquidityOrders(keeper, []uint32{lpOrderID}, nil, nil, now); err != nil {
		t.Fatalf("execute lp deposit: %v", err)
	}

	feed.Set(mkt, big.NewInt(2_000), big.NewInt(0), 0, time.Unix(now, 0))
	feed.SetReference(mkt, new(big.Int).Mul(big.NewInt(2_000), fixedpoint.Unit))

	openResult, err := eng.SubmitOrder(trader, orderbook.Submission{
		Order: orderbook.Order{
			User: trader, Asset: market.AssetNative, Market: mkt, IsLong: true,
			Margin: margin, Size: size,
		},
		MsgValue: new(big.Int).Mul(big.NewInt(2), margin),
	}, now)
	if err != nil {
		t.Fatalf("submit open order: %v", err)
	}
	if err := eng.ExecuteOrders(keeper, []uint32{openResult.MainID}, nil, big.NewInt(0), nil, now); err != nil {
		t.Fatalf("execute open order: %v", err)
	}

	ocoResult, err := eng.SubmitOrder(trader, orderbook.Submission{
		Order: orderbook.Order{
			User: trader, Asset: market.AssetNative, Market: mkt, IsLong: false,
			Size: size, Detail: orderbook.Detail{ReduceOnly: true},
		},
		TPPrice:  new(big.Int).Mul(big.NewInt(2_100), fixedpoint.Unit),
		SLPrice:  new(big.Int).Mul(big.NewInt(1_900), fixedpoint.Unit),
		MsgValue: big.NewInt(0),
	}, now)
	if err != nil {
		t.Fatalf("submit oco: %v", err)
	}
	if ocoResult.TPID == 0 || ocoResult.SLID == 0 {
		t.Fatalf("expected both tp and sl orders to be created")
	}

	laterNow := now + 60
	feed.Set(mkt, big.NewInt(2_100), big.NewInt(0), 0, time.Unix(laterNow, 0))
	feed.SetReference(mkt, new(big.Int).Mul(big.NewInt(2_100), fixedpoint.Unit))

	if err := eng.ExecuteOrders(keeper, []uint32{ocoResult.TPID}, nil, big.NewInt(0), nil, laterNow); err != nil {
		t.Fatalf("execute tp: %v", err)
	}
	if _, ok := eng.Positions.Position(trader, market.AssetNative, mkt); ok {
		t.Fatalf("expected position closed by the take-profit fill")
	}
	if _, ok := eng.Book.Order(ocoResult.SLID); ok {
		t.Fatalf("expected the stop-loss sibling to be cancelled by the oco fill")
	}
}
