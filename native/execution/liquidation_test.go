package execution

import (
	"math/big"
	"testing"
	"time"

	"perpengine/core/events"
	"perpengine/crypto"
	"perpengine/market"
)

type recordingEmitter struct{ events []events.Event }

func (e *recordingEmitter) Emit(ev events.Event) { e.events = append(e.events, ev) }

type liquidatingPositions struct {
	has        bool
	isLong     bool
	liquidated map[string]bool
	err        error
}

func (p *liquidatingPositions) IncreasePosition(uint32, *big.Int, crypto.Address, int64) error {
	return nil
}
func (p *liquidatingPositions) DecreasePosition(uint32, *big.Int, bool, crypto.Address, int64) error {
	return nil
}

func (p *liquidatingPositions) Liquidate(user crypto.Address, asset market.AssetID, id market.ID, price *big.Int, now int64, keeper crypto.Address) (bool, *big.Int, error) {
	if p.err != nil {
		return false, nil, p.err
	}
	if p.liquidated == nil {
		p.liquidated = make(map[string]bool)
	}
	p.liquidated[user.Key()] = true
	return true, big.NewInt(0), nil
}

func (p *liquidatingPositions) HasPosition(crypto.Address, market.AssetID, market.ID) (bool, *big.Int, bool) {
	return p.isLong, nil, p.has
}

type stubLiquidity struct {
	executedIDs []uint32
	globalUPLs  map[string]*big.Int
}

func (l *stubLiquidity) ExecuteOrders(keeper crypto.Address, ids []uint32, assets []market.AssetID, upls []*big.Int, now int64) error {
	l.executedIDs = append(l.executedIDs, ids...)
	return nil
}

func (l *stubLiquidity) SetGlobalUPLs(assets []market.AssetID, upls []*big.Int, now int64) error {
	if l.globalUPLs == nil {
		l.globalUPLs = make(map[string]*big.Int)
	}
	for i, a := range assets {
		l.globalUPLs[string(a)] = upls[i]
	}
	return nil
}

func newLiquidationEngine(t *testing.T) (*Engine, *liquidatingPositions, *recordingEmitter, market.ID) {
	t.Helper()
	eng, _, _, feed, mkt := newTestEngine(t)
	positions := &liquidatingPositions{has: true, isLong: true}
	emitter := &recordingEmitter{}
	eng.emitter = emitter
	eng.SetPositionSource(positions)
	feed.Set(mkt, big.NewInt(1_900), big.NewInt(0), 0, time.Unix(1_000, 0))
	return eng, positions, emitter, mkt
}

func TestLiquidatePositionsRequiresMatchedRowLengths(t *testing.T) {
	eng, _, _, mkt := newLiquidationEngine(t)
	err := eng.LiquidatePositions(addr(9), []crypto.Address{addr(1)}, []market.AssetID{market.AssetNative}, []market.ID{mkt, mkt}, nil, 1_000)
	if err != ErrMismatchedRows {
		t.Fatalf("expected ErrMismatchedRows, got %v", err)
	}
}

func TestLiquidatePositionsRoutesHealthyRowToManager(t *testing.T) {
	eng, positions, _, mkt := newLiquidationEngine(t)
	trader := addr(1)
	err := eng.LiquidatePositions(addr(9), []crypto.Address{trader}, []market.AssetID{market.AssetNative}, []market.ID{mkt}, nil, 1_000)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if !positions.liquidated[trader.Key()] {
		t.Fatalf("expected the row to reach PositionManager.Liquidate")
	}
}

func TestLiquidatePositionsSkipsRowsWithoutAPosition(t *testing.T) {
	eng, positions, _, mkt := newLiquidationEngine(t)
	positions.has = false
	trader := addr(1)
	if err := eng.LiquidatePositions(addr(9), []crypto.Address{trader}, []market.AssetID{market.AssetNative}, []market.ID{mkt}, nil, 1_000); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if positions.liquidated[trader.Key()] {
		t.Fatalf("a row with no open position must not reach Liquidate")
	}
}

func TestLiquidatePositionsEmitsErrorOnStaleQuoteAndContinuesBatch(t *testing.T) {
	eng, positions, emitter, mkt := newLiquidationEngine(t)
	staleTrader, freshTrader := addr(1), addr(2)

	// Force staleness for the whole batch by setting now far past the quote.
	err := eng.LiquidatePositions(addr(9), []crypto.Address{staleTrader, freshTrader},
		[]market.AssetID{market.AssetNative, market.AssetNative}, []market.ID{mkt, mkt}, nil, 1_000+10_000)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if positions.liquidated[staleTrader.Key()] || positions.liquidated[freshTrader.Key()] {
		t.Fatalf("expected neither row to liquidate against a stale quote")
	}
	if len(emitter.events) != 2 {
		t.Fatalf("expected a LiquidationError emitted per stale row, got %d", len(emitter.events))
	}
}

func TestExecuteLiquidityOrdersRequiresWhitelistedKeeper(t *testing.T) {
	eng, _, _, _ := newLiquidationEngine(t)
	liquidity := &stubLiquidity{}
	eng.SetLiquiditySource(liquidity)
	err := eng.ExecuteLiquidityOrders(addr(1), []uint32{1}, []market.AssetID{market.AssetNative}, []*big.Int{big.NewInt(0)}, 1_000)
	if err != ErrUnauthorizedKeeper {
		t.Fatalf("expected ErrUnauthorizedKeeper, got %v", err)
	}
	if len(liquidity.executedIDs) != 0 {
		t.Fatalf("expected no delegation to the pool for an unauthorized keeper")
	}
}

func TestExecuteLiquidityOrdersDelegatesToPool(t *testing.T) {
	eng, _, _, _ := newLiquidationEngine(t)
	liquidity := &stubLiquidity{}
	eng.SetLiquiditySource(liquidity)
	if err := eng.ExecuteLiquidityOrders(addr(9), []uint32{1, 2}, []market.AssetID{market.AssetNative, market.AssetNative}, []*big.Int{big.NewInt(0), big.NewInt(0)}, 1_000); err != nil {
		t.Fatalf("execute liquidity orders: %v", err)
	}
	if len(liquidity.executedIDs) != 2 {
		t.Fatalf("expected both order ids delegated, got %v", liquidity.executedIDs)
	}
}

func TestSetGlobalUPLsDelegatesToPool(t *testing.T) {
	eng, _, _, _ := newLiquidationEngine(t)
	liquidity := &stubLiquidity{}
	eng.SetLiquiditySource(liquidity)
	if err := eng.SetGlobalUPLs(addr(9), []market.AssetID{market.AssetNative}, []*big.Int{big.NewInt(500)}, 1_000); err != nil {
		t.Fatalf("set global upls: %v", err)
	}
	if got := liquidity.globalUPLs[string(market.AssetNative)]; got == nil || got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected global upl to reach the pool, got %v", got)
	}
}
