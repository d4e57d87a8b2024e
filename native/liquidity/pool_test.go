package liquidity

import (
	"math/big"
	"testing"

	"perpengine/core/events"
	"perpengine/crypto"
	"perpengine/market"
)

type memLedger struct {
	balances map[market.AssetID]map[string]*big.Int
}

func newMemLedger() *memLedger {
	return &memLedger{balances: make(map[market.AssetID]map[string]*big.Int)}
}

func (l *memLedger) credit(asset market.AssetID, who crypto.Address, amount *big.Int) {
	acct, ok := l.balances[asset]
	if !ok {
		acct = make(map[string]*big.Int)
		l.balances[asset] = acct
	}
	cur, ok := acct[who.Key()]
	if !ok {
		cur = big.NewInt(0)
	}
	acct[who.Key()] = new(big.Int).Add(cur, amount)
}

func (l *memLedger) TransferIn(asset market.AssetID, from crypto.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	acct := l.balances[asset]
	cur, ok := acct[from.Key()]
	if !ok || cur.Cmp(amount) < 0 {
		return ErrInvalidAmount
	}
	acct[from.Key()] = new(big.Int).Sub(cur, amount)
	return nil
}

func (l *memLedger) TransferOut(asset market.AssetID, to crypto.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	l.credit(asset, to, amount)
	return nil
}

func (l *memLedger) Balance(asset market.AssetID, who crypto.Address) *big.Int {
	acct, ok := l.balances[asset]
	if !ok {
		return big.NewInt(0)
	}
	cur, ok := acct[who.Key()]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(cur)
}

type noopEmitter struct{ events []events.Event }

func (e *noopEmitter) Emit(ev events.Event) { e.events = append(e.events, ev) }

func addr(b byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = b
	return crypto.MustNewAddress(crypto.TraderPrefix, raw)
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	lg := newMemLedger()
	pool := New(lg, &noopEmitter{}, nil, 86_400, 86_400)
	pool.EnsureAsset(market.AssetNative)

	lp := addr(1)
	lg.credit(market.AssetNative, lp, big.NewInt(10_000))

	id, err := pool.DepositRequest(lp, Request{
		User: lp, Asset: market.AssetNative, Amount: big.NewInt(10_000), MinAmountAfterTax: big.NewInt(0),
	}, 0)
	if err != nil {
		t.Fatalf("deposit request: %v", err)
	}
	if err := pool.ExecuteOrders(addr(9), []uint32{id}, nil, nil, 0); err != nil {
		t.Fatalf("execute deposit: %v", err)
	}
	state := pool.State(market.AssetNative)
	if state.Balance.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("unexpected pool balance: %s", state.Balance)
	}
	if state.LPSupply.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("expected first deposit to mint 1:1, got %s", state.LPSupply)
	}

	other := addr(2)
	lg.credit(market.AssetNative, other, big.NewInt(10_000))
	oid, err := pool.DepositRequest(other, Request{
		User: other, Asset: market.AssetNative, Amount: big.NewInt(10_000), MinAmountAfterTax: big.NewInt(0),
	}, 0)
	if err != nil {
		t.Fatalf("second deposit request: %v", err)
	}
	if err := pool.ExecuteOrders(addr(9), []uint32{oid}, nil, nil, 0); err != nil {
		t.Fatalf("execute second deposit: %v", err)
	}

	wid, err := pool.WithdrawRequest(lp, Request{
		User: lp, Asset: market.AssetNative, Amount: big.NewInt(10_000), MinAmountAfterTax: big.NewInt(0),
	}, 0)
	if err != nil {
		t.Fatalf("withdraw request: %v", err)
	}
	if err := pool.ExecuteOrders(addr(9), []uint32{wid}, nil, nil, 0); err != nil {
		t.Fatalf("execute withdraw: %v", err)
	}
	state = pool.State(market.AssetNative)
	if state.Balance.Cmp(big.NewInt(10_000)) != 0 || state.LPSupply.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("expected only the second LP's liquidity left, got balance=%s supply=%s", state.Balance, state.LPSupply)
	}
	if got := lg.Balance(market.AssetNative, lp); got.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("expected lp to recover full deposit, got %s", got)
	}
}

func TestDirectPoolDepositRejectsUnsupportedAsset(t *testing.T) {
	lg := newMemLedger()
	pool := New(lg, &noopEmitter{}, nil, 86_400, 86_400)
	sender := addr(2)
	lg.credit(market.AssetNative, sender, big.NewInt(100))
	if err := pool.DirectPoolDeposit(sender, market.AssetNative, big.NewInt(100), 0); err != ErrAssetNotSupported {
		t.Fatalf("expected ErrAssetNotSupported, got %v", err)
	}
}

func TestStreamBufferToPoolSweepsAfterMultipleEpochs(t *testing.T) {
	lg := newMemLedger()
	pool := New(lg, &noopEmitter{}, nil, 1_000, 86_400)
	pool.EnsureAsset(market.AssetNative)
	pool.CreditTraderLoss(addr(3), market.AssetNative, market.NewID("ETH-USD"), big.NewInt(5_000), 0)

	// Skip many epochs: the entire buffer should sweep into principal.
	pool.StreamBufferToPool(market.AssetNative, 10_000)
	state := pool.State(market.AssetNative)
	if state.BufferBalance.Sign() != 0 {
		t.Fatalf("expected buffer fully swept, got %s", state.BufferBalance)
	}
	if state.Balance.Cmp(big.NewInt(5_000)) != 0 {
		t.Fatalf("expected swept buffer credited to principal, got %s", state.Balance)
	}
}

func TestCancelLiquidityOrderRefundsDeposit(t *testing.T) {
	lg := newMemLedger()
	pool := New(lg, &noopEmitter{}, nil, 86_400, 86_400)
	pool.EnsureAsset(market.AssetNative)
	lp := addr(4)
	lg.credit(market.AssetNative, lp, big.NewInt(1_000))

	id, err := pool.DepositRequest(lp, Request{
		User: lp, Asset: market.AssetNative, Amount: big.NewInt(1_000), MinAmountAfterTax: big.NewInt(0),
	}, 0)
	if err != nil {
		t.Fatalf("deposit request: %v", err)
	}
	if err := pool.CancelLiquidityOrder(lp, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := lg.Balance(market.AssetNative, lp); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected full refund on cancel, got %s", got)
	}
}
