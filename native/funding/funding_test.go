package funding

import (
	"math/big"
	"testing"

	"perpengine/market"
)

type stubOI struct {
	long, short *big.Int
}

func (s stubOI) OpenInterest(market.AssetID, market.ID) (*big.Int, *big.Int) {
	return s.long, s.short
}

const assetA = market.AssetNative

var marketA = market.NewID("ETH-USD")

func TestUpdateFirstCallAnchorsWithoutAccrual(t *testing.T) {
	tr := New(3600, stubOI{long: big.NewInt(100), short: big.NewInt(50)})
	idx, changed := tr.Update(assetA, marketA, 1_000, 100)
	if changed {
		t.Fatalf("first update should not accrue")
	}
	if idx.Sign() != 0 {
		t.Fatalf("expected zero index, got %s", idx)
	}
}

func TestUpdateWithinIntervalIsNoop(t *testing.T) {
	tr := New(3600, stubOI{long: big.NewInt(100), short: big.NewInt(50)})
	tr.Update(assetA, marketA, 1_000, 100)
	idx, changed := tr.Update(assetA, marketA, 1_500, 100)
	if changed {
		t.Fatalf("update inside the current interval must not accrue")
	}
	if idx.Sign() != 0 {
		t.Fatalf("expected unchanged zero index, got %s", idx)
	}
}

func TestUpdateBalancedBookNoChange(t *testing.T) {
	tr := New(3600, stubOI{long: big.NewInt(100), short: big.NewInt(100)})
	tr.Update(assetA, marketA, 1_000, 100)
	idx, changed := tr.Update(assetA, marketA, 4_600, 100)
	if changed {
		t.Fatalf("balanced book must not accrue")
	}
	if idx.Sign() != 0 {
		t.Fatalf("expected zero index, got %s", idx)
	}
}

func TestUpdateLongsDominatePositiveAccrual(t *testing.T) {
	tr := New(3600, stubOI{long: big.NewInt(300), short: big.NewInt(100)})
	tr.Update(assetA, marketA, 1_000, 100)
	idx, changed := tr.Update(assetA, marketA, 4_600, 100)
	if !changed {
		t.Fatalf("expected accrual when longs dominate")
	}
	if idx.Sign() <= 0 {
		t.Fatalf("expected positive index, got %s", idx)
	}
}

func TestUpdateShortsDominateNegativeAccrual(t *testing.T) {
	tr := New(3600, stubOI{long: big.NewInt(100), short: big.NewInt(300)})
	tr.Update(assetA, marketA, 1_000, 100)
	idx, changed := tr.Update(assetA, marketA, 4_600, 100)
	if !changed {
		t.Fatalf("expected accrual when shorts dominate")
	}
	if idx.Sign() >= 0 {
		t.Fatalf("expected negative index, got %s", idx)
	}
}

func TestProjectedDoesNotMutateState(t *testing.T) {
	tr := New(3600, stubOI{long: big.NewInt(300), short: big.NewInt(100)})
	tr.Update(assetA, marketA, 1_000, 100)
	before := tr.Current(assetA, marketA)
	projected := tr.Projected(assetA, marketA, 4_600, 100)
	after := tr.Current(assetA, marketA)
	if before.Cmp(after) != 0 {
		t.Fatalf("Projected must not mutate stored state")
	}
	if projected.Cmp(before) == 0 {
		t.Fatalf("expected projected index to differ from the stored one")
	}
}
