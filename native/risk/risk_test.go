package risk

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"perpengine/market"
)

type stubOI struct{ total *big.Int }

func (s stubOI) TotalOpenInterest(market.AssetID, market.ID) *big.Int { return s.total }

type stubPool struct{ balance *big.Int }

func (s stubPool) PoolBalance(market.AssetID) *big.Int { return s.balance }

var mkt = market.NewID("ETH-USD")

func TestCheckMaxOIUncappedAllowsAnySize(t *testing.T) {
	v := New(stubOI{total: big.NewInt(0)}, nil)
	require.NoError(t, v.CheckMaxOI(market.AssetNative, mkt, big.NewInt(1_000_000)))
}

func TestCheckMaxOIRejectsOverCap(t *testing.T) {
	v := New(stubOI{total: big.NewInt(900)}, nil)
	v.SetMaxOI(market.AssetNative, mkt, big.NewInt(1_000))
	require.ErrorIs(t, v.CheckMaxOI(market.AssetNative, mkt, big.NewInt(200)), ErrOICapExceeded)
	require.NoError(t, v.CheckMaxOI(market.AssetNative, mkt, big.NewInt(100)))
}

func TestSetPoolProfitLimitRejectsOutOfBoundBps(t *testing.T) {
	v := New(nil, nil)
	require.Error(t, v.SetPoolProfitLimit(market.AssetNative, 10_000))
	require.NoError(t, v.SetPoolProfitLimit(market.AssetNative, 9_999))
}

func TestCheckPoolDrawdownRejectsOverLimitAndLeavesStateUnchanged(t *testing.T) {
	v := New(nil, stubPool{balance: big.NewInt(10_000)})
	require.NoError(t, v.SetPoolProfitLimit(market.AssetNative, 1_000)) // 10% of balance = 1000

	require.NoError(t, v.CheckPoolDrawdown(market.AssetNative, big.NewInt(900), 1_000))
	require.Equal(t, 0, v.ProfitTracker(market.AssetNative).Cmp(big.NewInt(900)))

	err := v.CheckPoolDrawdown(market.AssetNative, big.NewInt(500), 1_001)
	require.ErrorIs(t, err, ErrPoolDrawdownExceeded)
	// rejected check must not have mutated the tracker or last-checked timestamp
	require.Equal(t, 0, v.ProfitTracker(market.AssetNative).Cmp(big.NewInt(900)))
}

func TestCheckPoolDrawdownDecaysOverTime(t *testing.T) {
	v := New(nil, stubPool{balance: big.NewInt(1_000_000)})
	require.NoError(t, v.SetPoolHourlyDecay(market.AssetNative, 5_000)) // 50%/hour

	require.NoError(t, v.CheckPoolDrawdown(market.AssetNative, big.NewInt(1_000), 0))
	require.Equal(t, 0, v.ProfitTracker(market.AssetNative).Cmp(big.NewInt(1_000)))

	require.NoError(t, v.CheckPoolDrawdown(market.AssetNative, big.NewInt(0), 3_600))
	require.Equal(t, 0, v.ProfitTracker(market.AssetNative).Cmp(big.NewInt(500)))
}

func TestCheckPoolDrawdownIgnoresNegativePnl(t *testing.T) {
	v := New(nil, stubPool{balance: big.NewInt(1_000_000)})
	require.NoError(t, v.CheckPoolDrawdown(market.AssetNative, big.NewInt(-500), 0))
	require.Equal(t, 0, v.ProfitTracker(market.AssetNative).Sign())
}
