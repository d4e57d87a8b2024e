package main

import (
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"perpengine/crypto"
	"perpengine/engine"
	"perpengine/fixedpoint"
	"perpengine/ledger"
	"perpengine/market"
	"perpengine/native/liquidity"
	"perpengine/native/orderbook"
	"perpengine/oracle"
)

// runDemo scripts a single open/close round trip against the configured
// market so an operator booting perpd for the first time sees the engine
// actually move state, without needing a real keeper loop or wire oracle
// feed wired up yet.
func runDemo(eng *engine.Engine, lg *ledger.InMemory, feed *oracle.StaticFeed, marketID market.ID, logger *slog.Logger) error {
	now := time.Now().Unix()

	traderKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("demo: generate trader key: %w", err)
	}
	trader := traderKey.PubKey().Address()

	lpKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("demo: generate lp key: %w", err)
	}
	lp := lpKey.PubKey().Address()

	keeperKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("demo: generate keeper key: %w", err)
	}
	keeper, err := crypto.NewAddress(crypto.KeeperPrefix, keeperKey.PubKey().Address().Bytes())
	if err != nil {
		return fmt.Errorf("demo: build keeper address: %w", err)
	}
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
		return fmt.Errorf("demo: lp deposit request: %w", err)
	}
	if err := eng.ExecuteLiquidityOrders(keeper, []uint32{lpOrderID}, nil, nil, now); err != nil {
		return fmt.Errorf("demo: execute lp deposit: %w", err)
	}
	logger.Info("demo: liquidity seeded", "lp", lp.String(), "amount", lpDeposit.String())

	openPrice := new(big.Int).Mul(big.NewInt(2_000), big.NewInt(100_000_000))
	feed.Set(marketID, openPrice, big.NewInt(0), -8, time.Unix(now, 0))
	feed.SetReference(marketID, new(big.Int).Mul(big.NewInt(2_000), fixedpoint.Unit))

	openResult, err := eng.SubmitOrder(trader, orderbook.Submission{
		Order: orderbook.Order{
			User: trader, Asset: market.AssetNative, Market: marketID, IsLong: true,
			Margin: margin, Size: size,
		},
		MsgValue: new(big.Int).Mul(big.NewInt(2), margin),
	}, now)
	if err != nil {
		return fmt.Errorf("demo: submit open order: %w", err)
	}
	logger.Info("demo: open order submitted", "order_id", openResult.MainID)

	if err := eng.ExecuteOrders(keeper, []uint32{openResult.MainID}, nil, big.NewInt(0), nil, now); err != nil {
		return fmt.Errorf("demo: execute open order: %w", err)
	}
	pos, ok := eng.Positions.Position(trader, market.AssetNative, marketID)
	if !ok {
		return fmt.Errorf("demo: position not opened")
	}
	logger.Info("demo: position opened", "size", pos.Size.String(), "avg_price", pos.AvgPrice.String())

	closePrice := new(big.Int).Mul(big.NewInt(2_050), big.NewInt(100_000_000))
	laterNow := now + 60
	feed.Set(marketID, closePrice, big.NewInt(0), -8, time.Unix(laterNow, 0))
	feed.SetReference(marketID, new(big.Int).Mul(big.NewInt(2_050), fixedpoint.Unit))

	closeResult, err := eng.SubmitOrder(trader, orderbook.Submission{
		Order: orderbook.Order{
			User: trader, Asset: market.AssetNative, Market: marketID, IsLong: false,
			Size: size, Detail: orderbook.Detail{ReduceOnly: true},
		},
	}, laterNow)
	if err != nil {
		return fmt.Errorf("demo: submit close order: %w", err)
	}
	if err := eng.ExecuteOrders(keeper, []uint32{closeResult.MainID}, nil, big.NewInt(0), nil, laterNow); err != nil {
		return fmt.Errorf("demo: execute close order: %w", err)
	}

	balance := lg.Balance(market.AssetNative, trader)
	logger.Info("demo: position closed", "trader_balance", balance.String())
	return nil
}
