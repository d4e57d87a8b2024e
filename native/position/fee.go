package position

import (
	"math/big"

	"perpengine/core/events"
	"perpengine/crypto"
	"perpengine/fixedpoint"
	"perpengine/market"
)

// CreditFee implements §4.6's credit_fee: the asset-denominated fee is
// pre-multiplied by UNIT to preserve precision, split keeper/pool/treasury,
// and the execution fee is paid to the keeper in the native asset.
func (m *Manager) CreditFee(user crypto.Address, asset market.AssetID, id market.ID, fee, executionFee *big.Int, isLiquidation bool, keeper crypto.Address) error {
	if fee == nil {
		fee = big.NewInt(0)
	}
	feeUnit := new(big.Int).Mul(fee, fixedpoint.Unit)
	keeperFeeUnit := fixedpoint.MulDivBps(feeUnit, m.keeperFeeShareBps)
	netUnit := new(big.Int).Sub(feeUnit, keeperFeeUnit)
	poolShareUnit := fixedpoint.MulDivBps(netUnit, m.poolFeeShareBps)
	treasuryShareUnit := new(big.Int).Sub(netUnit, poolShareUnit)

	keeperFee := new(big.Int).Quo(keeperFeeUnit, fixedpoint.Unit)
	poolShare := new(big.Int).Quo(poolShareUnit, fixedpoint.Unit)
	treasuryShare := new(big.Int).Quo(treasuryShareUnit, fixedpoint.Unit)

	if m.pool != nil {
		if poolShare.Sign() > 0 {
			m.pool.CreditFeeToPool(asset, poolShare)
		}
		if treasuryShare.Sign() > 0 {
			m.pool.CreditFeeReserve(asset, treasuryShare)
		}
	}
	if m.ledger != nil {
		if keeperFee.Sign() > 0 && !keeper.IsZero() {
			if err := m.ledger.TransferOut(asset, keeper, keeperFee); err != nil {
				return err
			}
		}
		if executionFee != nil && executionFee.Sign() > 0 && !keeper.IsZero() {
			if err := m.ledger.TransferOut(market.AssetNative, keeper, executionFee); err != nil {
				return err
			}
		}
	}

	m.emitter.Emit(events.FeePaid{
		User:          user.String(),
		Asset:         string(asset),
		Market:        id.String(),
		Total:         fee,
		KeeperShare:   keeperFee,
		PoolShare:     poolShare,
		TreasuryShare: treasuryShare,
		ExecutionFee:  executionFee,
		IsLiquidation: isLiquidation,
		Keeper:        keeper.String(),
	})
	return nil
}
