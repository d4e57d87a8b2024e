package orderbook

import (
	"math/big"

	"perpengine/core/events"
	"perpengine/crypto"
	"perpengine/market"
	"perpengine/native/common"
)

// Cancel implements cancel(id) by the order's own owner: remove from
// indexes and refund margin+fee (for non-reduce-only orders; combined with
// the execution fee when the asset is native).
func (b *Book) Cancel(owner crypto.Address, id uint32) error {
	if err := common.Guard(b.pauses, "orders"); err != nil {
		return err
	}
	o, ok := b.orders[id]
	if !ok {
		return ErrNotFound
	}
	if !o.User.Equal(owner) {
		return ErrUnauthorized
	}
	return b.cancel(o, "!cancelled", owner)
}

// KeeperCancel implements cancel(id, reason, fee_receiver) invoked by the
// ExecutionEngine: the execution fee is paid to fee_receiver (a keeper)
// rather than refunded to the order's owner.
func (b *Book) KeeperCancel(id uint32, reason string, feeReceiver crypto.Address) error {
	o, ok := b.orders[id]
	if !ok {
		return ErrNotFound
	}
	return b.cancel(o, reason, feeReceiver)
}

func (b *Book) cancel(o *Order, reason string, feeReceiver crypto.Address) error {
	b.Remove(o.ID)

	execFee := zeroIfNil(o.Detail.ExecutionFee)
	refund := big.NewInt(0)
	if !o.Detail.ReduceOnly {
		refund = new(big.Int).Add(o.Margin, o.Fee)
	}

	sameRecipientNative := o.Asset == market.AssetNative && !feeReceiver.IsZero() && feeReceiver.Equal(o.User)
	if b.ledger != nil {
		if sameRecipientNative {
			combined := new(big.Int).Add(refund, execFee)
			if combined.Sign() > 0 {
				if err := b.ledger.TransferOut(o.Asset, o.User, combined); err != nil {
					return err
				}
			}
		} else {
			if refund.Sign() > 0 {
				if err := b.ledger.TransferOut(o.Asset, o.User, refund); err != nil {
					return err
				}
			}
			if execFee.Sign() > 0 && !feeReceiver.IsZero() {
				if err := b.ledger.TransferOut(market.AssetNative, feeReceiver, execFee); err != nil {
					return err
				}
			}
		}
	}

	b.emitter.Emit(events.OrderCancelled{
		OrderID:     o.ID,
		User:        o.User.String(),
		Reason:      reason,
		FeeReceiver: feeReceiver.String(),
	})
	return nil
}
