package matching

import (
	"context"

	"stock-exchange/internal/apperr"
	"stock-exchange/internal/ledger"
	"stock-exchange/internal/model"
)

// Cancel refunds whatever a resting order still has reserved — cash for an
// unfulfilled bid, inventory for an unfulfilled ask — then deletes the row,
// in one transaction. Only the order's own owner may cancel it (§4.6).
func (e *Engine) Cancel(ctx context.Context, userID int64, side model.Side, orderID int64) error {
	tx, err := e.Store.BeginTx(ctx)
	if err != nil {
		return apperr.Internal("begin tx: %v", err)
	}
	defer tx.Rollback()

	order, err := ledger.GetOrderForUpdate(tx, side, orderID)
	if err != nil {
		return apperr.Internal("lock order: %v", err)
	}
	if order == nil {
		return apperr.NotFound("order %d not found", orderID)
	}
	if order.UserID != userID {
		// Owned-by-another-user collapses into the same NotFound as
		// missing, rather than a distinct Unauthorized status (§4.6).
		return apperr.NotFound("order %d not found", orderID)
	}

	switch side {
	case model.SideBid:
		refund := int64(order.PriceCents) * order.Unfulfilled
		if err := ledger.RefundCash(tx, userID, refund); err != nil {
			return apperr.Internal("refund cash: %v", err)
		}
	case model.SideAsk:
		if _, err := ledger.GetHoldingForUpdate(tx, userID, order.StockID); err != nil {
			return apperr.Internal("lock holding: %v", err)
		}
		if err := ledger.RefundInventory(tx, userID, order.StockID, order.Unfulfilled); err != nil {
			return apperr.Internal("refund inventory: %v", err)
		}
	default:
		return apperr.BadRequest("unknown side %q", side)
	}

	if err := ledger.DeleteOrderTx(tx, side, orderID); err != nil {
		return apperr.Internal("delete order: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return apperr.Internal("commit: %v", err)
	}
	return nil
}
