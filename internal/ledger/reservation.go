// Reservation Module: debit-then-insert reservation of cash (bid orders)
// and inventory (ask orders), with typed Insufficient failures carrying the
// exact deficit. Every function here expects the relevant row to already be
// locked (via GetUserForUpdate / GetHoldingForUpdate) within the caller's
// transaction — that lock is what makes the check-then-debit atomic.
package ledger

import (
	"database/sql"
	"fmt"

	"stock-exchange/internal/apperr"
)

// ReserveCash debits a bid order's price*volume from the user's balance.
// Per spec: a bid (buy order) reserves cash, never inventory.
func ReserveCash(tx *sql.Tx, user_id int64, balanceCents int64, costCents int64) error {
	if balanceCents < costCents {
		return apperr.Insufficient(
			fmt.Sprintf("insufficient balance: need %d cents, have %d", costCents, balanceCents),
			costCents-balanceCents,
		)
	}
	return AddBalanceTx(tx, user_id, -costCents)
}

// ReserveInventory debits an ask order's volume from the seller's holding.
// Per spec: an ask (sell order) reserves inventory, never cash.
func ReserveInventory(tx *sql.Tx, userID, stockID int64, currentHold int64, volume int64) error {
	if currentHold < volume {
		return apperr.Insufficient(
			fmt.Sprintf("insufficient holding: need %d shares, have %d", volume, currentHold),
			volume-currentHold,
		)
	}
	return AddHoldingTx(tx, userID, stockID, -volume)
}

// RefundCash credits cents back to a user — used on cancellation of an
// unfulfilled bid, and on a bid taker's price-improvement excess when its
// limit price is above the resting ask's price (§4.4, Open Question 2: only
// the bid side is ever refunded mid-match, never the ask side).
func RefundCash(tx *sql.Tx, userID int64, cents int64) error {
	if cents == 0 {
		return nil
	}
	return AddBalanceTx(tx, userID, cents)
}

// RefundInventory credits shares back to a user — used on cancellation of an
// unfulfilled ask. Asks never pre-pay cash, so there is no inventory-side
// analogue of the bid price-improvement refund.
func RefundInventory(tx *sql.Tx, userID, stockID int64, shares int64) error {
	if shares == 0 {
		return nil
	}
	return AddHoldingTx(tx, userID, stockID, shares)
}
