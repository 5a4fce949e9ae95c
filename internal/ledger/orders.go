package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"stock-exchange/internal/model"
)

func tableFor(side model.Side) string {
	if side == model.SideAsk {
		return "ask_orders"
	}
	return "bid_orders"
}

// InsertOrderTx inserts a resting order row with its full volume unfulfilled.
func InsertOrderTx(tx *sql.Tx, side model.Side, userID, stockID int64, priceCents int, volume int64) (*model.Order, error) {
	o := &model.Order{}
	q := fmt.Sprintf(
		`INSERT INTO %s (user_id, stock_id, price_cents, volume, unfulfilled) VALUES ($1,$2,$3,$4,$4)
		 RETURNING id, user_id, stock_id, price_cents, volume, unfulfilled, created_at, updated_at`, tableFor(side))
	err := tx.QueryRow(q, userID, stockID, priceCents, volume).Scan(
		&o.ID, &o.UserID, &o.StockID, &o.PriceCents, &o.Volume, &o.Unfulfilled, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// ListRestingForMatch returns resting counter-orders for stockID, locked for
// the duration of the caller's transaction and ordered by price-time
// priority best-price-first: ascending price for asks (the cheapest seller
// first), descending price for bids (the richest buyer first). This
// corrects the worst-price-first ordering carried in the distilled
// reference implementation (see DESIGN.md, Open Question 1).
func ListRestingForMatch(tx *sql.Tx, side model.Side, stockID int64) ([]model.Order, error) {
	order := "price_cents ASC, created_at ASC, id ASC"
	if side == model.SideBid {
		order = "price_cents DESC, created_at ASC, id ASC"
	}
	q := fmt.Sprintf(
		`SELECT id, user_id, stock_id, price_cents, volume, unfulfilled, created_at, updated_at
		 FROM %s WHERE stock_id=$1 AND unfulfilled>0 ORDER BY %s FOR UPDATE`, tableFor(side), order)
	rows, err := tx.Query(q, stockID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.StockID, &o.PriceCents, &o.Volume, &o.Unfulfilled, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// DecrementUnfulfilledTx records a partial or full fill against a resting
// order by updating its unfulfilled volume in place. The row is never
// deleted here: only cancellation removes an order row (§3); a fully filled
// order stays as a row with unfulfilled=0, a terminal state that GET
// /orders still finds.
func DecrementUnfulfilledTx(tx *sql.Tx, side model.Side, orderID int64, amount int64) (remaining int64, err error) {
	q := fmt.Sprintf(
		`UPDATE %s SET unfulfilled = unfulfilled - $1, updated_at = now() WHERE id=$2 RETURNING unfulfilled`, tableFor(side))
	if err := tx.QueryRow(q, amount, orderID).Scan(&remaining); err != nil {
		return 0, err
	}
	return remaining, nil
}

// GetOrderForUpdate locks a single resting order row, used by Cancel.
func GetOrderForUpdate(tx *sql.Tx, side model.Side, orderID int64) (*model.Order, error) {
	o := &model.Order{}
	q := fmt.Sprintf(
		`SELECT id, user_id, stock_id, price_cents, volume, unfulfilled, created_at, updated_at
		 FROM %s WHERE id=$1 FOR UPDATE`, tableFor(side))
	err := tx.QueryRow(q, orderID).Scan(
		&o.ID, &o.UserID, &o.StockID, &o.PriceCents, &o.Volume, &o.Unfulfilled, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return o, err
}

// DeleteOrderTx removes a resting order outright (used by Cancel, after its
// reserved cash/inventory has been refunded) and reports whether exactly one
// row was affected.
func DeleteOrderTx(tx *sql.Tx, side model.Side, orderID int64) error {
	res, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, tableFor(side)), orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("cancel affected %d rows, want 1", n)
	}
	return nil
}

func (s *Store) ListMyOrders(ctx context.Context, side model.Side, userID int64, p model.Paging) ([]model.Order, error) {
	q := fmt.Sprintf(
		`SELECT id, user_id, stock_id, price_cents, volume, unfulfilled, created_at, updated_at
		 FROM %s WHERE user_id=$1 ORDER BY created_at DESC OFFSET $2 LIMIT $3`, tableFor(side))
	rows, err := s.DB.QueryContext(ctx, q, userID, p.Offset, p.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.StockID, &o.PriceCents, &o.Volume, &o.Unfulfilled, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// DepthLevels computes aggregated book depth (price_cents, total unfulfilled
// volume at that price), best price first, limited to the given number of
// levels per side.
func DepthLevels(ctx context.Context, db *sql.DB, side model.Side, stockID int64, levels int) ([]model.BookLevel, error) {
	order := "price_cents ASC"
	if side == model.SideBid {
		order = "price_cents DESC"
	}
	q := fmt.Sprintf(
		`SELECT price_cents, SUM(unfulfilled) FROM %s WHERE stock_id=$1 AND unfulfilled>0
		 GROUP BY price_cents ORDER BY %s LIMIT $2`, tableFor(side), order)
	rows, err := db.QueryContext(ctx, q, stockID, levels)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.BookLevel
	for rows.Next() {
		var lvl model.BookLevel
		if err := rows.Scan(&lvl.PriceCents, &lvl.Amount); err != nil {
			return nil, err
		}
		out = append(out, lvl)
	}
	return out, rows.Err()
}
