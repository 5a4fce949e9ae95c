package ledger

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"stock-exchange/internal/model"
)

func (s *Store) GetHolding(ctx context.Context, userID, stockID int64) (*model.Holding, error) {
	h := &model.Holding{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT user_id, stock_id, hold, updated_at FROM holdings WHERE user_id=$1 AND stock_id=$2`,
		userID, stockID,
	).Scan(&h.UserID, &h.StockID, &h.Hold, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return &model.Holding{UserID: userID, StockID: stockID, Hold: 0}, nil
	}
	return h, err
}

func (s *Store) ListHoldingsForUser(ctx context.Context, userID int64) ([]model.Holding, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT user_id, stock_id, hold, updated_at FROM holdings WHERE user_id=$1 AND hold<>0 ORDER BY stock_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Holding
	for rows.Next() {
		var h model.Holding
		if err := rows.Scan(&h.UserID, &h.StockID, &h.Hold, &h.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) ListHoldingsByStockIDs(ctx context.Context, userID int64, stockIDs []int64) ([]model.Holding, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT user_id, stock_id, hold, updated_at FROM holdings WHERE user_id=$1 AND stock_id = ANY($2)`,
		userID, pq.Array(stockIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Holding
	for rows.Next() {
		var h model.Holding
		if err := rows.Scan(&h.UserID, &h.StockID, &h.Hold, &h.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// GetHoldingForUpdate locks (and lazily creates) a holding row within the
// caller's transaction. When it is taken relative to user and order rows is
// up to the caller: Submit and Cancel take some holding locks after order
// rows.
func GetHoldingForUpdate(tx *sql.Tx, userID, stockID int64) (*model.Holding, error) {
	h := &model.Holding{}
	err := tx.QueryRow(
		`SELECT user_id, stock_id, hold, updated_at FROM holdings WHERE user_id=$1 AND stock_id=$2 FOR UPDATE`,
		userID, stockID,
	).Scan(&h.UserID, &h.StockID, &h.Hold, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		_, err = tx.Exec(
			`INSERT INTO holdings (user_id, stock_id, hold) VALUES ($1,$2,0)
			 ON CONFLICT (user_id, stock_id) DO NOTHING`, userID, stockID)
		if err != nil {
			return nil, err
		}
		return GetHoldingForUpdate(tx, userID, stockID)
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// AddHoldingTx adjusts a locked holding row by delta (positive credits,
// negative debits). Callers must hold the row lock via GetHoldingForUpdate
// first; this never goes negative silently — ReserveInventory is the
// gatekeeper for debits that must fail cleanly.
func AddHoldingTx(tx *sql.Tx, userID, stockID, delta int64) error {
	_, err := tx.Exec(
		`UPDATE holdings SET hold = hold + $1, updated_at = now() WHERE user_id=$2 AND stock_id=$3`,
		delta, userID, stockID)
	return err
}

func AddBalanceTx(tx *sql.Tx, userID, deltaCents int64) error {
	_, err := tx.Exec(`UPDATE users SET balance_cents = balance_cents + $1 WHERE id=$2`, deltaCents, userID)
	return err
}
