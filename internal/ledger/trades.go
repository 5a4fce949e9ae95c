package ledger

import (
	"context"
	"database/sql"
	"time"

	"stock-exchange/internal/model"
)

// InsertTradeTx records a single fill. sellUserID is nil for an IPO
// purchase — the marker carried over verbatim from the reference
// implementation's sell_user_id convention (see DESIGN.md).
func InsertTradeTx(tx *sql.Tx, buyUserID int64, sellUserID *int64, stockID int64, priceCents int, amount int64) (*model.Trade, error) {
	t := &model.Trade{}
	err := tx.QueryRow(
		`INSERT INTO trades (buy_user_id, sell_user_id, stock_id, price_cents, amount)
		 VALUES ($1,$2,$3,$4,$5)
		 RETURNING id, buy_user_id, sell_user_id, stock_id, price_cents, amount, created_at`,
		buyUserID, sellUserID, stockID, priceCents, amount,
	).Scan(&t.ID, &t.BuyUserID, &t.SellUserID, &t.StockID, &t.PriceCents, &t.Amount, &t.CreatedAt)
	return t, err
}

// ListRecentTrades returns the most recent non-IPO trades for a stock, newest
// first, excluding IPO fills (sell_user_id IS NOT NULL) per the Market Data
// Projection's definition of "recent trades" (§4.7).
func (s *Store) ListRecentTrades(ctx context.Context, stockID int64, limit int) ([]model.Trade, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, buy_user_id, sell_user_id, stock_id, price_cents, amount, created_at
		 FROM trades WHERE stock_id=$1 AND sell_user_id IS NOT NULL
		 ORDER BY created_at DESC, id DESC LIMIT $2`, stockID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Trade
	for rows.Next() {
		var t model.Trade
		if err := rows.Scan(&t.ID, &t.BuyUserID, &t.SellUserID, &t.StockID, &t.PriceCents, &t.Amount, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TimeSeriesVWAP generates one row per bucket across [since, until),
// regardless of trade activity, and computes the volume-weighted average
// price for the buckets that had a trade — empty buckets carry a null price
// (§4.7). bucket is a Postgres interval literal such as "1 minute".
func (s *Store) TimeSeriesVWAP(ctx context.Context, stockID int64, bucket string, since time.Time, until time.Time) ([]model.TimeBucket, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT gs.bucket, t.vwap
		 FROM generate_series($3::timestamptz, $4::timestamptz - $1::interval, $1::interval) AS gs(bucket)
		 LEFT JOIN (
		   SELECT date_bin($1::interval, created_at, $3) AS bucket,
		          SUM(price_cents::numeric * amount) / SUM(amount) AS vwap
		   FROM trades
		   WHERE stock_id=$2 AND sell_user_id IS NOT NULL AND created_at >= $3 AND created_at < $4
		   GROUP BY bucket
		 ) t ON t.bucket = gs.bucket
		 ORDER BY gs.bucket`, bucket, stockID, since, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TimeBucket
	for rows.Next() {
		var b model.TimeBucket
		if err := rows.Scan(&b.Time, &b.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// LastPrice returns the most recent non-IPO trade price for a stock, or nil
// if the stock has never traded on the secondary market.
func (s *Store) LastPrice(ctx context.Context, stockID int64) (*int, error) {
	var price int
	err := s.DB.QueryRowContext(ctx,
		`SELECT price_cents FROM trades WHERE stock_id=$1 AND sell_user_id IS NOT NULL
		 ORDER BY created_at DESC, id DESC LIMIT 1`, stockID).Scan(&price)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &price, nil
}
