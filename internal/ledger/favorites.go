package ledger

import (
	"context"

	"stock-exchange/internal/model"
)

func (s *Store) AddFavorite(ctx context.Context, userID, stockID int64) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO favorites (user_id, stock_id) VALUES ($1,$2) ON CONFLICT (user_id, stock_id) DO NOTHING`,
		userID, stockID)
	return err
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, stockID int64) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM favorites WHERE user_id=$1 AND stock_id=$2`, userID, stockID)
	return err
}

func (s *Store) ListFavorites(ctx context.Context, userID int64) ([]model.Favorite, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT user_id, stock_id, created_at FROM favorites WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Favorite
	for rows.Next() {
		var f model.Favorite
		if err := rows.Scan(&f.UserID, &f.StockID, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
