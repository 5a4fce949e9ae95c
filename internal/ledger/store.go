// Package ledger is the Ledger Store: durable relational state for users,
// stocks, IPO records, holdings, resting orders and trades. Every mutation
// goes through a transaction acquired from Store.BeginTx; isolation is
// serializable so no lost updates or write skew can occur on rows touched
// within one submission.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"stock-exchange/internal/model"
)

type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Migrate(dir string) error {
	driver, err := postgres.WithInstance(s.DB, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// BeginTx opens a serializable transaction. Every mutating operation in the
// Reservation Module, Matching Engine, IPO Settlement and Cancellation takes
// the returned *sql.Tx explicitly, so a single submission has a single
// commit point (§4.1, §9 "shared connection across collaborators").
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// ── Users ────────────────────────────────────────────

func (s *Store) CreateUser(ctx context.Context, name, passwordHash string) (*model.User, error) {
	u := &model.User{}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO users (name, password_hash, balance_cents) VALUES ($1,$2,0)
		 RETURNING id, name, password_hash, balance_cents, created_at`, name, passwordHash,
	).Scan(&u.ID, &u.Name, &u.PasswordHash, &u.BalanceCents, &u.CreatedAt)
	return u, err
}

func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u := &model.User{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, password_hash, balance_cents, created_at FROM users WHERE id=$1`, id,
	).Scan(&u.ID, &u.Name, &u.PasswordHash, &u.BalanceCents, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *Store) GetUserByName(ctx context.Context, name string) (*model.User, error) {
	u := &model.User{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, password_hash, balance_cents, created_at FROM users WHERE name=$1`, name,
	).Scan(&u.ID, &u.Name, &u.PasswordHash, &u.BalanceCents, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// DepositCash is an unconditional balance increase (the deposit endpoint);
// it is not part of the Reservation Module since it never needs refunding.
func (s *Store) DepositCash(ctx context.Context, userID int64, cents int64) (*model.User, error) {
	u := &model.User{}
	err := s.DB.QueryRowContext(ctx,
		`UPDATE users SET balance_cents = balance_cents + $1 WHERE id=$2
		 RETURNING id, name, password_hash, balance_cents, created_at`, cents, userID,
	).Scan(&u.ID, &u.Name, &u.PasswordHash, &u.BalanceCents, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// GetUserForUpdate locks the user row for the duration of the caller's
// transaction. The order in which rows are locked is decided by the
// caller.
func GetUserForUpdate(tx *sql.Tx, userID int64) (*model.User, error) {
	u := &model.User{}
	err := tx.QueryRow(
		`SELECT id, name, password_hash, balance_cents, created_at FROM users WHERE id=$1 FOR UPDATE`, userID,
	).Scan(&u.ID, &u.Name, &u.PasswordHash, &u.BalanceCents, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// ── Stocks ───────────────────────────────────────────

func (s *Store) GetStock(ctx context.Context, id int64) (*model.Stock, error) {
	st := &model.Stock{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, into_market, into_market_at FROM stocks WHERE id=$1`, id,
	).Scan(&st.ID, &st.Name, &st.IntoMarket, &st.IntoMarketAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

func (s *Store) GetStockByName(ctx context.Context, name string) (*model.Stock, error) {
	st := &model.Stock{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, into_market, into_market_at FROM stocks WHERE name=$1`, name,
	).Scan(&st.ID, &st.Name, &st.IntoMarket, &st.IntoMarketAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

func (s *Store) ListListedStocks(ctx context.Context, p model.Paging) ([]model.Stock, error) {
	return scanStocks(s.DB.QueryContext(ctx,
		`SELECT id, name, into_market, into_market_at FROM stocks WHERE into_market=true
		 ORDER BY id OFFSET $1 LIMIT $2`, p.Offset, p.Limit))
}

func (s *Store) ListUnlistedStocks(ctx context.Context, p model.Paging) ([]model.Stock, error) {
	return scanStocks(s.DB.QueryContext(ctx,
		`SELECT id, name, into_market, into_market_at FROM stocks WHERE into_market=false
		 ORDER BY id OFFSET $1 LIMIT $2`, p.Offset, p.Limit))
}

func (s *Store) ListStocksIssuedBy(ctx context.Context, issuerID int64, listed bool, p model.Paging) ([]model.Stock, error) {
	return scanStocks(s.DB.QueryContext(ctx,
		`SELECT s.id, s.name, s.into_market, s.into_market_at
		 FROM stocks s JOIN new_stock_records n ON n.stock_id = s.id
		 WHERE n.issuer_user_id=$1 AND s.into_market=$2
		 ORDER BY s.id OFFSET $3 LIMIT $4`, issuerID, listed, p.Offset, p.Limit))
}

func scanStocks(rows *sql.Rows, err error) ([]model.Stock, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Stock
	for rows.Next() {
		var st model.Stock
		if err := rows.Scan(&st.ID, &st.Name, &st.IntoMarket, &st.IntoMarketAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// CreateIPO issues a new Stock in the into_market=false state plus its
// NewStockRecord, in one transaction (§3: "Created by IPO issuance").
func (s *Store) CreateIPO(ctx context.Context, issuerID int64, name string, circulation int64, offerPriceCents int) (*model.Stock, *model.NewStockRecord, error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	st := &model.Stock{}
	err = tx.QueryRow(
		`INSERT INTO stocks (name, into_market) VALUES ($1, false)
		 RETURNING id, name, into_market, into_market_at`, name,
	).Scan(&st.ID, &st.Name, &st.IntoMarket, &st.IntoMarketAt)
	if err != nil {
		return nil, nil, err
	}

	rec := &model.NewStockRecord{}
	err = tx.QueryRow(
		`INSERT INTO new_stock_records (stock_id, issuer_user_id, offer_circulation, offer_price_cents, offer_unfulfilled)
		 VALUES ($1,$2,$3,$4,$3)
		 RETURNING stock_id, issuer_user_id, offer_circulation, offer_price_cents, offer_unfulfilled, created_at`,
		st.ID, issuerID, circulation, offerPriceCents,
	).Scan(&rec.StockID, &rec.IssuerUserID, &rec.OfferCirculation, &rec.OfferPriceCents, &rec.OfferUnfulfilled, &rec.CreatedAt)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return st, rec, nil
}

func (s *Store) GetNewStockRecord(ctx context.Context, stockID int64) (*model.NewStockRecord, error) {
	rec := &model.NewStockRecord{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT stock_id, issuer_user_id, offer_circulation, offer_price_cents, offer_unfulfilled, created_at
		 FROM new_stock_records WHERE stock_id=$1`, stockID,
	).Scan(&rec.StockID, &rec.IssuerUserID, &rec.OfferCirculation, &rec.OfferPriceCents, &rec.OfferUnfulfilled, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// GetStockForUpdate / GetNewStockRecordForUpdate lock the row for the
// duration of the caller's transaction.
func GetStockForUpdate(tx *sql.Tx, stockID int64) (*model.Stock, error) {
	st := &model.Stock{}
	err := tx.QueryRow(
		`SELECT id, name, into_market, into_market_at FROM stocks WHERE id=$1 FOR UPDATE`, stockID,
	).Scan(&st.ID, &st.Name, &st.IntoMarket, &st.IntoMarketAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

func GetNewStockRecordForUpdate(tx *sql.Tx, stockID int64) (*model.NewStockRecord, error) {
	rec := &model.NewStockRecord{}
	err := tx.QueryRow(
		`SELECT stock_id, issuer_user_id, offer_circulation, offer_price_cents, offer_unfulfilled, created_at
		 FROM new_stock_records WHERE stock_id=$1 FOR UPDATE`, stockID,
	).Scan(&rec.StockID, &rec.IssuerUserID, &rec.OfferCirculation, &rec.OfferPriceCents, &rec.OfferUnfulfilled, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// DecrementOfferUnfulfilledTx records an IPO fill against the remaining
// offer. The CHECK (offer_unfulfilled >= 0) constraint is the backstop if a
// caller ever miscalculates volume against the locked record.
func DecrementOfferUnfulfilledTx(tx *sql.Tx, stockID int64, volume int64) error {
	_, err := tx.Exec(
		`UPDATE new_stock_records SET offer_unfulfilled = offer_unfulfilled - $1 WHERE stock_id=$2`,
		volume, stockID)
	return err
}

// ListStockTx transitions a Stock to into_market=true exactly once and it
// never reverts (§4.5). It does not check the caller: the issuer check is
// done by matching.Engine.ListStock.
func ListStockTx(tx *sql.Tx, stockID int64) error {
	res, err := tx.Exec(
		`UPDATE stocks SET into_market=true, into_market_at=now() WHERE id=$1 AND into_market=false`, stockID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("listing affected %d rows, want 1", n)
	}
	return nil
}
