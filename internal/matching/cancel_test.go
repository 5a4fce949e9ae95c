package matching

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"stock-exchange/internal/apperr"
	"stock-exchange/internal/model"
)

func TestCancel_BidRefundsReservedCash(t *testing.T) {
	e, mock, closeDB := newEngine(t)
	defer closeDB()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bid_orders WHERE id=\$1 FOR UPDATE`).
		WithArgs(int64(55)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "stock_id", "price_cents", "volume", "unfulfilled", "created_at", "updated_at"}).
			AddRow(int64(55), int64(1), int64(9), 100, int64(5), int64(3), now, now))
	mock.ExpectExec(`UPDATE users SET balance_cents = balance_cents \+ \$1`).
		WithArgs(int64(300), int64(1)). // 100 * 3 remaining
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM bid_orders WHERE id=\$1`).
		WithArgs(int64(55)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := e.Cancel(context.Background(), 1, model.SideBid, 55); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancel_AskRefundsReservedInventory(t *testing.T) {
	e, mock, closeDB := newEngine(t)
	defer closeDB()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM ask_orders WHERE id=\$1 FOR UPDATE`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "stock_id", "price_cents", "volume", "unfulfilled", "created_at", "updated_at"}).
			AddRow(int64(42), int64(2), int64(9), 90, int64(5), int64(5), now, now))
	mock.ExpectQuery(`FROM holdings WHERE user_id=\$1 AND stock_id=\$2 FOR UPDATE`).
		WithArgs(int64(2), int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "stock_id", "hold", "updated_at"}).
			AddRow(int64(2), int64(9), int64(0), now))
	mock.ExpectExec(`UPDATE holdings SET hold = hold \+ \$1`).
		WithArgs(int64(5), int64(2), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM ask_orders WHERE id=\$1`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := e.Cancel(context.Background(), 2, model.SideAsk, 42); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancel_RejectsWrongOwner(t *testing.T) {
	e, mock, closeDB := newEngine(t)
	defer closeDB()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bid_orders WHERE id=\$1 FOR UPDATE`).
		WithArgs(int64(55)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "stock_id", "price_cents", "volume", "unfulfilled", "created_at", "updated_at"}).
			AddRow(int64(55), int64(1), int64(9), 100, int64(5), int64(3), now, now))

	err := e.Cancel(context.Background(), 999, model.SideBid, 55)
	if err == nil {
		t.Fatal("expected an error")
	}
	// Wrong owner collapses into the same NotFound as a missing order,
	// never a distinct Unauthorized status (§4.6).
	if ae := apperr.As(err); ae.Kind != apperr.KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", ae.Kind)
	}
}
