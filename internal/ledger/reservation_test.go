package ledger

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"stock-exchange/internal/apperr"
)

func TestReserveCash_Succeeds(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users SET balance_cents`).
		WithArgs(int64(-500), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := ReserveCash(tx, 1, 1000, 500); err != nil {
		t.Fatalf("ReserveCash: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveCash_Insufficient(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	err = ReserveCash(tx, 1, 100, 500)
	if err == nil {
		t.Fatal("expected an Insufficient error")
	}
	ae := apperr.As(err)
	if ae.Kind != apperr.KindInsufficient {
		t.Fatalf("expected KindInsufficient, got %v", ae.Kind)
	}
	if ae.Result == nil || ae.Result.Lack == nil || *ae.Result.Lack != 400 {
		t.Fatalf("expected deficit 400, got %+v", ae.Result)
	}
	// No UPDATE should have been issued for a failed reservation.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveInventory_Succeeds(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE holdings SET hold`).
		WithArgs(int64(-10), int64(1), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, _ := db.Begin()
	if err := ReserveInventory(tx, 1, 7, 20, 10); err != nil {
		t.Fatalf("ReserveInventory: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveInventory_Insufficient(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	tx, _ := db.Begin()

	err = ReserveInventory(tx, 1, 7, 3, 10)
	if err == nil {
		t.Fatal("expected an Insufficient error")
	}
	ae := apperr.As(err)
	if ae.Kind != apperr.KindInsufficient {
		t.Fatalf("expected KindInsufficient, got %v", ae.Kind)
	}
	if *ae.Result.Lack != 7 {
		t.Fatalf("expected deficit 7, got %d", *ae.Result.Lack)
	}
}

func TestRefundCash_ZeroIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	tx, _ := db.Begin()
	if err := RefundCash(tx, 1, 0); err != nil {
		t.Fatalf("RefundCash(0): %v", err)
	}
	// No UPDATE expected for a zero refund.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefundInventory_ZeroIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	tx, _ := db.Begin()
	if err := RefundInventory(tx, 1, 7, 0); err != nil {
		t.Fatalf("RefundInventory(0): %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
