package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestTimeSeriesVWAP_EmptyBucketsCarryNullPrice(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(3 * time.Minute)

	mock.ExpectQuery(`FROM generate_series`).
		WithArgs("1 minute", int64(9), since, until).
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "vwap"}).
			AddRow(since, 100.0).
			AddRow(since.Add(time.Minute), nil).
			AddRow(since.Add(2*time.Minute), nil))

	s := &Store{DB: db}
	series, err := s.TimeSeriesVWAP(context.Background(), 9, "1 minute", since, until)
	if err != nil {
		t.Fatalf("TimeSeriesVWAP: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("expected one row per bucket across the window, got %d", len(series))
	}
	if series[0].PriceCents == nil || *series[0].PriceCents != 100.0 {
		t.Fatalf("expected the traded bucket to carry its VWAP, got %+v", series[0])
	}
	if series[1].PriceCents != nil || series[2].PriceCents != nil {
		t.Fatalf("expected empty buckets to carry a null price, got %+v and %+v", series[1], series[2])
	}
}
