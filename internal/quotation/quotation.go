// Package quotation is the Market Data Projection: read-only views built
// from the Ledger Store's trades and resting-order tables. Grounded on
// original_source/src/handlers/quotation.rs's four parallel queries
// (time-bucketed VWAP, recent non-IPO trades, ask/bid depth, last price).
package quotation

import (
	"context"
	"time"

	"stock-exchange/internal/ledger"
	"stock-exchange/internal/model"
)

const defaultDepthLevels = 10

type Service struct {
	Store *ledger.Store
}

func New(store *ledger.Store) *Service {
	return &Service{Store: store}
}

// Get assembles the full Quotation for a stock: a VWAP time series bucketed
// at the given interval over [since, until), the most recent non-IPO trades,
// aggregated order-book depth, and the last traded price.
func (s *Service) Get(ctx context.Context, stockID int64, bucket string, since, until time.Time, recentLimit int) (*model.Quotation, error) {
	series, err := s.Store.TimeSeriesVWAP(ctx, stockID, bucket, since, until)
	if err != nil {
		return nil, err
	}
	recent, err := s.Store.ListRecentTrades(ctx, stockID, recentLimit)
	if err != nil {
		return nil, err
	}
	depth, err := s.Depth(ctx, stockID, defaultDepthLevels)
	if err != nil {
		return nil, err
	}
	last, err := s.Store.LastPrice(ctx, stockID)
	if err != nil {
		return nil, err
	}
	return &model.Quotation{
		TimeSeries:   series,
		RecentTrades: recent,
		Depth:        *depth,
		LastPrice:    last,
	}, nil
}

// Depth returns aggregated book depth, best price first on each side, up to
// levels price points per side.
func (s *Service) Depth(ctx context.Context, stockID int64, levels int) (*model.BookSnapshot, error) {
	bids, err := ledger.DepthLevels(ctx, s.Store.DB, model.SideBid, stockID, levels)
	if err != nil {
		return nil, err
	}
	asks, err := ledger.DepthLevels(ctx, s.Store.DB, model.SideAsk, stockID, levels)
	if err != nil {
		return nil, err
	}
	return &model.BookSnapshot{Bids: bids, Asks: asks}, nil
}

func (s *Service) RecentTrades(ctx context.Context, stockID int64, limit int) ([]model.Trade, error) {
	return s.Store.ListRecentTrades(ctx, stockID, limit)
}

func (s *Service) TimeSeries(ctx context.Context, stockID int64, bucket string, since, until time.Time) ([]model.TimeBucket, error) {
	return s.Store.TimeSeriesVWAP(ctx, stockID, bucket, since, until)
}

func (s *Service) LastPrice(ctx context.Context, stockID int64) (*int, error) {
	return s.Store.LastPrice(ctx, stockID)
}
