package matching

import (
	"context"

	"stock-exchange/internal/apperr"
	"stock-exchange/internal/ledger"
	"stock-exchange/internal/model"
)

// IPOBuy settles a primary-market purchase against the issuing NewStockRecord's
// remaining offer, at the fixed offer price, sharing the same reservation and
// commit machinery as secondary-market matching (§4.5). The resulting Trade
// carries sell_user_id = NULL, the marker for an IPO fill (Open Question 3).
func (e *Engine) IPOBuy(ctx context.Context, buyerID int64, stockID int64, volume int64) (*model.OrderResult, error) {
	if volume <= 0 {
		return nil, apperr.BadRequest("volume must be positive")
	}

	tx, err := e.Store.BeginTx(ctx)
	if err != nil {
		return nil, apperr.Internal("begin tx: %v", err)
	}
	defer tx.Rollback()

	buyer, err := ledger.GetUserForUpdate(tx, buyerID)
	if err != nil {
		return nil, apperr.Internal("lock buyer: %v", err)
	}
	if buyer == nil {
		return nil, apperr.Unauthorized("unknown user")
	}

	stock, err := ledger.GetStockForUpdate(tx, stockID)
	if err != nil {
		return nil, apperr.Internal("lock stock: %v", err)
	}
	if stock == nil {
		return nil, apperr.NotFound("stock %d not found", stockID)
	}
	if stock.IntoMarket {
		return nil, apperr.BadRequest("stock %d is already listed on the secondary market", stockID)
	}

	rec, err := ledger.GetNewStockRecordForUpdate(tx, stockID)
	if err != nil {
		return nil, apperr.Internal("lock offer record: %v", err)
	}
	if rec == nil {
		return nil, apperr.NotFound("stock %d has no IPO offer", stockID)
	}
	if volume > rec.OfferUnfulfilled {
		return nil, apperr.BadRequest("only %d shares remain in the offer", rec.OfferUnfulfilled)
	}

	cost := int64(rec.OfferPriceCents) * volume
	if err := ledger.ReserveCash(tx, buyer.ID, buyer.BalanceCents, cost); err != nil {
		return nil, err
	}

	if err := ledger.AddBalanceTx(tx, rec.IssuerUserID, cost); err != nil {
		return nil, apperr.Internal("credit issuer: %v", err)
	}

	if _, err := ledger.GetHoldingForUpdate(tx, buyer.ID, stockID); err != nil {
		return nil, apperr.Internal("lock buyer holding: %v", err)
	}
	if err := ledger.AddHoldingTx(tx, buyer.ID, stockID, volume); err != nil {
		return nil, apperr.Internal("credit buyer holding: %v", err)
	}

	if err := ledger.DecrementOfferUnfulfilledTx(tx, stockID, volume); err != nil {
		return nil, apperr.Internal("decrement offer: %v", err)
	}

	if _, err := ledger.InsertTradeTx(tx, buyer.ID, nil, stockID, rec.OfferPriceCents, volume); err != nil {
		return nil, apperr.Internal("insert trade: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("commit: %v", err)
	}
	dealAmount := volume
	return &model.OrderResult{Succeed: true, DealAmount: &dealAmount}, nil
}

// ListStock transitions a stock from the primary market to the continuous
// secondary market. Only the issuing user may call it, and it never reverts
// (§4.5).
func (e *Engine) ListStock(ctx context.Context, callerID int64, stockID int64) error {
	tx, err := e.Store.BeginTx(ctx)
	if err != nil {
		return apperr.Internal("begin tx: %v", err)
	}
	defer tx.Rollback()

	rec, err := ledger.GetNewStockRecordForUpdate(tx, stockID)
	if err != nil {
		return apperr.Internal("lock offer record: %v", err)
	}
	if rec == nil {
		return apperr.NotFound("stock %d has no IPO offer", stockID)
	}
	if rec.IssuerUserID != callerID {
		return apperr.Unauthorized("only the issuer may list stock %d", stockID)
	}

	if err := ledger.ListStockTx(tx, stockID); err != nil {
		return apperr.BadRequest("%v", err)
	}

	if err := tx.Commit(); err != nil {
		return apperr.Internal("commit: %v", err)
	}
	return nil
}
