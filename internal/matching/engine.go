// Package matching is the Matching Engine, IPO Settlement and Cancellation
// component. The Order Book View it runs against is not an in-memory
// structure — it queries ask_orders/bid_orders directly inside the
// submission transaction, since the Ledger Store's Postgres tables are
// already the durable book (see DESIGN.md).
package matching

import (
	"context"
	"database/sql"

	"stock-exchange/internal/apperr"
	"stock-exchange/internal/ledger"
	"stock-exchange/internal/model"
)

type Engine struct {
	Store *ledger.Store
}

func New(store *ledger.Store) *Engine {
	return &Engine{Store: store}
}

// Submit places a new order and matches it against the resting book in one
// serializable transaction, which is what rules out lost updates (§4.1,
// §4.4). Rows are locked in this order: the submitting user, the stock,
// the seller's own holding (asks only), the resting counter-orders, then
// each counterparty's holding inside the match loop. Counterparty user
// rows are updated without a prior lock, so this is not a fixed
// users → holdings → orders order.
func (e *Engine) Submit(ctx context.Context, userID int64, req model.PlaceOrderReq) (*model.OrderResult, error) {
	if req.PriceCents <= 0 || req.Volume <= 0 {
		return nil, apperr.BadRequest("price and volume must be positive")
	}

	tx, err := e.Store.BeginTx(ctx)
	if err != nil {
		return nil, apperr.Internal("begin tx: %v", err)
	}
	defer tx.Rollback()

	user, err := ledger.GetUserForUpdate(tx, userID)
	if err != nil {
		return nil, apperr.Internal("lock user: %v", err)
	}
	if user == nil {
		return nil, apperr.Unauthorized("unknown user")
	}

	stock, err := ledger.GetStockForUpdate(tx, req.StockID)
	if err != nil {
		return nil, apperr.Internal("lock stock: %v", err)
	}
	if stock == nil {
		return nil, apperr.NotFound("stock %d not found", req.StockID)
	}
	if !stock.IntoMarket {
		return nil, apperr.BadRequest("stock %d is not listed on the secondary market", req.StockID)
	}

	var result *model.OrderResult
	switch req.Side {
	case model.SideBid:
		result, err = e.submitBid(tx, user, stock, req)
	case model.SideAsk:
		result, err = e.submitAsk(tx, user, stock, req)
	default:
		return nil, apperr.BadRequest("unknown side %q", req.Side)
	}
	if err != nil {
		if ae := apperr.As(err); ae.Kind == apperr.KindInsufficient {
			// Insufficient funds/inventory is reported to the caller as an
			// unsuccessful OrderResult rather than an error; the deferred
			// Rollback discards the transaction, so nothing persists.
			return ae.Result, nil
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Internal("commit: %v", err)
	}
	return result, nil
}

// submitBid reserves cash up front (price*volume), then walks the ask book
// from lowest price first, crediting the taker's price-improvement excess
// whenever a fill happens at a price below its limit (§4.4, Open Question 2).
func (e *Engine) submitBid(tx *sql.Tx, buyer *model.User, stock *model.Stock, req model.PlaceOrderReq) (*model.OrderResult, error) {
	cost := int64(req.PriceCents) * req.Volume
	if err := ledger.ReserveCash(tx, buyer.ID, buyer.BalanceCents, cost); err != nil {
		return nil, err
	}

	// The incoming order is persisted up front, at full volume, and
	// decremented in place as it matches — mirroring how a counter-order is
	// decremented rather than deleted. A fully-filled order still leaves a
	// row behind (unfulfilled=0); only Cancel deletes a row.
	order, err := ledger.InsertOrderTx(tx, model.SideBid, buyer.ID, stock.ID, req.PriceCents, req.Volume)
	if err != nil {
		return nil, apperr.Internal("insert bid: %v", err)
	}

	asks, err := ledger.ListRestingForMatch(tx, model.SideAsk, stock.ID)
	if err != nil {
		return nil, apperr.Internal("list asks: %v", err)
	}

	remaining := req.Volume
	var dealAmount int64
	for _, ask := range asks {
		if remaining == 0 {
			break
		}
		if ask.PriceCents > req.PriceCents {
			break // book is ascending; nothing further can cross
		}

		fill := min64(remaining, ask.Unfulfilled)
		dealPrice := ask.PriceCents // maker-price execution

		sellerID := ask.UserID
		if _, err := ledger.InsertTradeTx(tx, buyer.ID, &sellerID, stock.ID, dealPrice, fill); err != nil {
			return nil, apperr.Internal("insert trade: %v", err)
		}
		if _, err := ledger.DecrementUnfulfilledTx(tx, model.SideAsk, ask.ID, fill); err != nil {
			return nil, apperr.Internal("decrement ask: %v", err)
		}
		if _, err := ledger.DecrementUnfulfilledTx(tx, model.SideBid, order.ID, fill); err != nil {
			return nil, apperr.Internal("decrement bid: %v", err)
		}

		sellerHold, err := ledger.GetHoldingForUpdate(tx, sellerID, stock.ID)
		if err != nil {
			return nil, apperr.Internal("lock seller holding: %v", err)
		}
		_ = sellerHold // inventory already reserved at ask placement; nothing to debit here
		if err := ledger.AddBalanceTx(tx, sellerID, dealPrice*fill); err != nil {
			return nil, apperr.Internal("credit seller: %v", err)
		}

		buyerHold, err := ledger.GetHoldingForUpdate(tx, buyer.ID, stock.ID)
		if err != nil {
			return nil, apperr.Internal("lock buyer holding: %v", err)
		}
		_ = buyerHold
		if err := ledger.AddHoldingTx(tx, buyer.ID, stock.ID, fill); err != nil {
			return nil, apperr.Internal("credit buyer holding: %v", err)
		}

		// Price-improvement refund: the buyer reserved at its own limit
		// price, but the resting ask filled at a lower price.
		if req.PriceCents > dealPrice {
			excess := int64(req.PriceCents-dealPrice) * fill
			if err := ledger.RefundCash(tx, buyer.ID, excess); err != nil {
				return nil, apperr.Internal("refund excess: %v", err)
			}
		}

		remaining -= fill
		dealAmount += fill
	}

	return &model.OrderResult{Succeed: true, DealAmount: &dealAmount}, nil
}

// submitAsk reserves inventory up front (never cash — asks do not pre-pay),
// then walks the bid book from highest price first. Because the ask never
// reserved cash there is no excess to give back on this side; the maker
// (resting bid) owner is the one whose price applies.
func (e *Engine) submitAsk(tx *sql.Tx, seller *model.User, stock *model.Stock, req model.PlaceOrderReq) (*model.OrderResult, error) {
	sellerHold, err := ledger.GetHoldingForUpdate(tx, seller.ID, stock.ID)
	if err != nil {
		return nil, apperr.Internal("lock seller holding: %v", err)
	}
	if err := ledger.ReserveInventory(tx, seller.ID, stock.ID, sellerHold.Hold, req.Volume); err != nil {
		return nil, err
	}

	order, err := ledger.InsertOrderTx(tx, model.SideAsk, seller.ID, stock.ID, req.PriceCents, req.Volume)
	if err != nil {
		return nil, apperr.Internal("insert ask: %v", err)
	}

	bids, err := ledger.ListRestingForMatch(tx, model.SideBid, stock.ID)
	if err != nil {
		return nil, apperr.Internal("list bids: %v", err)
	}

	remaining := req.Volume
	var dealAmount int64
	for _, bid := range bids {
		if remaining == 0 {
			break
		}
		if bid.PriceCents < req.PriceCents {
			break // book is descending; nothing further can cross
		}

		fill := min64(remaining, bid.Unfulfilled)
		dealPrice := bid.PriceCents // maker-price execution

		buyerID := bid.UserID
		if _, err := ledger.InsertTradeTx(tx, buyerID, &seller.ID, stock.ID, dealPrice, fill); err != nil {
			return nil, apperr.Internal("insert trade: %v", err)
		}
		if _, err := ledger.DecrementUnfulfilledTx(tx, model.SideBid, bid.ID, fill); err != nil {
			return nil, apperr.Internal("decrement bid: %v", err)
		}
		if _, err := ledger.DecrementUnfulfilledTx(tx, model.SideAsk, order.ID, fill); err != nil {
			return nil, apperr.Internal("decrement ask: %v", err)
		}

		if err := ledger.AddBalanceTx(tx, seller.ID, dealPrice*fill); err != nil {
			return nil, apperr.Internal("credit seller: %v", err)
		}

		buyerHold, err := ledger.GetHoldingForUpdate(tx, buyerID, stock.ID)
		if err != nil {
			return nil, apperr.Internal("lock buyer holding: %v", err)
		}
		_ = buyerHold
		if err := ledger.AddHoldingTx(tx, buyerID, stock.ID, fill); err != nil {
			return nil, apperr.Internal("credit buyer holding: %v", err)
		}

		// No refund here: an ask never reserved cash, so there is no
		// price-improvement excess to give back on this side (Open
		// Question 2 — the resting bid's own cash reservation already
		// accounted for any difference between its limit and dealPrice,
		// since dealPrice always equals the bid's own limit here).

		remaining -= fill
		dealAmount += fill
	}

	return &model.OrderResult{Succeed: true, DealAmount: &dealAmount}, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
