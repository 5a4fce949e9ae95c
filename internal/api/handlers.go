package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"stock-exchange/internal/apperr"
	"stock-exchange/internal/model"
)

func stockIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, apperr.BadRequest("invalid stock id")
	}
	return id, nil
}

// ── Users ────────────────────────────────────────────

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUser(r.Context(), userIDFrom(r))
	if err != nil {
		writeErr(w, apperr.Internal("get user: %v", err))
		return
	}
	if user == nil {
		writeErr(w, apperr.NotFound("user not found"))
		return
	}
	json200(w, user)
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cents int64 `json:"cents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Cents <= 0 {
		writeErr(w, apperr.BadRequest("cents must be a positive integer"))
		return
	}
	user, err := s.store.DepositCash(r.Context(), userIDFrom(r), req.Cents)
	if err != nil {
		writeErr(w, apperr.Internal("deposit: %v", err))
		return
	}
	json200(w, user)
}

func (s *Server) listMyHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.store.ListHoldingsForUser(r.Context(), userIDFrom(r))
	if err != nil {
		writeErr(w, apperr.Internal("list holdings: %v", err))
		return
	}
	if holdings == nil {
		holdings = []model.Holding{}
	}
	json200(w, holdings)
}

func (s *Server) batchHoldings(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDListParam(chi.URLParam(r, "ids"))
	if err != nil {
		writeErr(w, apperr.BadRequest("%v", err))
		return
	}
	holdings, err := s.store.ListHoldingsByStockIDs(r.Context(), userIDFrom(r), ids)
	if err != nil {
		writeErr(w, apperr.Internal("list holdings: %v", err))
		return
	}
	if holdings == nil {
		holdings = []model.Holding{}
	}
	json200(w, holdings)
}

// ── Stocks / IPO ─────────────────────────────────────

func (s *Server) listStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := s.store.ListListedStocks(r.Context(), pagingFromQuery(r))
	if err != nil {
		writeErr(w, apperr.Internal("list stocks: %v", err))
		return
	}
	if stocks == nil {
		stocks = []model.Stock{}
	}
	json200(w, stocks)
}

func (s *Server) getStock(w http.ResponseWriter, r *http.Request) {
	id, err := stockIDParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	stock, err := s.store.GetStock(r.Context(), id)
	if err != nil {
		writeErr(w, apperr.Internal("get stock: %v", err))
		return
	}
	if stock == nil {
		writeErr(w, apperr.NotFound("stock %d not found", id))
		return
	}
	json200(w, stock)
}

func (s *Server) getStockByName(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	stock, err := s.store.GetStockByName(r.Context(), name)
	if err != nil {
		writeErr(w, apperr.Internal("get stock: %v", err))
		return
	}
	if stock == nil {
		writeErr(w, apperr.NotFound("stock %q not found", name))
		return
	}
	json200(w, stock)
}

func (s *Server) batchPrices(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDListParam(chi.URLParam(r, "ids"))
	if err != nil {
		writeErr(w, apperr.BadRequest("%v", err))
		return
	}
	out := make(map[int64]*int, len(ids))
	for _, id := range ids {
		price, err := s.quotes.LastPrice(r.Context(), id)
		if err != nil {
			writeErr(w, apperr.Internal("last price: %v", err))
			return
		}
		out[id] = price
	}
	json200(w, out)
}

func (s *Server) createIPO(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string `json:"name"`
		Circulation     int64  `json:"circulation"`
		OfferPriceCents int    `json:"offer_price_cents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, apperr.BadRequest("invalid json"))
		return
	}
	if req.Name == "" || req.Circulation <= 0 || req.OfferPriceCents <= 0 {
		writeErr(w, apperr.BadRequest("name, circulation and offer_price_cents must be set and positive"))
		return
	}
	stock, rec, err := s.store.CreateIPO(r.Context(), userIDFrom(r), req.Name, req.Circulation, req.OfferPriceCents)
	if err != nil {
		writeErr(w, apperr.Internal("create ipo: %v", err))
		return
	}
	json200(w, map[string]any{"stock": stock, "offer": rec})
}

func (s *Server) listStock(w http.ResponseWriter, r *http.Request) {
	id, err := stockIDParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := s.engine.ListStock(r.Context(), userIDFrom(r), id); err != nil {
		writeErr(w, err)
		return
	}
	json200(w, map[string]bool{"listed": true})
}

func (s *Server) ipoBuy(w http.ResponseWriter, r *http.Request) {
	id, err := stockIDParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req struct {
		Volume int64 `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, apperr.BadRequest("invalid json"))
		return
	}
	result, err := s.engine.IPOBuy(r.Context(), userIDFrom(r), id, req.Volume)
	if err != nil {
		writeErr(w, err)
		return
	}
	json200(w, result)
}

// ── Orders ───────────────────────────────────────────

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req model.PlaceOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, apperr.BadRequest("invalid json"))
		return
	}
	result, err := s.engine.Submit(r.Context(), userIDFrom(r), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	if result.Succeed {
		s.hub.Publish(strconv.FormatInt(req.StockID, 10), "trade", result)
	}
	json200(w, result)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	side := model.Side(chi.URLParam(r, "side"))
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErr(w, apperr.BadRequest("invalid order id"))
		return
	}
	if err := s.engine.Cancel(r.Context(), userIDFrom(r), side, id); err != nil {
		writeErr(w, err)
		return
	}
	json200(w, map[string]bool{"cancelled": true})
}

func (s *Server) listMyOrders(w http.ResponseWriter, r *http.Request) {
	side := model.Side(chi.URLParam(r, "side"))
	orders, err := s.store.ListMyOrders(r.Context(), side, userIDFrom(r), pagingFromQuery(r))
	if err != nil {
		writeErr(w, apperr.Internal("list orders: %v", err))
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	json200(w, orders)
}

// ── Market data ──────────────────────────────────────

func (s *Server) getQuotation(w http.ResponseWriter, r *http.Request) {
	id, err := stockIDParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		bucket = "1 minute"
	}
	until := time.Now()
	since := until.Add(-1 * time.Hour)
	q, err := s.quotes.Get(r.Context(), id, bucket, since, until, 50)
	if err != nil {
		writeErr(w, apperr.Internal("quotation: %v", err))
		return
	}
	json200(w, q)
}

func (s *Server) getDepth(w http.ResponseWriter, r *http.Request) {
	id, err := stockIDParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	depth, err := s.quotes.Depth(r.Context(), id, 10)
	if err != nil {
		writeErr(w, apperr.Internal("depth: %v", err))
		return
	}
	json200(w, depth)
}

func (s *Server) getRecentTrades(w http.ResponseWriter, r *http.Request) {
	id, err := stockIDParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	limit := 50
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 200 {
		limit = n
	}
	trades, err := s.quotes.RecentTrades(r.Context(), id, limit)
	if err != nil {
		writeErr(w, apperr.Internal("recent trades: %v", err))
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	json200(w, trades)
}

// ── Favorites ────────────────────────────────────────

func (s *Server) listFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := s.store.ListFavorites(r.Context(), userIDFrom(r))
	if err != nil {
		writeErr(w, apperr.Internal("list favorites: %v", err))
		return
	}
	if favs == nil {
		favs = []model.Favorite{}
	}
	json200(w, favs)
}

func (s *Server) addFavorite(w http.ResponseWriter, r *http.Request) {
	stockID, err := strconv.ParseInt(chi.URLParam(r, "stockId"), 10, 64)
	if err != nil {
		writeErr(w, apperr.BadRequest("invalid stock id"))
		return
	}
	if err := s.store.AddFavorite(r.Context(), userIDFrom(r), stockID); err != nil {
		writeErr(w, apperr.Internal("add favorite: %v", err))
		return
	}
	json200(w, map[string]bool{"favorited": true})
}

func (s *Server) removeFavorite(w http.ResponseWriter, r *http.Request) {
	stockID, err := strconv.ParseInt(chi.URLParam(r, "stockId"), 10, 64)
	if err != nil {
		writeErr(w, apperr.BadRequest("invalid stock id"))
		return
	}
	if err := s.store.RemoveFavorite(r.Context(), userIDFrom(r), stockID); err != nil {
		writeErr(w, apperr.Internal("remove favorite: %v", err))
		return
	}
	json200(w, map[string]bool{"favorited": false})
}
