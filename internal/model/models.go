package model

import "time"

// ── Enums ────────────────────────────────────────────

// Side distinguishes which book a resting order rests in.
type Side string

const (
	SideAsk Side = "ASK"
	SideBid Side = "BID"
)

// ── Domain Objects ───────────────────────────────────

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	BalanceCents int64     `json:"balance_cents"`
	CreatedAt    time.Time `json:"created_at"`
}

type Stock struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	IntoMarket   bool       `json:"into_market"`
	IntoMarketAt *time.Time `json:"into_market_at,omitempty"`
}

// NewStockRecord is the one-per-Stock IPO issuance record.
type NewStockRecord struct {
	StockID          int64     `json:"stock_id"`
	IssuerUserID     int64     `json:"issuer_user_id"`
	OfferCirculation int64     `json:"offer_circulation"`
	OfferPriceCents  int       `json:"offer_price_cents"`
	OfferUnfulfilled int64     `json:"offer_unfulfilled"`
	CreatedAt        time.Time `json:"created_at"`
}

type Holding struct {
	UserID    int64     `json:"user_id"`
	StockID   int64     `json:"stock_id"`
	Hold      int64     `json:"hold"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Order is the common shape of a resting ask or bid order. Which table it
// lives in (ask_orders / bid_orders) is tracked by the caller, not the struct.
type Order struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	StockID     int64     `json:"stock_id"`
	PriceCents  int       `json:"price_cents"`
	Volume      int64     `json:"volume"`
	Unfulfilled int64     `json:"unfulfilled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Trade struct {
	ID         int64     `json:"id"`
	BuyUserID  int64     `json:"buy_user_id"`
	SellUserID *int64    `json:"sell_user_id"` // nil ⇔ IPO purchase
	StockID    int64     `json:"stock_id"`
	PriceCents int       `json:"price_cents"`
	Amount     int64     `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

type Favorite struct {
	UserID    int64     `json:"user_id"`
	StockID   int64     `json:"stock_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ── API Types ────────────────────────────────────────

type PlaceOrderReq struct {
	Side       Side  `json:"side"`
	StockID    int64 `json:"stock_id"`
	PriceCents int   `json:"price_cents"`
	Volume     int64 `json:"volume"`
}

// OrderResult is the wire shape returned for every order submission,
// including rejected and insufficient ones — see spec §6.
type OrderResult struct {
	Succeed    bool   `json:"succeed"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	DealAmount *int64 `json:"deal_amount,omitempty"`
	Lack       *int64 `json:"lack,omitempty"`
}

type BookLevel struct {
	PriceCents int   `json:"price_cents"`
	Amount     int64 `json:"amount"`
}

type BookSnapshot struct {
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

type TimeBucket struct {
	Time       time.Time `json:"time"`
	PriceCents *float64  `json:"price_cents"`
}

type Quotation struct {
	TimeSeries   []TimeBucket `json:"time_series"`
	RecentTrades []Trade      `json:"recent_trades"`
	Depth        BookSnapshot `json:"depth"`
	LastPrice    *int         `json:"last_price"`
}

type Paging struct {
	Offset int
	Limit  int
}

func (p Paging) WithDefaults() Paging {
	out := p
	if out.Limit <= 0 {
		out.Limit = 10
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	return out
}
