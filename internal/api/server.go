// Package api is the HTTP dispatch and session/identity component: a chi
// router under /stock-api/v1, with bcrypt register/login and a signed JWT
// carried in a session cookie rather than a bearer header (see DESIGN.md —
// adapted from original_source/src/main.rs's CookieIdentityPolicy).
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"stock-exchange/internal/apperr"
	"stock-exchange/internal/ledger"
	"stock-exchange/internal/matching"
	"stock-exchange/internal/model"
	"stock-exchange/internal/quotation"
	"stock-exchange/internal/ws"
)

const (
	sessionCookieName = "stock-login-token"
	sessionCookiePath = "/stock-api"
	sessionMaxAge     = 3 * 24 * time.Hour
)

type Server struct {
	store  *ledger.Store
	engine *matching.Engine
	quotes *quotation.Service
	hub    *ws.Hub
	secret []byte
}

func NewServer(store *ledger.Store, engine *matching.Engine, quotes *quotation.Service, hub *ws.Hub, secret string) *Server {
	return &Server{store: store, engine: engine, quotes: quotes, hub: hub, secret: []byte(secret)}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json200(w, map[string]string{"status": "ok"})
	})

	r.Get("/ws", s.hub.HandleWS)

	r.Route("/stock-api/v1", func(r chi.Router) {
		r.Post("/register", s.register)
		r.Post("/login", s.login)

		r.Get("/stocks", s.listStocks)
		r.Get("/stocks/by-name/{name}", s.getStockByName)
		r.Get("/stocks/{id}", s.getStock)
		r.Get("/stocks/{id}/quotation", s.getQuotation)
		r.Get("/stocks/{id}/depth", s.getDepth)
		r.Get("/stocks/{id}/trades", s.getRecentTrades)
		r.Get("/stocks/{ids}/prices", s.batchPrices)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/me", s.getMe)
			r.Post("/me/deposit", s.deposit)
			r.Get("/me/holdings", s.listMyHoldings)
			r.Get("/stocks/{ids}/holding", s.batchHoldings)

			r.Post("/stocks", s.createIPO)
			r.Post("/stocks/{id}/list", s.listStock)
			r.Post("/stocks/{id}/ipo-buy", s.ipoBuy)

			r.Post("/orders", s.placeOrder)
			r.Delete("/orders/{side}/{id}", s.cancelOrder)
			r.Get("/orders/{side}", s.listMyOrders)

			r.Get("/favorites", s.listFavorites)
			r.Put("/favorites/{stockId}", s.addFavorite)
			r.Delete("/favorites/{stockId}", s.removeFavorite)
		})
	})

	return r
}

// ── Auth ─────────────────────────────────────────────

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, apperr.BadRequest("invalid json"))
		return
	}
	if req.Name == "" || len(req.Password) < 6 {
		writeErr(w, apperr.BadRequest("name and password (min 6 chars) required"))
		return
	}

	existing, err := s.store.GetUserByName(r.Context(), req.Name)
	if err != nil {
		writeErr(w, apperr.Internal("lookup user: %v", err))
		return
	}
	if existing != nil {
		writeErr(w, apperr.BadRequest("name already registered"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeErr(w, apperr.Internal("hash password: %v", err))
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Name, string(hash))
	if err != nil {
		writeErr(w, apperr.Internal("create user: %v", err))
		return
	}

	s.issueSession(w, user.ID)
	json200(w, user)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, apperr.BadRequest("invalid json"))
		return
	}

	user, err := s.store.GetUserByName(r.Context(), req.Name)
	if err != nil {
		writeErr(w, apperr.Internal("lookup user: %v", err))
		return
	}
	if user == nil {
		writeErr(w, apperr.Unauthorized("invalid credentials"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeErr(w, apperr.Unauthorized("invalid credentials"))
		return
	}

	s.issueSession(w, user.ID)
	json200(w, user)
}

func (s *Server) issueSession(w http.ResponseWriter, userID int64) {
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"exp": time.Now().Add(sessionMaxAge).Unix(),
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     sessionCookiePath,
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ── Middleware ────────────────────────────────────────

type ctxKey string

const (
	ctxUserID    ctxKey = "userID"
	ctxRequestID ctxKey = "requestID"
)

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			writeErr(w, apperr.Unauthorized("missing session cookie"))
			return
		}
		token, err := jwt.Parse(cookie.Value, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return s.secret, nil
		})
		if err != nil || !token.Valid {
			writeErr(w, apperr.Unauthorized("invalid session"))
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeErr(w, apperr.Unauthorized("invalid claims"))
			return
		}
		sub, _ := claims["sub"].(string)
		userID, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			writeErr(w, apperr.Unauthorized("invalid subject"))
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestIDMiddleware stamps every response with a surrogate request id, for
// correlating a submission's log lines across the Matching Engine and HTTP
// layers without exposing any Ledger Store primary key.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxRequestID, id)))
	})
}

func userIDFrom(r *http.Request) int64 {
	id, _ := r.Context().Value(ctxUserID).(int64)
	return id
}

// ── Helpers ──────────────────────────────────────────

func json200(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeErr(w http.ResponseWriter, err error) {
	ae := apperr.As(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.Kind.HTTPStatus())
	if ae.Result != nil {
		json.NewEncoder(w).Encode(ae.Result)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"error": ae.Message})
}

func pagingFromQuery(r *http.Request) model.Paging {
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return model.Paging{Offset: offset, Limit: limit}.WithDefaults()
}

func parseIDListParam(raw string) ([]int64, error) {
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("ids must be a JSON array of integers: %w", err)
	}
	return ids, nil
}
