// Package ws adapts the teacher's per-market WebSocket pub/sub hub into a
// live market-data push channel keyed by stock_id: subscribers receive the
// messages published for the stock they subscribe to. The only publisher is
// the API's order handler, which sends a "trade" message; no book depth
// snapshots are published.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Msg is a message sent to clients.
type Msg struct {
	Type    string `json:"type"`
	StockID string `json:"stock_id"`
	Data    any    `json:"data"`
}

// Hub manages per-stock WebSocket subscriptions.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*conn]bool // stockID -> set of conns
	allConn map[*conn]bool
}

type conn struct {
	ws    *websocket.Conn
	send  chan []byte
	hub   *Hub
	stock string
}

func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*conn]bool),
		allConn: make(map[*conn]bool),
	}
}

// Publish sends a message to all subscribers of a stock — used by the API's
// order handler, which publishes a "trade" message carrying the OrderResult
// after every successful submission, filled or not.
func (h *Hub) Publish(stockID, msgType string, data any) {
	msg := Msg{Type: msgType, StockID: stockID, Data: data}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	room := h.rooms[stockID]
	h.mu.RUnlock()
	for c := range room {
		select {
		case c.send <- b:
		default:
			// slow client, drop
		}
	}
}

// HandleWS is the HTTP handler for WebSocket connections, mounted at /ws.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}
	c := &conn{
		ws:   wsConn,
		send: make(chan []byte, 64),
		hub:  h,
	}
	h.mu.Lock()
	h.allConn[c] = true
	h.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

func (c *conn) readPump() {
	defer func() {
		c.hub.removeConn(c)
		c.ws.Close()
	}()
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			break
		}
		// Parse subscription message: {"action":"subscribe","stock_id":"..."}
		var sub struct {
			Action  string `json:"action"`
			StockID string `json:"stock_id"`
		}
		if err := json.Unmarshal(msg, &sub); err != nil {
			continue
		}
		switch sub.Action {
		case "subscribe":
			c.hub.subscribe(c, sub.StockID)
		case "unsubscribe":
			c.hub.unsubscribe(c, sub.StockID)
		}
	}
}

func (c *conn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}

func (h *Hub) subscribe(c *conn, stockID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.stock != "" {
		if room, ok := h.rooms[c.stock]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, c.stock)
			}
		}
	}
	c.stock = stockID
	room, ok := h.rooms[stockID]
	if !ok {
		room = make(map[*conn]bool)
		h.rooms[stockID] = room
	}
	room[c] = true
}

func (h *Hub) unsubscribe(c *conn, stockID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[stockID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, stockID)
		}
	}
	if c.stock == stockID {
		c.stock = ""
	}
}

func (h *Hub) removeConn(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.allConn, c)
	if c.stock != "" {
		if room, ok := h.rooms[c.stock]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, c.stock)
			}
		}
	}
	close(c.send)
}
