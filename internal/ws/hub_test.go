package ws

import "testing"

func TestSubscribePublishDelivers(t *testing.T) {
	h := NewHub()
	c := &conn{send: make(chan []byte, 1)}

	h.subscribe(c, "9")
	h.Publish("9", "depth", map[string]int{"levels": 2})

	select {
	case b := <-c.send:
		if len(b) == 0 {
			t.Fatal("expected a non-empty message")
		}
	default:
		t.Fatal("expected a message to be queued for the subscriber")
	}
}

func TestPublishSkipsOtherStocks(t *testing.T) {
	h := NewHub()
	c := &conn{send: make(chan []byte, 1)}

	h.subscribe(c, "9")
	h.Publish("7", "trade", map[string]int{"price_cents": 100})

	select {
	case <-c.send:
		t.Fatal("did not expect a message for a different stock_id")
	default:
	}
}

func TestResubscribeMovesBetweenRooms(t *testing.T) {
	h := NewHub()
	c := &conn{send: make(chan []byte, 1)}

	h.subscribe(c, "9")
	h.subscribe(c, "7")

	if _, ok := h.rooms["9"]; ok {
		t.Fatal("expected stock 9's room to be cleaned up after resubscribing")
	}
	if room, ok := h.rooms["7"]; !ok || !room[c] {
		t.Fatal("expected the connection to be registered under stock 7")
	}
}

func TestUnsubscribeRemovesFromRoom(t *testing.T) {
	h := NewHub()
	c := &conn{send: make(chan []byte, 1)}

	h.subscribe(c, "9")
	h.unsubscribe(c, "9")

	h.Publish("9", "depth", nil)
	select {
	case <-c.send:
		t.Fatal("did not expect a message after unsubscribing")
	default:
	}
	if _, ok := h.rooms["9"]; ok {
		t.Fatal("expected the empty room to be removed")
	}
}

func TestRemoveConnClearsAllState(t *testing.T) {
	h := NewHub()
	c := &conn{send: make(chan []byte, 1)}

	h.mu.Lock()
	h.allConn[c] = true
	h.mu.Unlock()
	h.subscribe(c, "9")

	h.removeConn(c)

	if _, ok := h.allConn[c]; ok {
		t.Fatal("expected connection to be removed from allConn")
	}
	if _, ok := h.rooms["9"]; ok {
		t.Fatal("expected stock 9's room to be removed")
	}
	if _, ok := <-c.send; ok {
		t.Fatal("expected send channel to be closed")
	}
}
