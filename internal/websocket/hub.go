package websocket

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"
)

// Client wraps a WebSocket connection.
type Client struct {
	Conn *websocket.Conn
	Mu   sync.Mutex
}

// Hub fans entity-change events out to every connected client.
type Hub struct {
	Clients    map[*Client]bool
	Broadcast  chan []byte
	Register   chan *Client
	Unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Broadcast:  make(chan []byte, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run manages register, unregister and broadcast for the hub.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.Clients[client] = true
		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				client.Conn.Close()
			}
		case message := <-h.Broadcast:
			for client := range h.Clients {
				client.Mu.Lock()
				err := client.Conn.WriteMessage(websocket.TextMessage, message)
				client.Mu.Unlock()
				if err != nil {
					delete(h.Clients, client)
					client.Conn.Close()
				}
			}
		}
	}
}

// Notify publishes an entity-change event without blocking the caller.
// Events are dropped when the broadcast buffer is full or the hub is nil
// (tests run without a hub).
func (h *Hub) Notify(event string, payload interface{}) {
	if h == nil {
		return
	}
	msg, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  payload,
	})
	if err != nil {
		return
	}
	select {
	case h.Broadcast <- msg:
	default:
	}
}
