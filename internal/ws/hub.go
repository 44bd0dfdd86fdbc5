package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tumalove/tumalove-backend/internal/models"
)

// Event is one transaction change notification delivered over the push
// channel: {eventType, new: TransactionRecord}.
type Event struct {
	EventType string              `json:"eventType"`
	New       *models.Transaction `json:"new"`
}

// Hub fans transaction change events out to everyone watching a checkout
// request id: websocket clients and in-process subscribers (the status
// observer's push channel).
type Hub struct {
	mu          sync.RWMutex
	clients     map[string]map[*Client]struct{}
	subscribers map[string]map[chan Event]struct{}
	register    chan *Client
	unregister  chan *Client
	broadcast   chan Event
	ctx         context.Context
}

// NewHub creates a hub bound to the server lifetime context.
func NewHub(ctx context.Context) *Hub {
	return &Hub{
		clients:     make(map[string]map[*Client]struct{}),
		subscribers: make(map[string]map[chan Event]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan Event, 32),
		ctx:         ctx,
	}
}

// Run drives the hub's main loop until the server context ends.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case event := <-h.broadcast:
			h.send(event)
		case <-h.ctx.Done():
			return
		}
	}
}

// Register adds a websocket client.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a websocket client.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Publish notifies all watchers of the event's checkout request id.
func (h *Hub) Publish(event Event) {
	if event.New == nil {
		return
	}
	select {
	case h.broadcast <- event:
	case <-h.ctx.Done():
	}
}

// Subscribe returns a channel receiving events for one checkout request id
// and a cancel func that tears the subscription down. Events arriving
// after cancel are dropped, not queued.
func (h *Hub) Subscribe(checkoutID string) (<-chan Event, func()) {
	ch := make(chan Event, 4)

	h.mu.Lock()
	if _, ok := h.subscribers[checkoutID]; !ok {
		h.subscribers[checkoutID] = make(map[chan Event]struct{})
	}
	h.subscribers[checkoutID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if subs, ok := h.subscribers[checkoutID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(h.subscribers, checkoutID)
				}
			}
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.checkoutID]; !ok {
		h.clients[client.checkoutID] = make(map[*Client]struct{})
	}
	h.clients[client.checkoutID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.checkoutID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.checkoutID)
		}
	}
}

func (h *Hub) send(event Event) {
	checkoutID := event.New.CheckoutRequestID

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[checkoutID] {
		select {
		case ch <- event:
		default:
			// Subscriber is not draining; dropping beats blocking the hub.
		}
	}

	if len(h.clients[checkoutID]) == 0 {
		return
	}

	raw, err := json.Marshal(event)
	if err != nil {
		fmt.Printf("ws: failed to serialize event: %v\n", err)
		return
	}

	for client := range h.clients[checkoutID] {
		select {
		case client.send <- raw:
		default:
			go client.Close()
		}
	}
}
