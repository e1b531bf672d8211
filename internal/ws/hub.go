package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bistro-pos/api/internal/enum"
	"github.com/bistro-pos/api/internal/events"
	"github.com/google/uuid"
)

// roomMessage is an encoded event addressed to one or more rooms
type roomMessage struct {
	rooms   []string
	message []byte
}

// Hub maintains the set of active clients and broadcasts events to them.
// Staff screens join the "orders" room and see everything; a customer
// screen joins "table:<id>" and only sees its own table.
type Hub struct {
	// Registered clients by room name
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomMessage

	// Closed once Run returns
	done chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomMessage, 256),
		done:       make(chan struct{}),
	}
}

// TableRoom names the room for a single table's subscribers.
func TableRoom(tableID uuid.UUID) string {
	return enum.RoomTablePrefix + tableID.String()
}

// Run is the hub's main loop. It returns when ctx is cancelled, after
// closing every client's send channel.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for room, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, room)
			}
			h.mu.Unlock()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.room] == nil {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for _, room := range msg.rooms {
				for client := range h.rooms[room] {
					select {
					case client.send <- msg.message:
					default:
						// Slow consumer, drop it
						h.removeLocked(client)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.rooms[client.room]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}
}

// Broadcast sends an event to the given rooms. It gives up when ctx is done
// or the hub has stopped.
func (h *Hub) Broadcast(ctx context.Context, ev events.Event, rooms ...string) error {
	message, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- &roomMessage{rooms: rooms, message: message}:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish implements events.Publisher: staff always, plus the table's room.
func (h *Hub) Publish(ctx context.Context, ev events.Event) error {
	rooms := []string{enum.RoomStaff}
	if ev.TableID != nil {
		rooms = append(rooms, TableRoom(*ev.TableID))
	}
	return h.Broadcast(ctx, ev, rooms...)
}

// ClientCount reports connected clients across all rooms.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.rooms {
		n += len(clients)
	}
	return n
}

func (h *Hub) registerClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

var _ events.Publisher = (*Hub)(nil)
