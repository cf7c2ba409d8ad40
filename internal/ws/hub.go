package ws

import (
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"sync"

	"messaging-core/internal/models"
	"messaging-core/internal/observability"
)

// UserRoom keys the per-user room every connection joins for its lifetime.
func UserRoom(userID int) string {
	return "user:" + strconv.Itoa(userID)
}

// ConversationRoom keys the broadcast room of one conversation.
func ConversationRoom(conversationID int) string {
	return "conversation:" + strconv.Itoa(conversationID)
}

func roomKind(room string) string {
	if strings.HasPrefix(room, "user:") {
		return "user"
	}
	return "conversation"
}

// Hub is the room registry: an in-process address book mapping room keys to
// the connections subscribed to them. It holds no durable state and is
// rebuilt from scratch on restart; connections re-join at connect.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	joined map[*Client]map[string]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		joined: make(map[*Client]map[string]struct{}),
	}
}

// Join registers the client in the room, creating it if absent. Idempotent.
func (h *Hub) Join(room string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	if _, ok := h.joined[client]; !ok {
		h.joined[client] = make(map[string]struct{})
	}
	h.joined[client][room] = struct{}{}
}

// Leave removes the client from the room; an empty room is discarded.
func (h *Hub) Leave(room string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, client)
}

func (h *Hub) leaveLocked(room string, client *Client) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.joined[client]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(h.joined, client)
		}
	}
}

// LeaveAll removes the client from every room it was in. Called once at
// disconnect.
func (h *Hub) LeaveAll(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.joined[client] {
		h.leaveLocked(room, client)
	}
	delete(h.joined, client)
}

// Broadcast delivers the event to every connection currently in the room.
// Delivery is best-effort per connection: a closed peer or a full outbound
// queue drops the event for that connection only and is never an error to
// the caller.
func (h *Hub) Broadcast(room string, event models.ServerEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for client := range h.rooms[room] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	kind := roomKind(room)
	for _, client := range members {
		if client.enqueue(payload) {
			observability.IncBroadcastDelivered(kind)
		} else {
			observability.IncBroadcastDropped(kind)
		}
	}
}

// RoomSize reports the number of connections in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// InRoom reports whether the client is registered in the room.
func (h *Hub) InRoom(room string, client *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][client]
	return ok
}
