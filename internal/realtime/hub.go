package realtime

import (
	"auction-engine/utils"
	"sync"
)

// Hub maps auctions to their current observers and fans events out to them.
//
// It keeps a reverse index from observer to joined auctions so a disconnect can
// drop every membership at once, and deletes rooms as soon as they are empty.
type Hub struct {
	mu          sync.RWMutex
	rooms       map[string]map[Observer]struct{} // key: auctionID -> observers
	memberships map[Observer]map[string]struct{} // key: observer -> auctionIDs
	closed      bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		rooms:       make(map[string]map[Observer]struct{}),
		memberships: make(map[Observer]map[string]struct{}),
	}
}

// Subscribe adds o to the auction's room. It reports false if o was already a member or the hub is closed.
func (h *Hub) Subscribe(auctionID string, o Observer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	room, ok := h.rooms[auctionID]
	if !ok {
		room = make(map[Observer]struct{})
		h.rooms[auctionID] = room
	}
	if _, member := room[o]; member {
		return false
	}
	room[o] = struct{}{}

	joined, ok := h.memberships[o]
	if !ok {
		joined = make(map[string]struct{})
		h.memberships[o] = joined
	}
	joined[auctionID] = struct{}{}
	return true
}

// Unsubscribe removes o from the auction's room. Removing a non-member is a no-op.
func (h *Hub) Unsubscribe(auctionID string, o Observer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removeLocked(auctionID, o)
}

func (h *Hub) removeLocked(auctionID string, o Observer) bool {
	room, ok := h.rooms[auctionID]
	if !ok {
		return false
	}
	if _, member := room[o]; !member {
		return false
	}
	delete(room, o)
	if len(room) == 0 {
		delete(h.rooms, auctionID)
	}

	if joined, ok := h.memberships[o]; ok {
		delete(joined, auctionID)
		if len(joined) == 0 {
			delete(h.memberships, o)
		}
	}
	return true
}

// UnsubscribeAll removes o from every room and returns the auctions it left
func (h *Hub) UnsubscribeAll(o Observer) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	joined := h.memberships[o]
	left := make([]string, 0, len(joined))
	for auctionID := range joined {
		left = append(left, auctionID)
	}
	for _, auctionID := range left {
		h.removeLocked(auctionID, o)
	}
	return left
}

// Publish delivers an event to the observers in the auction's room at the time of the call.
// Delivery never blocks; it returns how many observers accepted the event.
func (h *Hub) Publish(auctionID, name string, payload any) int {
	observers := h.Subscribers(auctionID)
	if len(observers) == 0 {
		return 0
	}

	ev := Event{Name: name, AuctionID: auctionID, Data: payload}
	delivered := 0
	for _, o := range observers {
		if o.Deliver(ev) {
			delivered++
			continue
		}
		utils.Warn("Hub: dropped event for slow observer", map[string]any{
			"auction_id":  auctionID,
			"event":       name,
			"observer_id": o.ID(),
		})
	}
	return delivered
}

// Subscribers returns a snapshot of the auction's room
func (h *Hub) Subscribers(auctionID string) []Observer {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room := h.rooms[auctionID]
	observers := make([]Observer, 0, len(room))
	for o := range room {
		observers = append(observers, o)
	}
	return observers
}

// IsSubscribed reports whether o is in the auction's room
func (h *Hub) IsSubscribed(auctionID string, o Observer) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[auctionID][o]
	return ok
}

// RoomCount returns the number of auctions with at least one observer
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// ObserverCount returns the number of observers with at least one membership
func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.memberships)
}

// Close drops every membership and refuses new subscriptions
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	h.rooms = make(map[string]map[Observer]struct{})
	h.memberships = make(map[Observer]map[string]struct{})
}
