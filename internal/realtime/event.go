package realtime

import "encoding/json"

// Inbound event names
const (
	EventJoinAuction  = "joinAuction"
	EventLeaveAuction = "leaveAuction"
	EventPlaceBid     = "placeBid"
)

// Outbound event names
const (
	EventAuctionData   = "auctionData"
	EventAuctionError  = "auctionError"
	EventBidUpdated    = "bidUpdated"
	EventAuctionClosed = "auctionClosed"
)

// Event is an outbound message, scoped to one auction
type Event struct {
	Name      string `json:"event"`
	AuctionID string `json:"auction_id,omitempty"`
	Data      any    `json:"data"`
}

// ErrorPayload is the body of an auctionError event
type ErrorPayload struct {
	Message string `json:"message"`
}

// AuctionClosedPayload is the body of an auctionClosed event
type AuctionClosedPayload struct {
	AuctionID  string  `json:"auction_id"`
	Winner     string  `json:"winner,omitempty"`
	WinningBid float64 `json:"winning_bid,omitempty"`
}

// Message is an inbound frame from a client
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// PlaceBidPayload is the body of an inbound placeBid event
type PlaceBidPayload struct {
	AuctionID      string  `json:"auctionId"`
	BidderIdentity string  `json:"bidderIdentity,omitempty"`
	Amount         float64 `json:"amount"`
}

// Observer receives events for the auctions it joined
type Observer interface {
	// ID identifies the observer in logs
	ID() string
	// Deliver queues ev without blocking; it reports false when the event was dropped
	Deliver(ev Event) bool
}
