package models

import (
	"time"
)

// User represents an account that can sell or bid
type User struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsSeller bool   `json:"is_seller"`
	IsAdmin  bool   `json:"is_admin"`
}

// AuctionStatus is the persisted lifecycle state of an auction
type AuctionStatus string

const (
	AuctionStatusOpen   AuctionStatus = "open"
	AuctionStatusClosed AuctionStatus = "closed"
)

// Bid represents an accepted bid. Bids are append-only and never modified.
type Bid struct {
	BidID     string    `json:"bid_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Auction represents an item listed for timed bidding
type Auction struct {
	AuctionID   string        `json:"auction_id"`
	SellerID    string        `json:"seller_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	ImageURL    string        `json:"image_url,omitempty"`
	StartingBid float64       `json:"starting_bid"`
	CurrentBid  float64       `json:"current_bid"`
	Bids        []Bid         `json:"bids"`
	EndDate     time.Time     `json:"end_date"`
	Status      AuctionStatus `json:"status"`
	Winner      string        `json:"winner,omitempty"`
	ClosedAt    *time.Time    `json:"closed_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TimeLeft returns the remaining bidding time, never negative.
// It is zero once the auction has been closed, even if the deadline is still ahead.
func (a Auction) TimeLeft(now time.Time) time.Duration {
	if a.Status == AuctionStatusClosed {
		return 0
	}
	left := a.EndDate.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// IsOpen reports whether the auction still accepts bids
func (a Auction) IsOpen(now time.Time) bool {
	return a.TimeLeft(now) > 0
}

// Expired reports whether the deadline passed but no winner has been assigned yet
func (a Auction) Expired(now time.Time) bool {
	return a.Status != AuctionStatusClosed && !now.Before(a.EndDate)
}

// HighestBid returns the amount of the leading bid, or the starting bid when there are none
func (a Auction) HighestBid() float64 {
	if len(a.Bids) == 0 {
		return a.StartingBid
	}
	return a.Bids[len(a.Bids)-1].Amount
}

// LastBid returns the most recently accepted bid
func (a Auction) LastBid() (Bid, bool) {
	if len(a.Bids) == 0 {
		return Bid{}, false
	}
	return a.Bids[len(a.Bids)-1], true
}

// Leader returns the bidder of the last accepted bid
func (a Auction) Leader() (string, bool) {
	last, ok := a.LastBid()
	return last.BidderID, ok
}

// HasBidder reports whether the user placed at least one bid
func (a Auction) HasBidder(userID string) bool {
	for _, b := range a.Bids {
		if b.BidderID == userID {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no mutable state with a
func (a Auction) Clone() Auction {
	c := a
	c.Bids = append([]Bid(nil), a.Bids...)
	if c.Bids == nil {
		c.Bids = []Bid{}
	}
	if a.ClosedAt != nil {
		t := *a.ClosedAt
		c.ClosedAt = &t
	}
	return c
}

// AuctionPatch is a partial update. Nil fields are left untouched.
type AuctionPatch struct {
	Title       *string
	Description *string
	ImageURL    *string
	CurrentBid  *float64
	AppendBid   *Bid
	Status      *AuctionStatus
	Winner      *string
	ClosedAt    *time.Time
}

// Apply writes the non-nil fields of p onto a
func (a *Auction) Apply(p AuctionPatch, now time.Time) {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.ImageURL != nil {
		a.ImageURL = *p.ImageURL
	}
	if p.AppendBid != nil {
		a.Bids = append(a.Bids, *p.AppendBid)
	}
	if p.CurrentBid != nil {
		a.CurrentBid = *p.CurrentBid
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Winner != nil {
		a.Winner = *p.Winner
	}
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		a.ClosedAt = &t
	}
	a.UpdatedAt = now
}
