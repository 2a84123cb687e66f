package repository

import (
	"sort"
	"strings"
	"time"

	model "auction-engine/internal/models"
)

// Filter selects auctions. Zero-valued fields match everything.
type Filter struct {
	Query        string // case-insensitive substring of the title
	Category     string
	MinPrice     *float64
	MaxPrice     *float64
	SellerID     string
	BidderID     string
	Status       model.AuctionStatus
	EndingBefore time.Time // EndDate <= EndingBefore
}

// Matches reports whether an auction satisfies every set criterion
func (f Filter) Matches(a model.Auction) bool {
	if f.Query != "" && !strings.Contains(strings.ToLower(a.Title), strings.ToLower(f.Query)) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(a.Category, f.Category) {
		return false
	}
	if f.MinPrice != nil && a.CurrentBid < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && a.CurrentBid > *f.MaxPrice {
		return false
	}
	if f.SellerID != "" && a.SellerID != f.SellerID {
		return false
	}
	if f.BidderID != "" && !a.HasBidder(f.BidderID) {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if !f.EndingBefore.IsZero() && a.EndDate.After(f.EndingBefore) {
		return false
	}
	return true
}

// Sort orders FindMany results
type Sort string

const (
	SortDefault Sort = ""        // by auction id, descending
	SortNewest  Sort = "newest"  // most recently created first
	SortLowest  Sort = "lowest"  // cheapest current bid first
	SortHighest Sort = "highest" // most expensive current bid first
	SortEnding  Sort = "ending"  // closest deadline first
)

// ParseSort maps the public order names to a Sort, defaulting unknown values
func ParseSort(order string) Sort {
	switch Sort(order) {
	case SortNewest, SortLowest, SortHighest, SortEnding:
		return Sort(order)
	default:
		return SortDefault
	}
}

func sortAuctions(auctions []model.Auction, s Sort) {
	var less func(a, b model.Auction) bool
	switch s {
	case SortNewest:
		less = func(a, b model.Auction) bool { return a.CreatedAt.After(b.CreatedAt) }
	case SortLowest:
		less = func(a, b model.Auction) bool { return a.CurrentBid < b.CurrentBid }
	case SortHighest:
		less = func(a, b model.Auction) bool { return a.CurrentBid > b.CurrentBid }
	case SortEnding:
		less = func(a, b model.Auction) bool { return a.EndDate.Before(b.EndDate) }
	default:
		less = func(a, b model.Auction) bool { return a.AuctionID > b.AuctionID }
	}
	sort.SliceStable(auctions, func(i, j int) bool {
		if less(auctions[i], auctions[j]) {
			return true
		}
		if less(auctions[j], auctions[i]) {
			return false
		}
		return auctions[i].AuctionID > auctions[j].AuctionID
	})
}

// paginate applies skip and limit; limit <= 0 means no limit
func paginate(auctions []model.Auction, skip, limit int) []model.Auction {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(auctions) {
		return []model.Auction{}
	}
	auctions = auctions[skip:]
	if limit > 0 && limit < len(auctions) {
		auctions = auctions[:limit]
	}
	return auctions
}
