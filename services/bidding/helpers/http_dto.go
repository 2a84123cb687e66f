package helpers

import (
	"time"

	bidding "auction-engine/internal/biddingService"
)

// Request/Response DTOs
type PlaceBidRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

type CreateAuctionRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url" binding:"omitempty,url"`
	StartingBid float64   `json:"starting_bid" binding:"required,gt=0"`
	EndDate     time.Time `json:"end_date" binding:"required"`
}

// Params converts the request to service parameters
func (r CreateAuctionRequest) Params() bidding.CreateAuctionParams {
	return bidding.CreateAuctionParams{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		ImageURL:    r.ImageURL,
		StartingBid: r.StartingBid,
		EndDate:     r.EndDate,
	}
}

// UpdateAuctionRequest only carries the fields a seller may change
type UpdateAuctionRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url" binding:"omitempty,url"`
}

func (r UpdateAuctionRequest) Params() bidding.UpdateAuctionParams {
	return bidding.UpdateAuctionParams{
		Title:       r.Title,
		Description: r.Description,
		ImageURL:    r.ImageURL,
	}
}

// Empty reports whether the request changes nothing
func (r UpdateAuctionRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.ImageURL == nil
}

// SearchQuery binds GET /auctions query parameters
type SearchQuery struct {
	Query    string `form:"query"`
	Category string `form:"category"`
	Price    string `form:"price"`
	Order    string `form:"order"`
	Status   string `form:"status" binding:"omitempty,oneof=open closed"`
	Page     int    `form:"page" binding:"omitempty,gte=1"`
	PageSize int    `form:"pageSize" binding:"omitempty,gte=1,lte=100"`
}

type BidResponse struct {
	BidID     string  `json:"bid_id"`
	AuctionID string  `json:"auction_id"`
	BidderID  string  `json:"bidder_id"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"created_at"`
}
