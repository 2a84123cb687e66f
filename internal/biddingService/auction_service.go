package bidding

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/utils"
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultPageSize is used when a search does not ask for one
const DefaultPageSize = 8

// maxPageSize caps a single search page
const maxPageSize = 100

// CreateAuctionParams are the listing fields supplied by a seller
type CreateAuctionParams struct {
	Title       string
	Description string
	Category    string
	ImageURL    string
	StartingBid float64
	EndDate     time.Time
}

// UpdateAuctionParams are the listing fields a seller may change while the auction is open
type UpdateAuctionParams struct {
	Title       *string
	Description *string
	ImageURL    *string
}

// AuctionPage is one page of search results
type AuctionPage struct {
	Auctions []models.Auction `json:"auctions"`
	Count    int              `json:"count"`
	Page     int              `json:"page"`
	Pages    int              `json:"pages"`
}

// CreateAuction lists a new auction for sellerID
func (s *BiddingService) CreateAuction(ctx context.Context, sellerID string, p CreateAuctionParams) (models.Auction, error) {
	seller, err := s.users.FindUserByID(ctx, sellerID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: seller %s: %w", sellerID, err)
	}
	if !seller.IsSeller {
		return models.Auction{}, fmt.Errorf("service: %w - user %s is not a seller", biddingerrors.ErrForbidden, sellerID)
	}

	now := s.now()
	startingBid := models.NormalizeAmount(p.StartingBid)
	auction := models.Auction{
		AuctionID:   utils.GenerateID(),
		SellerID:    sellerID,
		Title:       strings.TrimSpace(p.Title),
		Description: p.Description,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		StartingBid: startingBid,
		CurrentBid:  startingBid,
		Bids:        []models.Bid{},
		EndDate:     p.EndDate.UTC(),
		Status:      models.AuctionStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if auction.Category == "" {
		auction.Category = "Other"
	}

	if err := auction.Validate(); err != nil {
		return models.Auction{}, fmt.Errorf("service: %w - %v", biddingerrors.ErrInvalidAuction, err)
	}
	if !auction.EndDate.After(now) {
		return models.Auction{}, fmt.Errorf("service: %w - end date must be in the future", biddingerrors.ErrInvalidAuction)
	}

	if err := s.repo.Insert(ctx, auction); err != nil {
		return models.Auction{}, storeError("create auction", auction.AuctionID, err)
	}

	utils.Info("BiddingService: auction created", map[string]any{
		"auction_id":   auction.AuctionID,
		"seller_id":    sellerID,
		"starting_bid": auction.StartingBid,
		"end_date":     auction.EndDate.Format(time.RFC3339),
	})
	return auction, nil
}

// GetAuction returns a specific auction
func (s *BiddingService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}
	auction, err := s.repo.FindByID(ctx, auctionID)
	if err != nil {
		return models.Auction{}, storeError("get auction", auctionID, err)
	}
	return auction, nil
}

// SearchAuctions returns one page of auctions matching filter
func (s *BiddingService) SearchAuctions(ctx context.Context, filter repository.Filter, sort repository.Sort, page, pageSize int) (AuctionPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	auctions, err := s.repo.FindMany(ctx, filter, sort, (page-1)*pageSize, pageSize)
	if err != nil {
		return AuctionPage{}, fmt.Errorf("service: search auctions: %w: %w", biddingerrors.ErrStoreFailure, err)
	}
	count, err := s.repo.CountMatching(ctx, filter)
	if err != nil {
		return AuctionPage{}, fmt.Errorf("service: count auctions: %w: %w", biddingerrors.ErrStoreFailure, err)
	}
	if auctions == nil {
		auctions = []models.Auction{}
	}

	return AuctionPage{
		Auctions: auctions,
		Count:    count,
		Page:     page,
		Pages:    (count + pageSize - 1) / pageSize,
	}, nil
}

// GetBidsForAuction returns the bid history of an auction, oldest first
func (s *BiddingService) GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	auction, err := s.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return auction.Bids, nil
}

// GetAuctionsByBidder returns all auctions a user has placed bids on
func (s *BiddingService) GetAuctionsByBidder(ctx context.Context, userID string) ([]models.Auction, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}
	auctions, err := s.repo.FindMany(ctx, repository.Filter{BidderID: userID}, repository.SortNewest, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions for user %s: %w: %w", userID, biddingerrors.ErrStoreFailure, err)
	}
	return auctions, nil
}

// UpdateAuction edits the descriptive fields of an open auction.
// The deadline and starting bid are immutable.
func (s *BiddingService) UpdateAuction(ctx context.Context, requesterID, auctionID string, p UpdateAuctionParams) (models.Auction, error) {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return models.Auction{}, fmt.Errorf("service: %w - title is required", biddingerrors.ErrInvalidAuction)
	}

	release, err := s.acquire(ctx, auctionID)
	if err != nil {
		return models.Auction{}, err
	}
	defer release()

	auction, err := s.repo.FindByID(ctx, auctionID)
	if err != nil {
		return models.Auction{}, storeError("update auction", auctionID, err)
	}
	if err := s.authorize(ctx, requesterID, auction); err != nil {
		return models.Auction{}, err
	}
	if !auction.IsOpen(s.now()) {
		return models.Auction{}, fmt.Errorf("service: %w - auction %s can no longer be edited", biddingerrors.ErrAuctionClosed, auctionID)
	}

	updated, err := s.repo.Update(ctx, auctionID, models.AuctionPatch{
		Title:       p.Title,
		Description: p.Description,
		ImageURL:    p.ImageURL,
	})
	if err != nil {
		return models.Auction{}, storeError("update auction", auctionID, err)
	}
	return updated, nil
}

// DeleteAuction removes a closed auction. Open auctions cannot be deleted.
func (s *BiddingService) DeleteAuction(ctx context.Context, requesterID, auctionID string) (models.Auction, error) {
	release, err := s.acquire(ctx, auctionID)
	if err != nil {
		return models.Auction{}, err
	}
	defer release()

	auction, err := s.repo.FindByID(ctx, auctionID)
	if err != nil {
		return models.Auction{}, storeError("delete auction", auctionID, err)
	}
	if err := s.authorize(ctx, requesterID, auction); err != nil {
		return models.Auction{}, err
	}
	if auction.Status != models.AuctionStatusClosed {
		return models.Auction{}, fmt.Errorf("service: %w - auction %s has not been closed", biddingerrors.ErrAuctionOpen, auctionID)
	}

	if err := s.repo.Delete(ctx, auctionID); err != nil {
		return models.Auction{}, storeError("delete auction", auctionID, err)
	}

	utils.Info("BiddingService: auction deleted", map[string]any{"auction_id": auctionID, "requester_id": requesterID})
	return auction, nil
}

// authorize allows the auction's seller and admins
func (s *BiddingService) authorize(ctx context.Context, requesterID string, auction models.Auction) error {
	if requesterID == auction.SellerID {
		return nil
	}
	user, err := s.users.FindUserByID(ctx, requesterID)
	if err != nil {
		return fmt.Errorf("service: requester %s: %w", requesterID, err)
	}
	if !user.IsAdmin {
		return fmt.Errorf("service: %w - user %s does not own auction %s", biddingerrors.ErrForbidden, requesterID, auction.AuctionID)
	}
	return nil
}
