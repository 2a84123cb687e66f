package bidding

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/keylock"
	"auction-engine/internal/models"
	"auction-engine/internal/realtime"
	"auction-engine/internal/repository"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultLockTimeout bounds how long PlaceBid waits for a busy auction
const DefaultLockTimeout = 2 * time.Second

// Publisher fans an event out to the observers of one auction
type Publisher interface {
	Publish(auctionID, event string, payload any) int
}

// BiddingService defines the business logic for auction bidding
type BiddingService struct {
	repo        repository.AuctionDB
	users       repository.UserDB
	locks       *keylock.KeyLock
	publisher   Publisher
	lockTimeout time.Duration
	now         func() time.Time
}

// Option configures a BiddingService
type Option func(*BiddingService)

// WithLockTimeout overrides DefaultLockTimeout
func WithLockTimeout(d time.Duration) Option {
	return func(s *BiddingService) { s.lockTimeout = d }
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *BiddingService) { s.now = now }
}

// NewBiddingService creates a new BiddingService instance.
// locks must be shared with the closing scheduler and the subscription registry.
func NewBiddingService(repo repository.AuctionDB, users repository.UserDB, locks *keylock.KeyLock, publisher Publisher, opts ...Option) *BiddingService {
	s := &BiddingService{
		repo:        repo,
		users:       users,
		locks:       locks,
		publisher:   publisher,
		lockTimeout: DefaultLockTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceBid validates a bid and appends it to the auction.
//
// Checks run in a fixed order: the auction must exist, then be open, then the
// amount must beat the current bid. The bidder is resolved last.
//
// The read-validate-write sequence runs under the auction's key lock, so bids
// on one auction are linearized with each other and with the closing scheduler,
// while bids on different auctions proceed in parallel. The bidUpdated broadcast
// happens before the lock is released, which keeps broadcasts in bid order.
func (s *BiddingService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64) (models.Auction, error) {
	if auctionID == "" || bidderID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}

	release, err := s.acquire(ctx, auctionID)
	if err != nil {
		return models.Auction{}, err
	}
	defer release()

	auction, err := s.repo.FindByID(ctx, auctionID)
	if err != nil {
		return models.Auction{}, storeError("place bid", auctionID, err)
	}

	now := s.now()
	if !auction.IsOpen(now) {
		return models.Auction{}, fmt.Errorf("service: %w - auction %s ended at %s", biddingerrors.ErrAuctionClosed, auctionID, auction.EndDate.Format(time.RFC3339))
	}
	if !models.ExceedsBid(amount, auction.CurrentBid) {
		return models.Auction{}, fmt.Errorf("service: %w - current highest bid is %.2f", biddingerrors.ErrBidTooLow, auction.CurrentBid)
	}
	if err := s.resolveBidder(ctx, bidderID); err != nil {
		return models.Auction{}, err
	}

	amount = models.NormalizeAmount(amount)
	placedAt := now
	if last, ok := auction.LastBid(); ok && placedAt.Before(last.CreatedAt) {
		// wall clock stepped back; bids stay in time order
		placedAt = last.CreatedAt
	}
	bid := models.Bid{
		BidID:     utils.GenerateID(),
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: placedAt,
	}

	updated, err := s.repo.Update(ctx, auctionID, models.AuctionPatch{AppendBid: &bid, CurrentBid: &amount})
	if err != nil {
		return models.Auction{}, storeError("place bid", auctionID, err)
	}

	// best effort; the stored bid stands regardless of delivery
	s.publisher.Publish(auctionID, realtime.EventBidUpdated, updated)

	utils.Info("BiddingService: bid accepted", map[string]any{
		"auction_id": auctionID,
		"bidder_id":  bidderID,
		"amount":     amount,
		"bid_id":     bid.BidID,
	})
	return updated, nil
}

// resolveBidder checks that the bidder is a known user
func (s *BiddingService) resolveBidder(ctx context.Context, bidderID string) error {
	if _, err := s.users.FindUserByID(ctx, bidderID); err != nil {
		if errors.Is(err, biddingerrors.ErrUserNotFound) {
			return fmt.Errorf("service: bidder %s: %w", bidderID, err)
		}
		return fmt.Errorf("service: failed to resolve bidder %s: %w: %w", bidderID, biddingerrors.ErrStoreFailure, err)
	}
	return nil
}

// acquire takes the auction's key lock, mapping a bounded-wait failure to ErrBusy
func (s *BiddingService) acquire(ctx context.Context, auctionID string) (func(), error) {
	release, err := s.locks.Acquire(ctx, auctionID, s.lockTimeout)
	if err != nil {
		utils.Warn("BiddingService: auction busy", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return nil, fmt.Errorf("service: auction %s: %w: %w", auctionID, biddingerrors.ErrBusy, err)
	}
	return release, nil
}

// storeError keeps not-found errors as they are and tags everything else as a store failure
func storeError(op, auctionID string, err error) error {
	if errors.Is(err, biddingerrors.ErrAuctionNotFound) {
		return fmt.Errorf("service: %s: %w", op, err)
	}
	return fmt.Errorf("service: %s on auction %s: %w: %w", op, auctionID, biddingerrors.ErrStoreFailure, err)
}
