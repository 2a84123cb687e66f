package repository

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"context"
	"fmt"
	"sync"
	"time"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

// AuctionDB defines the auction storage interface for the auction system
type AuctionDB interface {
	FindByID(ctx context.Context, auctionID string) (model.Auction, error)
	FindMany(ctx context.Context, filter Filter, sort Sort, skip, limit int) ([]model.Auction, error)
	CountMatching(ctx context.Context, filter Filter) (int, error)
	Insert(ctx context.Context, auction model.Auction) error
	Update(ctx context.Context, auctionID string, patch model.AuctionPatch) (model.Auction, error)
	Delete(ctx context.Context, auctionID string) error
}

// UserDB resolves account identities
type UserDB interface {
	FindUserByID(ctx context.Context, userID string) (model.User, error)
	InsertUser(ctx context.Context, user model.User) error
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB and UserDB
type MemoryRepo struct {
	mu       sync.RWMutex
	auctions map[string]model.Auction // key: auctionID -> value: auction
	users    map[string]model.User    // key: userID -> value: user
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions: make(map[string]model.Auction),
		users:    make(map[string]model.User),
	}
}

// FindByID returns a copy of the stored auction
func (r *MemoryRepo) FindByID(_ context.Context, auctionID string) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("find auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return a.Clone(), nil
}

// FindMany returns matching auctions ordered by sort, after skipping skip and keeping at most limit
func (r *MemoryRepo) FindMany(_ context.Context, filter Filter, sort Sort, skip, limit int) ([]model.Auction, error) {
	r.mu.RLock()
	matched := make([]model.Auction, 0, len(r.auctions))
	for _, a := range r.auctions {
		if filter.Matches(a) {
			matched = append(matched, a.Clone())
		}
	}
	r.mu.RUnlock()

	sortAuctions(matched, sort)
	return paginate(matched, skip, limit), nil
}

// CountMatching returns the number of auctions satisfying filter
func (r *MemoryRepo) CountMatching(_ context.Context, filter Filter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, a := range r.auctions {
		if filter.Matches(a) {
			count++
		}
	}
	return count, nil
}

// Insert stores a new auction
func (r *MemoryRepo) Insert(_ context.Context, auction model.Auction) error {
	if auction.AuctionID == "" {
		return fmt.Errorf("insert auction: empty id: %w", biddingerrors.ErrInvalidAuction)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.auctions[auction.AuctionID]; exists {
		return fmt.Errorf("insert auction %s: %w", auction.AuctionID, biddingerrors.ErrDuplicateID)
	}
	r.auctions[auction.AuctionID] = auction.Clone()
	return nil
}

// Update applies patch to the stored auction and returns the result.
// A patch that would break the auction invariants is rejected and nothing is stored.
func (r *MemoryRepo) Update(_ context.Context, auctionID string, patch model.AuctionPatch) (model.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("update auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	a = a.Clone()
	a.Apply(patch, time.Now().UTC())
	if err := a.CheckInvariants(); err != nil {
		return model.Auction{}, fmt.Errorf("update auction %s: %w: %w", auctionID, biddingerrors.ErrInvariant, err)
	}
	r.auctions[auctionID] = a
	return a.Clone(), nil
}

// Delete removes an auction; deleting a missing auction reports ErrAuctionNotFound
func (r *MemoryRepo) Delete(_ context.Context, auctionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return fmt.Errorf("delete auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	delete(r.auctions, auctionID)
	return nil
}

// FindUserByID resolves a user identity
func (r *MemoryRepo) FindUserByID(_ context.Context, userID string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return model.User{}, fmt.Errorf("find user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	return u, nil
}

// InsertUser stores a new user
func (r *MemoryRepo) InsertUser(_ context.Context, user model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.UserID]; exists {
		return fmt.Errorf("insert user %s: %w", user.UserID, biddingerrors.ErrDuplicateID)
	}
	r.users[user.UserID] = user
	return nil
}
