package repository

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"
)

var (
	auctionsBucket = []byte("auctions")
	usersBucket    = []byte("users")
)

// BoltRepo is a durable implementation of AuctionDB and UserDB backed by a single BoltDB file.
// Records are stored as JSON keyed by id.
type BoltRepo struct {
	db *bolt.DB
}

// NewBoltRepo opens (or creates) the database at path and ensures its buckets exist
func NewBoltRepo(path string) (*BoltRepo, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{auctionsBucket, usersBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bolt buckets: %w", err)
	}

	return &BoltRepo{db: db}, nil
}

// Close releases the database file lock
func (r *BoltRepo) Close() error {
	return r.db.Close()
}

func getAuction(b *bolt.Bucket, auctionID string) (model.Auction, error) {
	v := b.Get([]byte(auctionID))
	if v == nil {
		return model.Auction{}, biddingerrors.ErrAuctionNotFound
	}
	var a model.Auction
	if err := json.Unmarshal(v, &a); err != nil {
		return model.Auction{}, fmt.Errorf("decode auction %s: %w", auctionID, err)
	}
	if a.Bids == nil {
		a.Bids = []model.Bid{}
	}
	return a, nil
}

func putAuction(b *bolt.Bucket, a model.Auction) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode auction %s: %w", a.AuctionID, err)
	}
	return b.Put([]byte(a.AuctionID), data)
}

// FindByID returns the stored auction
func (r *BoltRepo) FindByID(_ context.Context, auctionID string) (model.Auction, error) {
	var a model.Auction
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		a, err = getAuction(tx.Bucket(auctionsBucket), auctionID)
		return err
	})
	if err != nil {
		return model.Auction{}, fmt.Errorf("find auction %s: %w", auctionID, err)
	}
	return a, nil
}

func (r *BoltRepo) scan(filter Filter) ([]model.Auction, error) {
	var matched []model.Auction
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(auctionsBucket).ForEach(func(k, v []byte) error {
			var a model.Auction
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("decode auction %s: %w", k, err)
			}
			if a.Bids == nil {
				a.Bids = []model.Bid{}
			}
			if filter.Matches(a) {
				matched = append(matched, a)
			}
			return nil
		})
	})
	return matched, err
}

// FindMany scans the bucket and applies filter, sort, skip and limit in memory
func (r *BoltRepo) FindMany(_ context.Context, filter Filter, sort Sort, skip, limit int) ([]model.Auction, error) {
	matched, err := r.scan(filter)
	if err != nil {
		return nil, fmt.Errorf("find auctions: %w", err)
	}
	sortAuctions(matched, sort)
	return paginate(matched, skip, limit), nil
}

// CountMatching returns the number of auctions satisfying filter
func (r *BoltRepo) CountMatching(_ context.Context, filter Filter) (int, error) {
	matched, err := r.scan(filter)
	if err != nil {
		return 0, fmt.Errorf("count auctions: %w", err)
	}
	return len(matched), nil
}

// Insert stores a new auction, refusing to overwrite an existing id
func (r *BoltRepo) Insert(_ context.Context, auction model.Auction) error {
	if auction.AuctionID == "" {
		return fmt.Errorf("insert auction: empty id: %w", biddingerrors.ErrInvalidAuction)
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(auctionsBucket)
		if b.Get([]byte(auction.AuctionID)) != nil {
			return fmt.Errorf("insert auction %s: %w", auction.AuctionID, biddingerrors.ErrDuplicateID)
		}
		return putAuction(b, auction.Clone())
	})
}

// Update applies patch inside a single read-modify-write transaction
func (r *BoltRepo) Update(_ context.Context, auctionID string, patch model.AuctionPatch) (model.Auction, error) {
	var updated model.Auction
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(auctionsBucket)
		a, err := getAuction(b, auctionID)
		if err != nil {
			return err
		}
		a.Apply(patch, time.Now().UTC())
		if err := a.CheckInvariants(); err != nil {
			return fmt.Errorf("%w: %w", biddingerrors.ErrInvariant, err)
		}
		updated = a
		return putAuction(b, a)
	})
	if err != nil {
		return model.Auction{}, fmt.Errorf("update auction %s: %w", auctionID, err)
	}
	return updated, nil
}

// Delete removes an auction
func (r *BoltRepo) Delete(_ context.Context, auctionID string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(auctionsBucket)
		if b.Get([]byte(auctionID)) == nil {
			return fmt.Errorf("delete auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
		}
		return b.Delete([]byte(auctionID))
	})
}

// FindUserByID resolves a user identity
func (r *BoltRepo) FindUserByID(_ context.Context, userID string) (model.User, error) {
	var u model.User
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(usersBucket).Get([]byte(userID))
		if v == nil {
			return biddingerrors.ErrUserNotFound
		}
		return json.Unmarshal(v, &u)
	})
	if err != nil {
		return model.User{}, fmt.Errorf("find user %s: %w", userID, err)
	}
	return u, nil
}

// InsertUser stores a new user
func (r *BoltRepo) InsertUser(_ context.Context, user model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", user.UserID, err)
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(usersBucket)
		if b.Get([]byte(user.UserID)) != nil {
			return fmt.Errorf("insert user %s: %w", user.UserID, biddingerrors.ErrDuplicateID)
		}
		return b.Put([]byte(user.UserID), data)
	})
}
