package realtime

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/keylock"
	model "auction-engine/internal/models"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrHubClosed is returned when joining after the hub has shut down
var ErrHubClosed = errors.New("realtime hub closed")

// AuctionFinder loads the auction snapshot sent to joining observers
type AuctionFinder interface {
	FindByID(ctx context.Context, auctionID string) (model.Auction, error)
}

// Registry handles observers joining and leaving auction rooms
type Registry struct {
	hub         *Hub
	auctions    AuctionFinder
	locks       *keylock.KeyLock
	lockTimeout time.Duration
}

// NewRegistry creates a Registry. locks must be the same table the bid and closing paths use.
func NewRegistry(hub *Hub, auctions AuctionFinder, locks *keylock.KeyLock, lockTimeout time.Duration) *Registry {
	return &Registry{
		hub:         hub,
		auctions:    auctions,
		locks:       locks,
		lockTimeout: lockTimeout,
	}
}

// Join registers o for the auction's events and sends it an auctionData snapshot.
// If the auction does not exist o only receives an auctionError and is not registered.
//
// The snapshot is taken under the auction's key lock, so it is never older than
// a bidUpdated event the observer receives afterwards.
func (r *Registry) Join(ctx context.Context, auctionID string, o Observer) error {
	release, err := r.locks.Acquire(ctx, auctionID, r.lockTimeout)
	if err != nil {
		o.Deliver(errorEvent(auctionID, "Server busy, try again"))
		return fmt.Errorf("join auction %s: %w", auctionID, biddingerrors.ErrBusy)
	}
	defer release()

	auction, err := r.auctions.FindByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, biddingerrors.ErrAuctionNotFound) {
			utils.Info("Registry: auction not found", map[string]any{"auction_id": auctionID, "observer_id": o.ID()})
			o.Deliver(errorEvent(auctionID, "Auction not found"))
			return fmt.Errorf("join auction %s: %w", auctionID, err)
		}
		utils.Error("Registry: failed to load auction", map[string]any{"auction_id": auctionID, "error": err.Error()})
		o.Deliver(errorEvent(auctionID, "Server Error"))
		return fmt.Errorf("join auction %s: %w: %w", auctionID, biddingerrors.ErrStoreFailure, err)
	}

	if r.hub.Subscribe(auctionID, o) {
		utils.Info("Registry: observer joined auction", map[string]any{"auction_id": auctionID, "observer_id": o.ID()})
	} else if !r.hub.IsSubscribed(auctionID, o) {
		o.Deliver(errorEvent(auctionID, "Server shutting down"))
		return fmt.Errorf("join auction %s: %w", auctionID, ErrHubClosed)
	}
	o.Deliver(Event{Name: EventAuctionData, AuctionID: auctionID, Data: auction})
	return nil
}

// Leave unregisters o from the auction. Leaving a room o is not in is a no-op.
func (r *Registry) Leave(auctionID string, o Observer) {
	if r.hub.Unsubscribe(auctionID, o) {
		utils.Info("Registry: observer left auction", map[string]any{"auction_id": auctionID, "observer_id": o.ID()})
	}
}

// Disconnect drops every membership of o
func (r *Registry) Disconnect(o Observer) {
	left := r.hub.UnsubscribeAll(o)
	utils.Debug("Registry: observer disconnected", map[string]any{"observer_id": o.ID(), "rooms_left": len(left)})
}

func errorEvent(auctionID, message string) Event {
	return Event{Name: EventAuctionError, AuctionID: auctionID, Data: ErrorPayload{Message: message}}
}

// SendError delivers an auctionError to a single observer
func SendError(o Observer, auctionID, message string) {
	o.Deliver(errorEvent(auctionID, message))
}

// ObserverCount returns the number of observers in at least one room
func (r *Registry) ObserverCount() int {
	return r.hub.ObserverCount()
}
