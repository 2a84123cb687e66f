// Package closing finalizes auctions whose deadline has passed.
//
// A periodic job scans for open auctions past their end date, assigns the
// winner under the auction's key lock, broadcasts auctionClosed and hands a
// notification for the winner to the dispatcher.
package closing

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/keylock"
	"auction-engine/internal/models"
	"auction-engine/internal/notifier"
	"auction-engine/internal/realtime"
	"auction-engine/internal/repository"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"
)

// DefaultInterval is how often the closing job runs
const DefaultInterval = time.Second

// wonSubject is the subject of the winner email
const wonSubject = "You have won the bid"

// Publisher fans an event out to the observers of one auction
type Publisher interface {
	Publish(auctionID, event string, payload any) int
}

// Dispatcher accepts notifications without blocking
type Dispatcher interface {
	Dispatch(n notifier.Notification) error
}

// Config tunes the scheduler
type Config struct {
	Interval    time.Duration
	Workers     int
	LockTimeout time.Duration
	Sender      string
	ReplyTo     string
}

// Scheduler runs the closing job
type Scheduler struct {
	repo       repository.AuctionDB
	users      repository.UserDB
	locks      *keylock.KeyLock
	publisher  Publisher
	dispatcher Dispatcher
	cfg        Config
	now        func() time.Time

	scheduler gocron.Scheduler
}

// NewScheduler creates a scheduler. locks must be the table shared with the bidding service.
func NewScheduler(repo repository.AuctionDB, users repository.UserDB, locks *keylock.KeyLock, publisher Publisher, dispatcher Dispatcher, cfg Config) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("closing: create scheduler: %w", err)
	}

	return &Scheduler{
		repo:       repo,
		users:      users,
		locks:      locks,
		publisher:  publisher,
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		scheduler:  scheduler,
	}, nil
}

// Start registers the closing job and starts the scheduler.
// A run that overlaps the previous one is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(
			func() {
				if _, err := s.Tick(ctx); err != nil {
					utils.Error("Scheduler: closing run failed", map[string]any{"error": err.Error()})
				}
			},
		),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("closing: register job: %w", err)
	}

	s.scheduler.Start()
	utils.Info("Scheduler: started", map[string]any{"interval": s.cfg.Interval.String(), "workers": s.cfg.Workers})
	return nil
}

// Stop shuts the scheduler down, waiting for a running job to finish
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

// Tick closes every expired auction once and returns how many it closed.
// Safe to call concurrently with itself and with bidding.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.repo.FindMany(ctx, repository.Filter{
		Status:       models.AuctionStatusOpen,
		EndingBefore: now,
	}, repository.SortEnding, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("closing: scan expired auctions: %w: %w", biddingerrors.ErrStoreFailure, err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	closed := make([]bool, len(expired))
	errs := make([]error, len(expired))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, a := range expired {
		i, a := i, a
		g.Go(func() error {
			// failures of one auction never stop the others
			closed[i], errs[i] = s.closeAuction(gctx, a.AuctionID)
			return nil
		})
	}
	g.Wait()

	count := 0
	for _, ok := range closed {
		if ok {
			count++
		}
	}
	return count, errors.Join(errs...)
}

// closeAuction finalizes one auction. It reports false when another run or a
// concurrent bid already made closing unnecessary.
func (s *Scheduler) closeAuction(ctx context.Context, auctionID string) (bool, error) {
	release, err := s.locks.Acquire(ctx, auctionID, s.cfg.LockTimeout)
	if err != nil {
		utils.Warn("Scheduler: auction busy, retrying next run", map[string]any{"auction_id": auctionID})
		return false, nil
	}
	defer release()

	auction, err := s.repo.FindByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, biddingerrors.ErrAuctionNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("closing: read auction %s: %w: %w", auctionID, biddingerrors.ErrStoreFailure, err)
	}

	now := s.now()
	if !auction.Expired(now) {
		return false, nil
	}

	status := models.AuctionStatusClosed
	patch := models.AuctionPatch{Status: &status, ClosedAt: &now}
	winner, hasWinner := auction.Leader()
	if hasWinner {
		patch.Winner = &winner
	}

	updated, err := s.repo.Update(ctx, auctionID, patch)
	if err != nil {
		return false, fmt.Errorf("closing: close auction %s: %w: %w", auctionID, biddingerrors.ErrStoreFailure, err)
	}

	payload := realtime.AuctionClosedPayload{AuctionID: auctionID}
	if hasWinner {
		payload.Winner = winner
		payload.WinningBid = updated.HighestBid()
	}
	s.publisher.Publish(auctionID, realtime.EventAuctionClosed, payload)

	utils.Info("Scheduler: auction closed", map[string]any{
		"auction_id":  auctionID,
		"winner":      winner,
		"winning_bid": payload.WinningBid,
		"bids":        len(updated.Bids),
	})

	if hasWinner {
		s.notifyWinner(ctx, updated)
	}
	return true, nil
}

// notifyWinner queues the winner email. Failures are logged and never undo the close.
func (s *Scheduler) notifyWinner(ctx context.Context, auction models.Auction) {
	user, err := s.users.FindUserByID(ctx, auction.Winner)
	if err != nil {
		utils.Error("Scheduler: failed to resolve winner", map[string]any{
			"auction_id": auction.AuctionID,
			"winner":     auction.Winner,
			"error":      err.Error(),
		})
		return
	}
	if user.Email == "" {
		utils.Warn("Scheduler: winner has no email", map[string]any{"auction_id": auction.AuctionID, "winner": user.UserID})
		return
	}

	n := notifier.Notification{
		Template:  notifier.TemplateAuctionWon,
		Recipient: user.Email,
		Sender:    s.cfg.Sender,
		ReplyTo:   s.cfg.ReplyTo,
		Subject:   wonSubject,
		Variables: map[string]any{
			"name":         user.Username,
			"auctionTitle": auction.Title,
			"amount":       fmt.Sprintf("%.2f", auction.HighestBid()),
			"description":  fmt.Sprintf("Congratulations %s you have won bid titled %s", user.Username, auction.Title),
		},
	}
	if err := s.dispatcher.Dispatch(n); err != nil {
		utils.Error("Scheduler: failed to queue winner notification", map[string]any{
			"auction_id": auction.AuctionID,
			"winner":     user.UserID,
			"error":      err.Error(),
		})
	}
}
