package closing

import (
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/keylock"
	"auction-engine/internal/models"
	"auction-engine/internal/notifier"
	"auction-engine/internal/realtime"
	"auction-engine/internal/repository"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *fakePublisher) Publish(auctionID, event string, payload any) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, realtime.Event{Name: event, AuctionID: auctionID, Data: payload})
	return 0
}

func (p *fakePublisher) Events() []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]realtime.Event(nil), p.events...)
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []notifier.Notification
	err  error
}

func (d *fakeDispatcher) Dispatch(n notifier.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return d.err
}

func (d *fakeDispatcher) Sent() []notifier.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notifier.Notification(nil), d.sent...)
}

type fixture struct {
	repo       *repository.MemoryRepo
	locks      *keylock.KeyLock
	publisher  *fakePublisher
	dispatcher *fakeDispatcher
	scheduler  *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:       repository.NewMemoryRepo(),
		locks:      keylock.New(),
		publisher:  &fakePublisher{},
		dispatcher: &fakeDispatcher{},
	}
	for _, u := range []models.User{
		{UserID: "A", Username: "alice", Email: "alice@example.com"},
		{UserID: "B", Username: "bob", Email: "bob@example.com"},
	} {
		require.NoError(t, f.repo.InsertUser(context.Background(), u))
	}

	s, err := NewScheduler(f.repo, f.repo, f.locks, f.publisher, f.dispatcher, Config{
		Workers:     4,
		LockTimeout: 20 * time.Millisecond,
		Sender:      "auctions@example.com",
		ReplyTo:     "support@example.com",
	})
	require.NoError(t, err)
	f.scheduler = s
	return f
}

func (f *fixture) insert(t *testing.T, id string, endDate time.Time, bids ...models.Bid) {
	t.Helper()
	a := models.Auction{
		AuctionID:   id,
		SellerID:    "seller",
		Title:       "Lot " + id,
		StartingBid: 50,
		CurrentBid:  50,
		Bids:        bids,
		EndDate:     endDate,
		Status:      models.AuctionStatusOpen,
	}
	if len(bids) > 0 {
		a.CurrentBid = bids[len(bids)-1].Amount
	}
	require.NoError(t, f.repo.Insert(context.Background(), a))
}

func bid(bidder string, amount float64) models.Bid {
	return models.Bid{BidID: bidder + "-bid", BidderID: bidder, Amount: amount}
}

func TestScheduler_Tick_AssignsWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Second)

	f.insert(t, "auction1", past, bid("A", 100), bid("B", 150))
	f.insert(t, "future", time.Now().Add(time.Hour), bid("A", 100))

	closed, err := f.scheduler.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, closed)

	stored, err := f.repo.FindByID(ctx, "auction1")
	require.NoError(t, err)
	require.Equal(t, "B", stored.Winner)
	require.Equal(t, models.AuctionStatusClosed, stored.Status)
	require.NotNil(t, stored.ClosedAt)
	require.NoError(t, stored.CheckInvariants())

	open, err := f.repo.FindByID(ctx, "future")
	require.NoError(t, err)
	require.Equal(t, models.AuctionStatusOpen, open.Status)
	require.Empty(t, open.Winner)

	events := f.publisher.Events()
	require.Len(t, events, 1)
	require.Equal(t, realtime.EventAuctionClosed, events[0].Name)
	require.Equal(t, realtime.AuctionClosedPayload{AuctionID: "auction1", Winner: "B", WinningBid: 150}, events[0].Data)

	sent := f.dispatcher.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "bob@example.com", sent[0].Recipient)
	require.Equal(t, notifier.TemplateAuctionWon, sent[0].Template)
	require.Equal(t, "auctions@example.com", sent[0].Sender)
	require.Equal(t, "You have won the bid", sent[0].Subject)
	require.Equal(t, "150.00", sent[0].Variables["amount"])
	require.Equal(t, "Congratulations bob you have won bid titled Lot auction1", sent[0].Variables["description"])
}

func TestScheduler_Tick_NoBids(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.insert(t, "empty", time.Now().Add(-time.Second))

	closed, err := f.scheduler.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, closed)

	stored, err := f.repo.FindByID(ctx, "empty")
	require.NoError(t, err)
	require.Empty(t, stored.Winner)
	require.Equal(t, models.AuctionStatusClosed, stored.Status)
	require.Empty(t, f.dispatcher.Sent())

	// not picked up again
	closed, err = f.scheduler.Tick(ctx)
	require.NoError(t, err)
	require.Zero(t, closed)
	require.Len(t, f.publisher.Events(), 1)
}

func TestScheduler_Tick_NotifiesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Second)
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5"} {
		f.insert(t, id, past, bid("A", 60))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			closed, err := f.scheduler.Tick(ctx)
			if err != nil {
				t.Errorf("tick: %v", err)
			}
			mu.Lock()
			total += closed
			mu.Unlock()
		}()
	}
	wg.Wait()

	// auctions skipped on a lock timeout are finished by a later run
	closed, err := f.scheduler.Tick(ctx)
	require.NoError(t, err)
	total += closed

	require.Equal(t, 5, total)
	require.Len(t, f.dispatcher.Sent(), 5)
	require.Len(t, f.publisher.Events(), 5)
}

func TestScheduler_Tick_NotifyFailureKeepsWinner(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.err = notifier.ErrQueueFull
	ctx := context.Background()
	f.insert(t, "auction1", time.Now().Add(-time.Second), bid("A", 75))

	closed, err := f.scheduler.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, closed)

	stored, err := f.repo.FindByID(ctx, "auction1")
	require.NoError(t, err)
	require.Equal(t, "A", stored.Winner)
}

func TestScheduler_Tick_UnknownWinnerStillCloses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.insert(t, "auction1", time.Now().Add(-time.Second), bid("deleted-user", 75))

	closed, err := f.scheduler.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, closed)
	require.Empty(t, f.dispatcher.Sent())
}

func TestScheduler_Tick_RespectsHeldLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.insert(t, "auction1", time.Now().Add(-time.Second), bid("A", 75))

	release, err := f.locks.Acquire(ctx, "auction1", time.Second)
	require.NoError(t, err)

	closed, err := f.scheduler.Tick(ctx)
	require.NoError(t, err)
	require.Zero(t, closed)

	stored, err := f.repo.FindByID(ctx, "auction1")
	require.NoError(t, err)
	require.Equal(t, models.AuctionStatusOpen, stored.Status)

	release()
	closed, err = f.scheduler.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, closed)
}

func TestScheduler_Tick_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := repository.NewMockAuctionDB(ctrl)
	s, err := NewScheduler(mockRepo, repository.NewMockUserDB(ctrl), keylock.New(), &fakePublisher{}, &fakeDispatcher{}, Config{})
	require.NoError(t, err)

	mockRepo.EXPECT().FindMany(gomock.Any(), gomock.Any(), repository.SortEnding, 0, 0).Return(nil, errors.New("disk gone"))
	_, err = s.Tick(context.Background())
	require.ErrorIs(t, err, biddingerrors.ErrStoreFailure)

	expired := models.Auction{AuctionID: "auction1", EndDate: time.Now().Add(-time.Second), Status: models.AuctionStatusOpen}
	mockRepo.EXPECT().FindMany(gomock.Any(), gomock.Any(), gomock.Any(), 0, 0).Return([]models.Auction{expired}, nil)
	mockRepo.EXPECT().FindByID(gomock.Any(), "auction1").Return(expired, nil)
	mockRepo.EXPECT().Update(gomock.Any(), "auction1", gomock.Any()).Return(models.Auction{}, errors.New("write failed"))

	closed, err := s.Tick(context.Background())
	require.ErrorIs(t, err, biddingerrors.ErrStoreFailure)
	require.Zero(t, closed)
}

func TestScheduler_StartStop(t *testing.T) {
	f := newFixture(t)
	f.insert(t, "auction1", time.Now().Add(-time.Second), bid("A", 75))

	s, err := NewScheduler(f.repo, f.repo, f.locks, f.publisher, f.dispatcher, Config{Interval: 10 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool {
		a, err := f.repo.FindByID(context.Background(), "auction1")
		return err == nil && a.Status == models.AuctionStatusClosed
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
}

func TestScheduler_Tick_RacesBidsAtDeadline(t *testing.T) {
	for run := 0; run < 50; run++ {
		t.Run(fmt.Sprintf("run_%d", run), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			service := bidding.NewBiddingService(f.repo, f.repo, f.locks, f.publisher)

			f.insert(t, "auction1", time.Now().Add(2*time.Millisecond))

			var (
				wg       sync.WaitGroup
				next     atomic.Int64
				accepted atomic.Int64
			)
			giveUp := time.Now().Add(2 * time.Second)

			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					bidder := []string{"A", "B"}[i%2]
					for time.Now().Before(giveUp) {
						_, err := service.PlaceBid(ctx, "auction1", bidder, 50+float64(next.Add(1)))
						switch {
						case err == nil:
							accepted.Add(1)
						case errors.Is(err, biddingerrors.ErrAuctionClosed):
							return
						case errors.Is(err, biddingerrors.ErrBidTooLow), errors.Is(err, biddingerrors.ErrBusy):
						default:
							t.Errorf("unexpected bid error: %v", err)
							return
						}
					}
				}(i)
			}

			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for time.Now().Before(giveUp) {
						if _, err := f.scheduler.Tick(ctx); err != nil {
							t.Errorf("tick: %v", err)
							return
						}
						a, err := f.repo.FindByID(ctx, "auction1")
						if err == nil && a.Status == models.AuctionStatusClosed {
							return
						}
						time.Sleep(100 * time.Microsecond)
					}
				}()
			}
			wg.Wait()

			stored, err := f.repo.FindByID(ctx, "auction1")
			require.NoError(t, err)
			require.Equal(t, models.AuctionStatusClosed, stored.Status)
			require.NotNil(t, stored.ClosedAt)
			require.NoError(t, stored.CheckInvariants())
			require.Len(t, stored.Bids, int(accepted.Load()), "every accepted bid is stored")

			for _, b := range stored.Bids {
				require.True(t, b.CreatedAt.Before(stored.EndDate), "bid %s placed after the deadline", b.BidID)
			}

			leader, hasBids := stored.Leader()
			require.Equal(t, leader, stored.Winner)
			if hasBids {
				require.Len(t, f.dispatcher.Sent(), 1)
			} else {
				require.Empty(t, f.dispatcher.Sent())
			}

			// no bid is broadcast after the close
			closedSeen := 0
			for _, ev := range f.publisher.Events() {
				switch ev.Name {
				case realtime.EventAuctionClosed:
					closedSeen++
				case realtime.EventBidUpdated:
					require.Zero(t, closedSeen, "bidUpdated after auctionClosed")
				}
			}
			require.Equal(t, 1, closedSeen)
		})
	}
}
