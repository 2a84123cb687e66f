package integrationtests

import (
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/closing"
	"auction-engine/internal/keylock"
	model "auction-engine/internal/models"
	"auction-engine/internal/notifier"
	"auction-engine/internal/realtime"
	"auction-engine/internal/repository"
	"auction-engine/internal/server"
	"auction-engine/utils"
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// TestEnv is a fully wired engine backed by the in-memory repository
type TestEnv struct {
	Router     *gin.Engine
	Repo       *repository.MemoryRepo
	Hub        *realtime.Hub
	Scheduler  *closing.Scheduler
	Dispatcher *notifier.Dispatcher
	Outbox     *Outbox
}

// Outbox records delivered notifications
type Outbox struct {
	mu   sync.Mutex
	sent []notifier.Notification
}

func (o *Outbox) Notify(_ context.Context, n notifier.Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, n)
	return nil
}

func (o *Outbox) Sent() []notifier.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]notifier.Notification(nil), o.sent...)
}

// testUsers are registered in every environment
var testUsers = []model.User{
	{UserID: "seller1", Username: "sam", Email: "sam@example.com", IsSeller: true},
	{UserID: "user1", Username: "alice", Email: "alice@example.com"},
	{UserID: "user2", Username: "bob", Email: "bob@example.com"},
	{UserID: "user3", Username: "carol", Email: "carol@example.com"},
	{UserID: "admin1", Username: "root", Email: "root@example.com", IsAdmin: true},
}

// NewAuction returns an open auction by seller1
func NewAuction(id string, startingBid float64, endDate time.Time) model.Auction {
	return model.Auction{
		AuctionID:   id,
		SellerID:    "seller1",
		Title:       "title " + id,
		Description: "description " + id,
		Category:    "Other",
		StartingBid: startingBid,
		CurrentBid:  startingBid,
		Bids:        []model.Bid{},
		EndDate:     endDate,
		Status:      model.AuctionStatusOpen,
		CreatedAt:   time.Now().UTC(),
	}
}

// SetupTestEnv wires the engine and seeds the repo with users and auctions.
// The closing scheduler is not started; tests drive it with Tick.
func SetupTestEnv(t *testing.T, auctions ...model.Auction) *TestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	repo := repository.NewMemoryRepo()
	for _, u := range testUsers {
		require.NoError(t, repo.InsertUser(ctx, u))
	}
	for _, a := range auctions {
		require.NoError(t, repo.Insert(ctx, a))
	}

	locks := keylock.New()
	hub := realtime.NewHub()
	registry := realtime.NewRegistry(hub, repo, locks, time.Second)
	service := bidding.NewBiddingService(repo, repo, locks, hub, bidding.WithLockTimeout(time.Second))

	outbox := &Outbox{}
	dispatcher := notifier.NewDispatcher(outbox, 16, 1)
	dispatcher.Start(ctx)
	t.Cleanup(func() { dispatcher.Stop(context.Background()) })

	scheduler, err := closing.NewScheduler(repo, repo, locks, hub, dispatcher, closing.Config{
		Workers:     4,
		LockTimeout: time.Second,
		Sender:      "auctions@example.com",
	})
	require.NoError(t, err)

	config := utils.Config{AllowedOrigins: []string{"*"}}
	return &TestEnv{
		Router:     server.SetupRouter(ctx, config, service, repo, registry),
		Repo:       repo,
		Hub:        hub,
		Scheduler:  scheduler,
		Dispatcher: dispatcher,
		Outbox:     outbox,
	}
}

// ExecuteRequestAndParse executes an HTTP request as userID (empty for anonymous) and parses the response envelope
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url, userID string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(server.UserIDHeader, userID)
	}
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return resp, w
}

// PlaceBid posts a bid and returns the status code
func PlaceBid(t *testing.T, router *gin.Engine, auctionID, userID string, amount float64) int {
	t.Helper()
	_, w := ExecuteRequestAndParse(t, router, "POST", "/auctions/"+auctionID+"/bids", userID, map[string]any{"amount": amount})
	return w.Code
}
