package main

import (
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/closing"
	"auction-engine/internal/keylock"
	model "auction-engine/internal/models"
	"auction-engine/internal/notifier"
	"auction-engine/internal/realtime"
	"auction-engine/internal/repository"
	"auction-engine/internal/server"
	"auction-engine/utils"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// store is what the engine needs from persistence
type store interface {
	repository.AuctionDB
	repository.UserDB
}

func main() {
	configPath := flag.String("config", "app.env", "path to an env-format config file")
	flag.Parse()

	config, err := utils.LoadConfig(*configPath)
	if err != nil {
		utils.Fatal("cannot load config", map[string]any{"error": err.Error()})
	}
	utils.SetLogLevel(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closer, err := openStore(config)
	if err != nil {
		utils.Fatal("cannot open store", map[string]any{"driver": config.StoreDriver, "error": err.Error()})
	}
	defer closer.Close()

	if config.SeedData {
		if err := prepopulate(ctx, repo); err != nil {
			utils.Fatal("cannot seed store", map[string]any{"error": err.Error()})
		}
	}

	locks := keylock.New()
	hub := realtime.NewHub()
	registry := realtime.NewRegistry(hub, repo, locks, config.BidLockTimeout)
	biddingSvc := bidding.NewBiddingService(repo, repo, locks, hub, bidding.WithLockTimeout(config.BidLockTimeout))

	dispatcher := notifier.NewDispatcher(newNotifier(config), config.NotifyQueueSize, config.NotifyWorkers)
	dispatcher.Start(context.WithoutCancel(ctx))

	scheduler, err := closing.NewScheduler(repo, repo, locks, hub, dispatcher, closing.Config{
		Interval:    config.ClosingInterval,
		Workers:     config.ClosingWorkers,
		LockTimeout: config.BidLockTimeout,
		Sender:      config.EmailFrom,
		ReplyTo:     config.EmailReplyTo,
	})
	if err != nil {
		utils.Fatal("cannot create closing scheduler", map[string]any{"error": err.Error()})
	}
	if err := scheduler.Start(ctx); err != nil {
		utils.Fatal("cannot start closing scheduler", map[string]any{"error": err.Error()})
	}

	router := server.SetupRouter(ctx, config, biddingSvc, repo, registry)
	httpServer := &http.Server{
		Addr:              config.HTTPServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.Info("Starting auction server", map[string]any{"address": config.HTTPServerAddress, "store": config.StoreDriver})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Error("HTTP server failed", map[string]any{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	utils.Info("Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		utils.Error("HTTP server shutdown failed", map[string]any{"error": err.Error()})
	}
	if err := scheduler.Stop(); err != nil {
		utils.Error("Closing scheduler shutdown failed", map[string]any{"error": err.Error()})
	}
	hub.Close()
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		utils.Error("Notification dispatcher shutdown failed", map[string]any{"error": err.Error()})
	}
}

// openStore returns the configured store and what to close on exit
func openStore(config utils.Config) (store, io.Closer, error) {
	switch config.StoreDriver {
	case utils.StoreDriverBolt:
		repo, err := repository.NewBoltRepo(config.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo, nil
	case utils.StoreDriverMemory:
		return repository.NewMemoryRepo(), io.NopCloser(nil), nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", config.StoreDriver)
	}
}

// newNotifier sends mail when SMTP is configured and logs otherwise
func newNotifier(config utils.Config) notifier.Notifier {
	if config.SMTPHost == "" {
		utils.Warn("SMTP_HOST not set, winner notifications are only logged", nil)
		return notifier.LogNotifier{}
	}
	mailer, err := notifier.NewSMTPMailer(notifier.SMTPConfig{
		Host:     config.SMTPHost,
		Port:     config.SMTPPort,
		Username: config.SMTPUsername,
		Password: config.SMTPPassword,
	})
	if err != nil {
		utils.Fatal("cannot create SMTP mailer", map[string]any{"host": config.SMTPHost, "error": err.Error()})
	}
	return mailer
}

// prepopulate adds sample users and auctions. Records that already exist are kept.
func prepopulate(ctx context.Context, repo store) error {
	users := []model.User{
		{UserID: "seller1", Username: "sam", Email: "sam@example.com", IsSeller: true},
		{UserID: "user1", Username: "alice", Email: "alice@example.com"},
		{UserID: "user2", Username: "bob", Email: "bob@example.com"},
		{UserID: "admin1", Username: "root", Email: "admin@example.com", IsAdmin: true},
	}
	for _, u := range users {
		if err := repo.InsertUser(ctx, u); err != nil && !errors.Is(err, biddingerrors.ErrDuplicateID) {
			return err
		}
	}

	now := time.Now().UTC()
	auctions := []model.Auction{
		{AuctionID: "auction1", Title: "title1", Description: "description1", Category: "Art", StartingBid: 100, EndDate: now.Add(10 * time.Minute)},
		{AuctionID: "auction2", Title: "title2", Description: "Description2", Category: "Electronics", StartingBid: 200, EndDate: now.Add(time.Hour)},
		{AuctionID: "auction3", Title: "title3", Description: "Description3", Category: "Other", StartingBid: 150, EndDate: now.Add(24 * time.Hour)},
	}
	for _, a := range auctions {
		a.SellerID = "seller1"
		a.CurrentBid = a.StartingBid
		a.Bids = []model.Bid{}
		a.Status = model.AuctionStatusOpen
		a.CreatedAt = now
		a.UpdatedAt = now
		if err := repo.Insert(ctx, a); err != nil && !errors.Is(err, biddingerrors.ErrDuplicateID) {
			return err
		}
	}
	return nil
}
