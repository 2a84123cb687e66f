package bidding

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"auction-engine/internal/repository"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestBiddingService_CreateAuction(t *testing.T) {
	service, repo, _ := newTestService(t)
	ctx := context.Background()
	future := time.Now().Add(24 * time.Hour)

	tests := []struct {
		name          string
		sellerID      string
		params        CreateAuctionParams
		expectedError error
	}{
		{
			name:     "valid",
			sellerID: "seller1",
			params:   CreateAuctionParams{Title: "Harbour at dawn", StartingBid: 99.999, EndDate: future},
		},
		{
			name:          "not_a_seller",
			sellerID:      "A",
			params:        CreateAuctionParams{Title: "Harbour at dawn", StartingBid: 100, EndDate: future},
			expectedError: biddingerrors.ErrForbidden,
		},
		{
			name:          "unknown_seller",
			sellerID:      "ghost",
			params:        CreateAuctionParams{Title: "Harbour at dawn", StartingBid: 100, EndDate: future},
			expectedError: biddingerrors.ErrUserNotFound,
		},
		{
			name:          "missing_title",
			sellerID:      "seller1",
			params:        CreateAuctionParams{Title: "   ", StartingBid: 100, EndDate: future},
			expectedError: biddingerrors.ErrInvalidAuction,
		},
		{
			name:          "zero_starting_bid",
			sellerID:      "seller1",
			params:        CreateAuctionParams{Title: "Harbour at dawn", EndDate: future},
			expectedError: biddingerrors.ErrInvalidAuction,
		},
		{
			name:          "end_date_in_past",
			sellerID:      "seller1",
			params:        CreateAuctionParams{Title: "Harbour at dawn", StartingBid: 100, EndDate: time.Now().Add(-time.Minute)},
			expectedError: biddingerrors.ErrInvalidAuction,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			created, err := service.CreateAuction(ctx, tc.sellerID, tc.params)
			if tc.expectedError != nil {
				require.ErrorIs(t, err, tc.expectedError)
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, created.AuctionID)
			require.Equal(t, 100.0, created.StartingBid)
			require.Equal(t, created.StartingBid, created.CurrentBid)
			require.Equal(t, "Other", created.Category)
			require.Equal(t, model.AuctionStatusOpen, created.Status)
			require.Empty(t, created.Bids)

			stored, err := repo.FindByID(ctx, created.AuctionID)
			require.NoError(t, err)
			require.Equal(t, created.Title, stored.Title)
		})
	}
}

func TestBiddingService_GetAuction(t *testing.T) {
	service, _, _ := newTestService(t, openAuction("auction1", 100, time.Now().Add(time.Hour)))
	ctx := context.Background()

	a, err := service.GetAuction(ctx, "auction1")
	require.NoError(t, err)
	require.Equal(t, "auction1", a.AuctionID)

	_, err = service.GetAuction(ctx, "missing")
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)

	_, err = service.GetAuction(ctx, "")
	require.ErrorIs(t, err, biddingerrors.ErrInvalidAuction)
}

func TestBiddingService_SearchAuctions(t *testing.T) {
	end := time.Now().Add(time.Hour)
	var auctions []model.Auction
	for i, price := range []float64{10, 20, 30, 40, 50} {
		a := openAuction(string(rune('a'+i)), price, end)
		a.Category = "Art"
		auctions = append(auctions, a)
	}
	service, _, _ := newTestService(t, auctions...)
	ctx := context.Background()

	page, err := service.SearchAuctions(ctx, repository.Filter{Category: "Art"}, repository.SortLowest, 2, 2)
	require.NoError(t, err)
	require.Equal(t, 5, page.Count)
	require.Equal(t, 3, page.Pages)
	require.Equal(t, 2, page.Page)
	require.Len(t, page.Auctions, 2)
	require.Equal(t, 30.0, page.Auctions[0].CurrentBid)
	require.Equal(t, 40.0, page.Auctions[1].CurrentBid)

	page, err = service.SearchAuctions(ctx, repository.Filter{Category: "Music"}, repository.SortDefault, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 0, page.Count)
	require.Equal(t, 1, page.Page)
	require.NotNil(t, page.Auctions)
	require.Empty(t, page.Auctions)
}

func TestBiddingService_SearchAuctions_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := repository.NewMockAuctionDB(ctrl)
	service := NewBiddingService(mockRepo, repository.NewMockUserDB(ctrl), nil, &publishRecorder{})

	mockRepo.EXPECT().FindMany(gomock.Any(), gomock.Any(), gomock.Any(), 0, DefaultPageSize).Return(nil, errors.New("disk gone"))

	_, err := service.SearchAuctions(context.Background(), repository.Filter{}, repository.SortDefault, 1, 0)
	require.ErrorIs(t, err, biddingerrors.ErrStoreFailure)
}

func TestBiddingService_GetBidsAndAuctionsByBidder(t *testing.T) {
	end := time.Now().Add(time.Hour)
	service, _, _ := newTestService(t, openAuction("auction1", 100, end), openAuction("auction2", 100, end), openAuction("auction3", 100, end))
	ctx := context.Background()

	_, err := service.PlaceBid(ctx, "auction1", "A", 110)
	require.NoError(t, err)
	_, err = service.PlaceBid(ctx, "auction1", "B", 120)
	require.NoError(t, err)
	_, err = service.PlaceBid(ctx, "auction3", "A", 130)
	require.NoError(t, err)

	bids, err := service.GetBidsForAuction(ctx, "auction1")
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Equal(t, "A", bids[0].BidderID)
	require.Equal(t, "B", bids[1].BidderID)

	_, err = service.GetBidsForAuction(ctx, "missing")
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)

	mine, err := service.GetAuctionsByBidder(ctx, "A")
	require.NoError(t, err)
	require.Len(t, mine, 2)

	none, err := service.GetAuctionsByBidder(ctx, "C")
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = service.GetAuctionsByBidder(ctx, "")
	require.ErrorIs(t, err, biddingerrors.ErrInvalidBid)
}

func TestBiddingService_UpdateAuction(t *testing.T) {
	closed := openAuction("closed", 100, time.Now().Add(-time.Hour))
	closed.Status = model.AuctionStatusClosed
	service, _, _ := newTestService(t, openAuction("auction1", 100, time.Now().Add(time.Hour)), closed)
	ctx := context.Background()

	tests := []struct {
		name          string
		requester     string
		auctionID     string
		params        UpdateAuctionParams
		expectedError error
	}{
		{name: "seller_edits", requester: "seller1", auctionID: "auction1", params: UpdateAuctionParams{Title: strPtr("New title")}},
		{name: "admin_edits", requester: "admin1", auctionID: "auction1", params: UpdateAuctionParams{Description: strPtr("by admin")}},
		{name: "stranger", requester: "A", auctionID: "auction1", params: UpdateAuctionParams{Title: strPtr("mine now")}, expectedError: biddingerrors.ErrForbidden},
		{name: "blank_title", requester: "seller1", auctionID: "auction1", params: UpdateAuctionParams{Title: strPtr(" ")}, expectedError: biddingerrors.ErrInvalidAuction},
		{name: "closed_auction", requester: "seller1", auctionID: "closed", params: UpdateAuctionParams{Title: strPtr("late")}, expectedError: biddingerrors.ErrAuctionClosed},
		{name: "missing", requester: "seller1", auctionID: "missing", params: UpdateAuctionParams{Title: strPtr("x")}, expectedError: biddingerrors.ErrAuctionNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			updated, err := service.UpdateAuction(ctx, tc.requester, tc.auctionID, tc.params)
			if tc.expectedError != nil {
				require.ErrorIs(t, err, tc.expectedError)
				return
			}
			require.NoError(t, err)
			if tc.params.Title != nil {
				require.Equal(t, *tc.params.Title, updated.Title)
			}
			if tc.params.Description != nil {
				require.Equal(t, *tc.params.Description, updated.Description)
			}
			require.Equal(t, 100.0, updated.CurrentBid)
		})
	}
}

func TestBiddingService_DeleteAuction(t *testing.T) {
	closed := openAuction("closed", 100, time.Now().Add(-time.Hour))
	closed.Status = model.AuctionStatusClosed
	service, repo, _ := newTestService(t, openAuction("auction1", 100, time.Now().Add(time.Hour)), closed)
	ctx := context.Background()

	_, err := service.DeleteAuction(ctx, "seller1", "auction1")
	require.ErrorIs(t, err, biddingerrors.ErrAuctionOpen)

	_, err = service.DeleteAuction(ctx, "B", "closed")
	require.ErrorIs(t, err, biddingerrors.ErrForbidden)

	deleted, err := service.DeleteAuction(ctx, "seller1", "closed")
	require.NoError(t, err)
	require.Equal(t, "closed", deleted.AuctionID)

	_, err = repo.FindByID(ctx, "closed")
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)

	_, err = service.DeleteAuction(ctx, "seller1", "closed")
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
}
