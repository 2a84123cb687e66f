package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=bidding_handler.go -destination=mock_bidding_handler.go -package=handler

type BiddingServiceInterface interface {
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64) (model.Auction, error)
	CreateAuction(ctx context.Context, sellerID string, p bidding.CreateAuctionParams) (model.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	SearchAuctions(ctx context.Context, filter repository.Filter, sort repository.Sort, page, pageSize int) (bidding.AuctionPage, error)
	GetBidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetAuctionsByBidder(ctx context.Context, userID string) ([]model.Auction, error)
	UpdateAuction(ctx context.Context, requesterID, auctionID string, p bidding.UpdateAuctionParams) (model.Auction, error)
	DeleteAuction(ctx context.Context, requesterID, auctionID string) (model.Auction, error)
}

type BiddingHandler struct {
	service BiddingServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service}
}

// respondError maps err to a status and logs it
func respondError(c *gin.Context, handlerName string, err error, fields map[string]any) {
	status, message := helpers.MapErrorToHTTP(err)
	utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)

	fields["handler"] = handlerName
	fields["error"] = err.Error()
	if status >= http.StatusInternalServerError {
		utils.Error(handlerName+": request failed", fields)
		return
	}
	utils.Warn(handlerName+": request rejected", fields)
}

// requireUser aborts with 401 when the auth middleware did not run
func requireUser(c *gin.Context) (model.User, bool) {
	user, ok := helpers.CurrentUser(c)
	if !ok {
		utils.JSONError(c, http.StatusUnauthorized, errors.New("missing user identity"), "authentication required")
		return model.User{}, false
	}
	return user, true
}

// SearchAuctionsHandler handles GET /auctions
func (h *BiddingHandler) SearchAuctionsHandler(c *gin.Context) {
	var q helpers.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		helpers.HandleBindError(c, "SearchAuctionsHandler", err)
		return
	}
	filter, err := q.Filter()
	if err != nil {
		helpers.HandleBindError(c, "SearchAuctionsHandler", err)
		return
	}

	page, err := h.service.SearchAuctions(c.Request.Context(), filter, repository.ParseSort(q.Order), q.Page, q.PageSize)
	if err != nil {
		respondError(c, "SearchAuctionsHandler", err, map[string]any{"query": q.Query})
		return
	}

	utils.JSONResponse(c, http.StatusOK, page, "auctions retrieved successfully")
	helpers.LogSuccess("SearchAuctionsHandler", "auctions retrieved successfully", map[string]any{
		"count": page.Count,
		"page":  page.Page,
	})
}

// SellerAuctionsHandler handles GET /me/auctions, the paginated listings of the calling seller
func (h *BiddingHandler) SellerAuctionsHandler(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if !user.IsSeller && !user.IsAdmin {
		respondError(c, "SellerAuctionsHandler", fmt.Errorf("user %s is not a seller: %w", user.UserID, biddingerrors.ErrForbidden), map[string]any{"user_id": user.UserID})
		return
	}

	var q helpers.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		helpers.HandleBindError(c, "SellerAuctionsHandler", err)
		return
	}
	filter, err := q.Filter()
	if err != nil {
		helpers.HandleBindError(c, "SellerAuctionsHandler", err)
		return
	}
	filter.SellerID = user.UserID

	page, err := h.service.SearchAuctions(c.Request.Context(), filter, repository.ParseSort(q.Order), q.Page, q.PageSize)
	if err != nil {
		respondError(c, "SellerAuctionsHandler", err, map[string]any{"seller_id": user.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, page, "auctions retrieved successfully")
	helpers.LogSuccess("SellerAuctionsHandler", "auctions retrieved successfully", map[string]any{
		"seller_id": user.UserID,
		"count":     page.Count,
	})
}

// CreateAuctionHandler handles POST /auctions
func (h *BiddingHandler) CreateAuctionHandler(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	auction, err := h.service.CreateAuction(c.Request.Context(), user.UserID, req.Params())
	if err != nil {
		respondError(c, "CreateAuctionHandler", err, map[string]any{"seller_id": user.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, auction, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"seller_id":  user.UserID,
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *BiddingHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		respondError(c, "GetAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, auction, "auction retrieved successfully")
}

// UpdateAuctionHandler handles PUT /auctions/:auction_id
func (h *BiddingHandler) UpdateAuctionHandler(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	auctionID := c.Param("auction_id")

	var req helpers.UpdateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateAuctionHandler", err)
		return
	}
	if req.Empty() {
		helpers.HandleBindError(c, "UpdateAuctionHandler", errors.New("no fields to update"))
		return
	}

	auction, err := h.service.UpdateAuction(c.Request.Context(), user.UserID, auctionID, req.Params())
	if err != nil {
		respondError(c, "UpdateAuctionHandler", err, map[string]any{"auction_id": auctionID, "user_id": user.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction updated successfully")
	helpers.LogSuccess("UpdateAuctionHandler", "auction updated successfully", map[string]any{
		"auction_id": auctionID,
		"user_id":    user.UserID,
	})
}

// DeleteAuctionHandler handles DELETE /auctions/:auction_id
func (h *BiddingHandler) DeleteAuctionHandler(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	auctionID := c.Param("auction_id")

	auction, err := h.service.DeleteAuction(c.Request.Context(), user.UserID, auctionID)
	if err != nil {
		respondError(c, "DeleteAuctionHandler", err, map[string]any{"auction_id": auctionID, "user_id": user.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction deleted successfully")
	helpers.LogSuccess("DeleteAuctionHandler", "auction deleted successfully", map[string]any{
		"auction_id": auctionID,
		"user_id":    user.UserID,
	})
}

// GetBidsByAuctionHandler handles GET /auctions/:auction_id/bids
func (h *BiddingHandler) GetBidsByAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.GetBidsForAuction(c.Request.Context(), auctionID)
	if err != nil {
		respondError(c, "GetBidsByAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	resp := make([]helpers.BidResponse, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, helpers.ToBidResponse(auctionID, b))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByAuctionHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(resp),
	})
}

// PlaceBidHandler handles POST /auctions/:auction_id/bids
func (h *BiddingHandler) PlaceBidHandler(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	auctionID := c.Param("auction_id")

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	auction, err := h.service.PlaceBid(c.Request.Context(), auctionID, user.UserID, req.Amount)
	if err != nil {
		respondError(c, "PlaceBidHandler", err, map[string]any{
			"auction_id": auctionID,
			"user_id":    user.UserID,
			"amount":     req.Amount,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, auction, "bid recorded successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid recorded successfully", map[string]any{
		"auction_id":  auctionID,
		"user_id":     user.UserID,
		"current_bid": auction.CurrentBid,
	})
}

// GetAuctionsByUserHandler handles GET /users/:user_id/auctions
func (h *BiddingHandler) GetAuctionsByUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	auctions, err := h.service.GetAuctionsByBidder(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "GetAuctionsByUserHandler", err, map[string]any{"user_id": userID})
		return
	}

	if auctions == nil {
		auctions = []model.Auction{}
	}

	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
	helpers.LogSuccess("GetAuctionsByUserHandler", "auctions retrieved successfully", map[string]any{
		"user_id":        userID,
		"auctions_count": len(auctions),
	})
}
