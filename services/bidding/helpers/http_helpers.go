package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrUserNotFound):
		return http.StatusUnauthorized, "user not found"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, biddingerrors.ErrInvalidAuction):
		return http.StatusBadRequest, "invalid auction details"
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrAuctionClosed):
		return http.StatusConflict, "auction closed"
	case errors.Is(err, biddingerrors.ErrAuctionOpen):
		return http.StatusConflict, "auction still open"
	case errors.Is(err, biddingerrors.ErrForbidden), errors.Is(err, biddingerrors.ErrBidderMismatch):
		return http.StatusForbidden, "not allowed"
	case errors.Is(err, biddingerrors.ErrBusy):
		return http.StatusServiceUnavailable, "server busy, try again"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RealtimeMessage maps an error to the text sent in an auctionError event
func RealtimeMessage(err error) string {
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return "Auction not found"
	case errors.Is(err, biddingerrors.ErrAuctionClosed):
		return "Auction has ended"
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return "Bid must be higher than the current bid"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return "Invalid bid"
	case errors.Is(err, biddingerrors.ErrUserNotFound):
		return "Unknown bidder"
	case errors.Is(err, biddingerrors.ErrBidderMismatch):
		return "Bidder does not match the connection"
	case errors.Is(err, biddingerrors.ErrBusy):
		return "Server busy, try again"
	default:
		return "Server Error"
	}
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}

// matchAll is the search value meaning "no filter"
const matchAll = "all"

// searchValue trims v and maps "all" to the empty string
func searchValue(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, matchAll) {
		return ""
	}
	return v
}

// ParsePriceRange parses "min-max", where either bound may be omitted ("100-", "-500").
// An empty range or "all" sets no bound.
func ParsePriceRange(raw string) (minPrice, maxPrice *float64, err error) {
	raw = searchValue(raw)
	if raw == "" {
		return nil, nil, nil
	}
	lo, hi, ok := strings.Cut(raw, "-")
	if !ok {
		return nil, nil, fmt.Errorf("price %q: expected min-max", raw)
	}
	parse := func(s string) (*float64, error) {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("price %q: invalid bound %q", raw, s)
		}
		return &v, nil
	}
	if minPrice, err = parse(lo); err != nil {
		return nil, nil, err
	}
	if maxPrice, err = parse(hi); err != nil {
		return nil, nil, err
	}
	if minPrice != nil && maxPrice != nil && *minPrice > *maxPrice {
		return nil, nil, fmt.Errorf("price %q: min exceeds max", raw)
	}
	return minPrice, maxPrice, nil
}

// Filter converts search parameters to a repository filter
func (q SearchQuery) Filter() (repository.Filter, error) {
	minPrice, maxPrice, err := ParsePriceRange(q.Price)
	if err != nil {
		return repository.Filter{}, err
	}
	return repository.Filter{
		Query:    searchValue(q.Query),
		Category: searchValue(q.Category),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Status:   models.AuctionStatus(q.Status),
	}, nil
}

// ToBidResponse flattens a bid for the HTTP API
func ToBidResponse(auctionID string, b models.Bid) BidResponse {
	return BidResponse{
		BidID:     b.BidID,
		AuctionID: auctionID,
		BidderID:  b.BidderID,
		Amount:    b.Amount,
		CreatedAt: b.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// UserContextKey is the gin context key holding the authenticated models.User
const UserContextKey = "user"

// CurrentUser returns the user set by the auth middleware
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(UserContextKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}
