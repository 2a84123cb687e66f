package biddingerrors

import "errors"

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateID     = errors.New("record already exists")
	ErrStoreFailure    = errors.New("store failure")
	ErrInvariant       = errors.New("auction invariant violated")
)

// business logic errors
var (
	ErrInvalidBid     = errors.New("invalid bid")
	ErrInvalidAuction = errors.New("invalid auction")
	ErrBidTooLow      = errors.New("bid amount too low")
	ErrAuctionClosed  = errors.New("auction has ended")
	ErrAuctionOpen    = errors.New("auction is still open")
	ErrBidderMismatch = errors.New("bidder does not match authenticated user")
	ErrForbidden      = errors.New("operation not permitted")
)

// transient errors, safe for the caller to retry with backoff
var (
	ErrBusy = errors.New("auction busy, try again")
)

// ErrNotifyFailure never leaves the closing scheduler; it only tags log entries
var ErrNotifyFailure = errors.New("notification failed")
