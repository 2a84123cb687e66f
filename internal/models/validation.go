package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// monetaryPrecision is the number of decimal places kept for bid amounts (cents)
const monetaryPrecision int32 = 2

// NormalizeAmount rounds an amount to monetary precision
func NormalizeAmount(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(monetaryPrecision).InexactFloat64()
}

// ExceedsBid returns true if amount is strictly greater than current at monetary precision.
// Uses decimal arithmetic to avoid floating-point errors.
func ExceedsBid(amount, current float64) bool {
	amountDecimal := decimal.NewFromFloat(amount).Round(monetaryPrecision)
	currentDecimal := decimal.NewFromFloat(current).Round(monetaryPrecision)

	return amountDecimal.GreaterThan(currentDecimal)
}

// Validate checks the fields the bidding engine depends on for a newly listed auction
func (a Auction) Validate() error {
	var errs []error
	if strings.TrimSpace(a.Title) == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if a.SellerID == "" {
		errs = append(errs, errors.New("seller is required"))
	}
	if a.StartingBid <= 0 {
		errs = append(errs, errors.New("starting bid must be positive"))
	}
	if a.EndDate.IsZero() {
		errs = append(errs, errors.New("end date is required"))
	}
	if len(a.Bids) != 0 {
		errs = append(errs, errors.New("new auction must not carry bids"))
	}
	if a.Winner != "" {
		errs = append(errs, errors.New("new auction must not have a winner"))
	}
	return errors.Join(errs...)
}

// CheckInvariants verifies the bid history against the current bid
func (a Auction) CheckInvariants() error {
	if len(a.Bids) == 0 {
		if a.CurrentBid != a.StartingBid {
			return fmt.Errorf("current bid %.2f differs from starting bid %.2f with no bids", a.CurrentBid, a.StartingBid)
		}
		return nil
	}

	prev := a.StartingBid
	for i, b := range a.Bids {
		if !ExceedsBid(b.Amount, prev) {
			return fmt.Errorf("bid %d amount %.2f does not exceed %.2f", i, b.Amount, prev)
		}
		if i > 0 && b.CreatedAt.Before(a.Bids[i-1].CreatedAt) {
			return fmt.Errorf("bid %d placed before bid %d", i, i-1)
		}
		prev = b.Amount
	}
	if a.CurrentBid != prev {
		return fmt.Errorf("current bid %.2f differs from last bid %.2f", a.CurrentBid, prev)
	}
	return nil
}
