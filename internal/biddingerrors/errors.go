package biddingerrors

import (
	"errors"
	"fmt"
)

// Repository-level errors
var (
	ErrAuctionNotFound    = errors.New("auction not found")
	ErrAuctionExists      = errors.New("auction already exists")
	ErrVersionMismatch    = errors.New("auction revision changed")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// business logic errors
var (
	ErrInvalidBid     = errors.New("invalid bid")
	ErrInvalidAuction = errors.New("invalid auction")
	ErrInvalidStatus  = errors.New("invalid status filter")
	ErrNotActive      = errors.New("auction is not active")
	ErrBidTooLow      = errors.New("bid amount too low")
	ErrSelfOutbid     = errors.New("bidder already holds the leading bid")
	ErrConflict       = errors.New("price changed, please retry")
)

// BidTooLowError reports the smallest amount that would have been accepted.
// It matches ErrBidTooLow with errors.Is.
type BidTooLowError struct {
	MinAcceptable int64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s: minimum acceptable bid is %d", ErrBidTooLow, e.MinAcceptable)
}

func (e *BidTooLowError) Is(target error) bool {
	return target == ErrBidTooLow
}

// NewBidTooLow builds a BidTooLowError for the given minimum
func NewBidTooLow(minAcceptable int64) error {
	return &BidTooLowError{MinAcceptable: minAcceptable}
}

// MinAcceptable extracts the minimum acceptable amount from err, if it carries one
func MinAcceptable(err error) (int64, bool) {
	var tooLow *BidTooLowError
	if errors.As(err, &tooLow) {
		return tooLow.MinAcceptable, true
	}
	return 0, false
}
