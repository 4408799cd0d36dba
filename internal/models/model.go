package models

import (
	"math"
	"time"
)

// Status is the lifecycle state of an auction
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
)

// Valid reports whether s is one of the known lifecycle states
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusActive, StatusEnded:
		return true
	}
	return false
}

// Bid is one accepted entry in an auction's ledger
type Bid struct {
	BidID     string    `json:"bid_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// Auction is the stored record of a time-boxed auction.
// Revision is the optimistic concurrency token; only the store bumps it.
type Auction struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	StartPrice     int64      `json:"start_price"`
	CurrentPrice   int64      `json:"current_price"`
	MinBidStep     int64      `json:"min_bid_step"`
	OpenTime       time.Time  `json:"open_time"`
	TimeoutMinutes int        `json:"timeout_minutes"`
	LastBidTime    *time.Time `json:"last_bid_time,omitempty"`
	Status         Status     `json:"status"`
	Bids           []Bid      `json:"bids"`
	WinnerUserID   string     `json:"winner_user_id,omitempty"`
	WinnerUserName string     `json:"winner_user_name,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	Revision       int64      `json:"revision"`
}

// MaxTimeoutMinutes is the longest silence window that still fits in a time.Duration
const MaxTimeoutMinutes = math.MaxInt64 / int64(time.Minute)

// Window returns the silence window after which an auction closes
func (a Auction) Window() time.Duration {
	return time.Duration(a.TimeoutMinutes) * time.Minute
}

// Deadline is the instant after which an active auction is due to close.
func (a Auction) Deadline() time.Time {
	if a.LastBidTime != nil {
		return a.LastBidTime.Add(a.Window())
	}
	return a.OpenTime.Add(a.Window())
}

// MinAcceptableBid is the smallest amount the next bid may carry.
// It saturates at math.MaxInt64 once the price can no longer be outbid.
func (a Auction) MinAcceptableBid() int64 {
	if !a.Outbiddable() {
		return math.MaxInt64
	}
	return a.CurrentPrice + a.MinBidStep
}

// Outbiddable reports whether some int64 amount still clears the current price by the minimum step
func (a Auction) Outbiddable() bool {
	return a.CurrentPrice <= math.MaxInt64-a.MinBidStep
}

// LeadingBid returns the most recent accepted bid, if any
func (a Auction) LeadingBid() (Bid, bool) {
	if len(a.Bids) == 0 {
		return Bid{}, false
	}
	return a.Bids[len(a.Bids)-1], true
}

// Clone returns a deep copy so callers never share the bid ledger or timestamps
func (a Auction) Clone() Auction {
	c := a
	if a.Bids != nil {
		c.Bids = append([]Bid(nil), a.Bids...)
	}
	if a.LastBidTime != nil {
		t := *a.LastBidTime
		c.LastBidTime = &t
	}
	if a.ClosedAt != nil {
		t := *a.ClosedAt
		c.ClosedAt = &t
	}
	return c
}

// EventType names a notification emitted by the engine
type EventType string

const (
	EventNewLeadingBid EventType = "new_leading_bid"
	EventAuctionEnded  EventType = "auction_ended"
)

// EventPayload is the body handed to the notification hook
type EventPayload struct {
	AuctionID  string     `json:"auction_id"`
	Event      EventType  `json:"event"`
	Price      int64      `json:"price"`
	UserID     string     `json:"user_id,omitempty"`
	UserName   string     `json:"user_name,omitempty"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	BidCount   int        `json:"bid_count"`
	OccurredAt time.Time  `json:"occurred_at"`
}
