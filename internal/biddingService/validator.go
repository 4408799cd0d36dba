package bidding

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"fmt"
	"math"
	"time"
)

// Proposal is a bid as submitted by a client, before acceptance
type Proposal struct {
	UserID   string
	UserName string
	Amount   int64
}

// Decision is what an accepted proposal does to the auction
type Decision struct {
	NewPrice    int64
	NewDeadline time.Time
}

// Policy holds the tunable bidding rules
type Policy struct {
	AllowSelfOutbid bool
}

// Validate decides whether p may be accepted against snapshot at time now.
// It has no side effects. Rules are checked in order: the auction must be
// active, the bidder may not outbid themselves unless the policy allows it,
// and the amount must reach the current price plus the minimum step.
// Every accepted bid moves the deadline to now plus the full silence window.
func Validate(snapshot models.Auction, p Proposal, now time.Time, policy Policy) (Decision, error) {
	if snapshot.Status != models.StatusActive {
		return Decision{}, fmt.Errorf("%w: auction %s is %s", biddingerrors.ErrNotActive, snapshot.ID, snapshot.Status)
	}

	if !policy.AllowSelfOutbid {
		if leader, ok := snapshot.LeadingBid(); ok && leader.UserID == p.UserID {
			return Decision{}, fmt.Errorf("%w: user %s on auction %s", biddingerrors.ErrSelfOutbid, p.UserID, snapshot.ID)
		}
	}

	if !snapshot.Outbiddable() {
		return Decision{}, biddingerrors.NewBidTooLow(math.MaxInt64)
	}
	if minimum := snapshot.MinAcceptableBid(); p.Amount < minimum {
		return Decision{}, biddingerrors.NewBidTooLow(minimum)
	}

	return Decision{
		NewPrice:    p.Amount,
		NewDeadline: now.Add(snapshot.Window()),
	}, nil
}
