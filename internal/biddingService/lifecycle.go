package bidding

import (
	"auction-engine/internal/models"
	"time"
)

// Transition describes what Advance changed
type Transition struct {
	Opened bool
	Ended  bool
}

// Changed reports whether any state transition was applied
func (t Transition) Changed() bool {
	return t.Opened || t.Ended
}

// Advance returns a copy of a with every transition due at now applied.
//
//	scheduled -> active  once now >= openTime
//	active    -> ended   once now is past the deadline (last bid, or open time
//	                     when nobody bid, plus the silence window)
//
// Both transitions may apply in one call. An ended auction is returned unchanged.
func Advance(a models.Auction, now time.Time) (models.Auction, Transition) {
	next := a.Clone()
	var tr Transition

	if next.Status == models.StatusScheduled && !now.Before(next.OpenTime) {
		next.Status = models.StatusActive
		tr.Opened = true
	}

	if next.Status == models.StatusActive && now.After(next.Deadline()) {
		closedAt := now
		next.Status = models.StatusEnded
		next.ClosedAt = &closedAt
		if leader, ok := next.LeadingBid(); ok {
			next.WinnerUserID = leader.UserID
			next.WinnerUserName = leader.UserName
		}
		tr.Ended = true
	}

	return next, tr
}
