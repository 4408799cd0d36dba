package bidding

import (
	"auction-engine/internal/models"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a manually advanced clock shared by all goroutines of a test
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// newAuction builds an auction the way the admin flow would create it
func newAuction(id string, startPrice, step int64, timeoutMinutes int, openTime time.Time) models.Auction {
	return models.Auction{
		ID:             id,
		Name:           "Auction " + id,
		Description:    id + " description",
		StartPrice:     startPrice,
		CurrentPrice:   startPrice,
		MinBidStep:     step,
		OpenTime:       openTime,
		TimeoutMinutes: timeoutMinutes,
		Status:         models.StatusScheduled,
		Bids:           []models.Bid{},
	}
}

// withBids returns a copy of a in the active state carrying the given bids
func withBids(a models.Auction, bids ...models.Bid) models.Auction {
	a.Status = models.StatusActive
	a.Bids = append([]models.Bid(nil), bids...)
	if len(bids) > 0 {
		last := bids[len(bids)-1]
		a.CurrentPrice = last.Amount
		ts := last.Timestamp
		a.LastBidTime = &ts
	}
	return a
}

func seed(t *testing.T, svc *BiddingService, a models.Auction) models.Auction {
	t.Helper()
	created, err := svc.CreateAuction(context.Background(), a)
	require.NoError(t, err)
	return created
}
