package integrationtests

import (
	bidding "auction-engine/internal/biddingService"
	model "auction-engine/internal/models"
	"auction-engine/internal/notify"
	"auction-engine/internal/repository"
	"auction-engine/internal/server"
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var openTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// testClock lets a test move time forward between requests
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// recordingSender captures delivered events
type recordingSender struct {
	mu     sync.Mutex
	events []model.EventPayload
}

func (r *recordingSender) Send(_ context.Context, p model.EventPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

func (r *recordingSender) Events() []model.EventPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.EventPayload(nil), r.events...)
}

type testEnv struct {
	Router  *gin.Engine
	Service *bidding.BiddingService
	Clock   *testClock
	Events  *recordingSender
}

// SetupTestRouter wires the real service over store and seeds it with auctions.
func SetupTestRouter(t *testing.T, store repository.AuctionStore, auctions ...model.Auction) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := &testClock{now: openTime}
	events := &recordingSender{}
	service := bidding.NewBiddingService(store,
		notify.NewDispatcher([]notify.Sender{events}, nil),
		bidding.WithClock(clock.Now),
	)
	t.Cleanup(service.Wait)

	for _, a := range auctions {
		_, err := service.CreateAuction(context.Background(), a)
		require.NoError(t, err)
	}

	return &testEnv{Router: server.SetupRouter(service), Service: service, Clock: clock, Events: events}
}

// ExecuteRequestAndParse executes an HTTP request on the given router and parses the response
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case string:
		reqBody = []byte(v)
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return resp, w
}

func demoAuction(id string, startPrice, step int64) model.Auction {
	return model.Auction{
		ID:             id,
		Name:           "Auction " + id,
		Description:    "integration fixture",
		StartPrice:     startPrice,
		MinBidStep:     step,
		OpenTime:       openTime,
		TimeoutMinutes: 30,
	}
}
