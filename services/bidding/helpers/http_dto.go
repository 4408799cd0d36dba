package helpers

import (
	"time"

	model "auction-engine/internal/models"
)

// Request/Response DTOs
type PlaceBidRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	UserName string `json:"user_name"`
	Amount   int64  `json:"amount" binding:"required,gt=0"`
}

type BidResponse struct {
	BidID     string `json:"bid_id"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	Amount    int64  `json:"amount"`
	Timestamp string `json:"timestamp"`
}

type AuctionResponse struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	Status           string  `json:"status"`
	StartPrice       int64   `json:"start_price"`
	CurrentPrice     int64   `json:"current_price"`
	MinBidStep       int64   `json:"min_bid_step"`
	MinAcceptableBid int64   `json:"min_acceptable_bid"`
	OpenTime         string  `json:"open_time"`
	TimeoutMinutes   int     `json:"timeout_minutes"`
	Deadline         string  `json:"deadline"`
	LastBidTime      *string `json:"last_bid_time,omitempty"`
	BidCount         int     `json:"bid_count"`
	LeaderUserID     string  `json:"leader_user_id,omitempty"`
	LeaderUserName   string  `json:"leader_user_name,omitempty"`
	WinnerUserID     string  `json:"winner_user_id,omitempty"`
	WinnerUserName   string  `json:"winner_user_name,omitempty"`
	ClosedAt         *string `json:"closed_at,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// ToBidResponse converts a stored bid to its wire form
func ToBidResponse(b model.Bid) BidResponse {
	return BidResponse{
		BidID:     b.BidID,
		UserID:    b.UserID,
		UserName:  b.UserName,
		Amount:    b.Amount,
		Timestamp: formatTime(b.Timestamp),
	}
}

// ToBidResponses keeps bid order and never returns nil
func ToBidResponses(bids []model.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, ToBidResponse(b))
	}
	return out
}

// ToAuctionResponse converts an auction snapshot, including derived fields
func ToAuctionResponse(a model.Auction) AuctionResponse {
	resp := AuctionResponse{
		ID:               a.ID,
		Name:             a.Name,
		Description:      a.Description,
		Status:           string(a.Status),
		StartPrice:       a.StartPrice,
		CurrentPrice:     a.CurrentPrice,
		MinBidStep:       a.MinBidStep,
		MinAcceptableBid: a.MinAcceptableBid(),
		OpenTime:         formatTime(a.OpenTime),
		TimeoutMinutes:   a.TimeoutMinutes,
		Deadline:         formatTime(a.Deadline()),
		LastBidTime:      formatTimePtr(a.LastBidTime),
		BidCount:         len(a.Bids),
		WinnerUserID:     a.WinnerUserID,
		WinnerUserName:   a.WinnerUserName,
		ClosedAt:         formatTimePtr(a.ClosedAt),
	}
	if leader, ok := a.LeadingBid(); ok {
		resp.LeaderUserID = leader.UserID
		resp.LeaderUserName = leader.UserName
	}
	return resp
}

// ToAuctionResponses never returns nil
func ToAuctionResponses(auctions []model.Auction) []AuctionResponse {
	out := make([]AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		out = append(out, ToAuctionResponse(a))
	}
	return out
}
