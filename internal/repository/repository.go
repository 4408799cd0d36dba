package repository

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"context"
	"fmt"
	"sort"
	"sync"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

// AuctionStore is the persistence boundary of the bidding engine.
//
// Every auction carries a Revision. CompareAndSwap replaces the stored record
// only when its revision still equals expectedRevision, and on success the
// stored revision becomes expectedRevision+1. A stale revision yields
// biddingerrors.ErrVersionMismatch. No operation spans more than one auction.
type AuctionStore interface {
	Create(ctx context.Context, auction model.Auction) error
	Get(ctx context.Context, auctionID string) (model.Auction, error)
	List(ctx context.Context) ([]model.Auction, error)
	CompareAndSwap(ctx context.Context, auction model.Auction, expectedRevision int64) error
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionStore
type MemoryRepo struct {
	mu       sync.RWMutex
	auctions map[string]model.Auction // key: auctionID -> value: latest committed record
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions: make(map[string]model.Auction),
	}
}

// Create stores a new auction at revision 0
func (r *MemoryRepo) Create(_ context.Context, auction model.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[auction.ID]; ok {
		return fmt.Errorf("create auction %s: %w", auction.ID, biddingerrors.ErrAuctionExists)
	}

	stored := auction.Clone()
	stored.Revision = 0
	r.auctions[auction.ID] = stored
	return nil
}

// Get returns a private copy of the auction
func (r *MemoryRepo) Get(_ context.Context, auctionID string) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return auction.Clone(), nil
}

// List returns copies of all auctions ordered by open time, then id
func (r *MemoryRepo) List(_ context.Context) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auctions := make([]model.Auction, 0, len(r.auctions))
	for _, a := range r.auctions {
		auctions = append(auctions, a.Clone())
	}
	SortAuctions(auctions)
	return auctions, nil
}

// CompareAndSwap replaces the auction if nobody committed since expectedRevision
func (r *MemoryRepo) CompareAndSwap(_ context.Context, auction model.Auction, expectedRevision int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.auctions[auction.ID]
	if !ok {
		return fmt.Errorf("update auction %s: %w", auction.ID, biddingerrors.ErrAuctionNotFound)
	}
	if current.Revision != expectedRevision {
		return fmt.Errorf("update auction %s at revision %d: %w", auction.ID, expectedRevision, biddingerrors.ErrVersionMismatch)
	}

	next := auction.Clone()
	next.Revision = expectedRevision + 1
	r.auctions[auction.ID] = next
	return nil
}

// SortAuctions orders auctions by open time, breaking ties by id
func SortAuctions(auctions []model.Auction) {
	sort.Slice(auctions, func(i, j int) bool {
		if !auctions[i].OpenTime.Equal(auctions[j].OpenTime) {
			return auctions[i].OpenTime.Before(auctions[j].OpenTime)
		}
		return auctions[i].ID < auctions[j].ID
	})
}
