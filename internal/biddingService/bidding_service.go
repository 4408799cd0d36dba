package bidding

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/notify"
	"auction-engine/internal/repository"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxAttempts      = 5
	DefaultNotifyTimeout    = 5 * time.Second
	DefaultEvalConcurrency  = 8
	defaultLifecycleRetries = 3
)

// BiddingService runs the auction engine. It keeps no auction state of its
// own: every read-validate-write cycle goes through the store's
// revision-guarded CompareAndSwap, for bids and lifecycle transitions alike.
type BiddingService struct {
	repo     repository.AuctionStore
	notifier notify.Notifier

	now             func() time.Time
	maxAttempts     int
	notifyTimeout   time.Duration
	evalConcurrency int
	policy          Policy

	inflight sync.WaitGroup
}

// Option customizes a BiddingService
type Option func(*BiddingService)

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *BiddingService) { s.now = now }
}

// WithMaxAttempts bounds the read-validate-write cycles a bid may take
func WithMaxAttempts(n int) Option {
	return func(s *BiddingService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithNotifyTimeout bounds each notification delivery
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *BiddingService) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// WithEvalConcurrency bounds how many auctions are evaluated at once by listings and sweeps
func WithEvalConcurrency(n int) Option {
	return func(s *BiddingService) {
		if n > 0 {
			s.evalConcurrency = n
		}
	}
}

// WithSelfOutbid sets whether the leading bidder may raise their own bid
func WithSelfOutbid(allow bool) Option {
	return func(s *BiddingService) { s.policy.AllowSelfOutbid = allow }
}

// NewBiddingService creates a new BiddingService instance. notifier may be nil.
func NewBiddingService(repo repository.AuctionStore, notifier notify.Notifier, opts ...Option) *BiddingService {
	s := &BiddingService{
		repo:            repo,
		notifier:        notifier,
		now:             func() time.Time { return time.Now().UTC() },
		maxAttempts:     DefaultMaxAttempts,
		notifyTimeout:   DefaultNotifyTimeout,
		evalConcurrency: DefaultEvalConcurrency,
		policy:          Policy{AllowSelfOutbid: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAuction stores a new auction in the scheduled state
func (s *BiddingService) CreateAuction(ctx context.Context, auction models.Auction) (models.Auction, error) {
	if err := validateAuction(auction); err != nil {
		return models.Auction{}, err
	}

	if auction.ID == "" {
		auction.ID = utils.GenerateID()
	}
	auction.OpenTime = auction.OpenTime.UTC()
	auction.CurrentPrice = auction.StartPrice
	auction.Status = models.StatusScheduled
	auction.Bids = []models.Bid{}
	auction.LastBidTime = nil
	auction.ClosedAt = nil
	auction.WinnerUserID = ""
	auction.WinnerUserName = ""
	auction.Revision = 0

	if err := s.repo.Create(ctx, auction); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to create auction %s: %w", auction.ID, classify(err))
	}

	utils.Info("auction created", map[string]any{
		"auction_id": auction.ID,
		"open_time":  auction.OpenTime.Format(time.RFC3339),
	})
	return auction, nil
}

func validateAuction(a models.Auction) error {
	switch {
	case strings.TrimSpace(a.Name) == "":
		return fmt.Errorf("service: %w - empty name", biddingerrors.ErrInvalidAuction)
	case a.StartPrice < 0:
		return fmt.Errorf("service: %w - negative start price", biddingerrors.ErrInvalidAuction)
	case a.MinBidStep <= 0:
		return fmt.Errorf("service: %w - min bid step must be positive", biddingerrors.ErrInvalidAuction)
	case a.TimeoutMinutes <= 0:
		return fmt.Errorf("service: %w - timeout must be positive", biddingerrors.ErrInvalidAuction)
	case int64(a.TimeoutMinutes) > models.MaxTimeoutMinutes:
		return fmt.Errorf("service: %w - timeout exceeds %d minutes", biddingerrors.ErrInvalidAuction, models.MaxTimeoutMinutes)
	case a.OpenTime.IsZero():
		return fmt.Errorf("service: %w - missing open time", biddingerrors.ErrInvalidAuction)
	}
	return nil
}

// PlaceBid validates and commits a bid.
//
// Each attempt reads the auction, applies any due lifecycle transition,
// validates the bid against that snapshot and commits with CompareAndSwap
// keyed on the revision it read. Losing the race restarts the cycle from a
// fresh read; after maxAttempts lost races the caller gets ErrConflict.
func (s *BiddingService) PlaceBid(ctx context.Context, auctionID, userID, userName string, amount int64) (models.Auction, error) {
	if auctionID == "" || userID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - missing auctionID or userID", biddingerrors.ErrInvalidBid)
	}
	if amount <= 0 {
		return models.Auction{}, fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}
	proposal := Proposal{UserID: userID, UserName: userName, Amount: amount}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return models.Auction{}, fmt.Errorf("service: place bid on auction %s: %w", auctionID, err)
		}

		current, err := s.repo.Get(ctx, auctionID)
		if err != nil {
			return models.Auction{}, fmt.Errorf("service: failed to read auction %s: %w", auctionID, classify(err))
		}

		now := s.now()
		evaluated, tr := Advance(current, now)

		decision, err := Validate(evaluated, proposal, now, s.policy)
		if err != nil {
			if tr.Changed() {
				s.commitTransition(ctx, current, evaluated, tr, now)
			}
			return models.Auction{}, fmt.Errorf("service: bid rejected on auction %s: %w", auctionID, err)
		}

		next := evaluated.Clone()
		next.Bids = append(next.Bids, models.Bid{
			BidID:     utils.GenerateID(),
			UserID:    userID,
			UserName:  userName,
			Amount:    decision.NewPrice,
			Timestamp: now,
		})
		next.CurrentPrice = decision.NewPrice
		next.LastBidTime = &now

		err = s.repo.CompareAndSwap(ctx, next, current.Revision)
		if errors.Is(err, biddingerrors.ErrVersionMismatch) {
			utils.Debug("service: lost bid race, retrying", map[string]any{
				"auction_id": auctionID,
				"user_id":    userID,
				"attempt":    attempt,
			})
			continue
		}
		if err != nil {
			return models.Auction{}, fmt.Errorf("service: failed to commit bid on auction %s: %w", auctionID, classify(err))
		}

		next.Revision = current.Revision + 1
		s.emit(next, models.EventNewLeadingBid, now)
		return next, nil
	}

	return models.Auction{}, fmt.Errorf("service: auction %s after %d attempts: %w", auctionID, s.maxAttempts, biddingerrors.ErrConflict)
}

// GetAuction returns the auction with any due lifecycle transition applied
func (s *BiddingService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	current, err := s.repo.Get(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, classify(err))
	}

	view, _ := s.evaluate(ctx, current)
	return view, nil
}

// ListAuctions returns every auction, each lifecycle-evaluated, optionally
// keeping only those whose evaluated status equals status.
func (s *BiddingService) ListAuctions(ctx context.Context, status models.Status) ([]models.Auction, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("service: %w - %q", biddingerrors.ErrInvalidStatus, status)
	}

	views, _, err := s.evaluateAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions: %w", err)
	}

	if status == "" {
		return views, nil
	}
	filtered := make([]models.Auction, 0, len(views))
	for _, a := range views {
		if a.Status == status {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

// Sweep evaluates every auction and reports how many transitions this call committed
func (s *BiddingService) Sweep(ctx context.Context) (int, error) {
	_, committed, err := s.evaluateAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("service: sweep failed: %w", err)
	}
	return committed, nil
}

// Wait blocks until in-flight notifications have been delivered or dropped
func (s *BiddingService) Wait() {
	s.inflight.Wait()
}

func (s *BiddingService) evaluateAll(ctx context.Context) ([]models.Auction, int, error) {
	auctions, err := s.repo.List(ctx)
	if err != nil {
		return nil, 0, classify(err)
	}

	views := make([]models.Auction, len(auctions))
	var committed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.evalConcurrency)
	for i, a := range auctions {
		g.Go(func() error {
			view, ok := s.evaluate(gctx, a)
			views[i] = view
			if ok {
				committed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return views, int(committed.Load()), nil
}

// evaluate applies due transitions to current and tries to commit them.
// Losing the race re-reads and re-evaluates. Storage failures are logged and
// the computed view is returned, since any later reader retries the write.
// The bool reports whether this call committed a transition.
func (s *BiddingService) evaluate(ctx context.Context, current models.Auction) (models.Auction, bool) {
	for attempt := 0; attempt < defaultLifecycleRetries; attempt++ {
		now := s.now()
		evaluated, tr := Advance(current, now)
		if !tr.Changed() {
			return current, false
		}

		committed, err := s.commitTransition(ctx, current, evaluated, tr, now)
		if committed {
			evaluated.Revision = current.Revision + 1
			return evaluated, true
		}
		if !errors.Is(err, biddingerrors.ErrVersionMismatch) {
			return evaluated, false
		}

		fresh, err := s.repo.Get(ctx, current.ID)
		if err != nil {
			utils.Warn("service: lifecycle re-read failed", map[string]any{"auction_id": current.ID, "error": err.Error()})
			return evaluated, false
		}
		current = fresh
	}

	view, _ := Advance(current, s.now())
	return view, false
}

// commitTransition writes a lifecycle change evaluated at now, guarded by
// before's revision. A lost race is an expected outcome and only logged at
// debug level.
func (s *BiddingService) commitTransition(ctx context.Context, before, after models.Auction, tr Transition, now time.Time) (bool, error) {
	err := s.repo.CompareAndSwap(ctx, after, before.Revision)
	switch {
	case err == nil:
		fields := map[string]any{
			"auction_id": after.ID,
			"from":       string(before.Status),
			"to":         string(after.Status),
		}
		if tr.Ended {
			fields["winner_user_id"] = after.WinnerUserID
			fields["final_price"] = after.CurrentPrice
		}
		utils.Info("auction status changed", fields)
		if tr.Ended {
			committed := after.Clone()
			committed.Revision = before.Revision + 1
			s.emit(committed, models.EventAuctionEnded, now)
		}
		return true, nil
	case errors.Is(err, biddingerrors.ErrVersionMismatch):
		utils.Debug("service: lifecycle transition already applied elsewhere", map[string]any{"auction_id": after.ID})
	default:
		utils.Warn("service: lifecycle transition not persisted", map[string]any{"auction_id": after.ID, "error": err.Error()})
	}
	return false, err
}

// emit hands the event to the notifier without blocking the caller.
// at is the instant the change was evaluated and committed.
func (s *BiddingService) emit(a models.Auction, event models.EventType, at time.Time) {
	if s.notifier == nil {
		return
	}
	payload := newPayload(a, event, at)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(ctx, a.ID, event, payload); err != nil {
			utils.Warn("service: notification failed", map[string]any{
				"auction_id": a.ID,
				"event":      string(event),
				"error":      err.Error(),
			})
		}
	}()
}

func newPayload(a models.Auction, event models.EventType, now time.Time) models.EventPayload {
	p := models.EventPayload{
		AuctionID:  a.ID,
		Event:      event,
		Price:      a.CurrentPrice,
		BidCount:   len(a.Bids),
		OccurredAt: now,
	}
	switch event {
	case models.EventNewLeadingBid:
		if leader, ok := a.LeadingBid(); ok {
			p.UserID, p.UserName = leader.UserID, leader.UserName
		}
		deadline := a.Deadline()
		p.Deadline = &deadline
	case models.EventAuctionEnded:
		p.UserID, p.UserName = a.WinnerUserID, a.WinnerUserName
		p.ClosedAt = a.ClosedAt
	}
	return p
}

// classify maps backend failures onto the engine's error taxonomy
func classify(err error) error {
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound),
		errors.Is(err, biddingerrors.ErrAuctionExists),
		errors.Is(err, biddingerrors.ErrVersionMismatch),
		errors.Is(err, biddingerrors.ErrStorageUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %w", biddingerrors.ErrStorageUnavailable, err)
}
