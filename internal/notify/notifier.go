// Package notify delivers engine events (new leading bid, auction ended) to
// outside collaborators. Delivery is best-effort: the engine logs failures and
// never lets them undo or block a committed change.
package notify

import (
	"auction-engine/internal/models"
	"auction-engine/utils"
	"context"
	"fmt"
	"strings"
)

//go:generate mockgen -source=notifier.go -destination=mock_notifier.go -package=notify

// Notifier is the hook the bidding engine calls after a committed change
type Notifier interface {
	Notify(ctx context.Context, auctionID string, event models.EventType, payload models.EventPayload) error
}

// Sender is one delivery channel (log, RabbitMQ, Redis pub/sub, ...)
type Sender interface {
	Send(ctx context.Context, payload models.EventPayload) error
	Name() string
}

// Dispatcher fans an event out to every Sender. When an event filter is
// configured only the listed event types are forwarded.
type Dispatcher struct {
	senders []Sender
	events  map[models.EventType]bool
}

// NewDispatcher creates a Dispatcher. An empty events list allows every event.
func NewDispatcher(senders []Sender, events []string) *Dispatcher {
	allowed := make(map[models.EventType]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[models.EventType(e)] = true
		}
	}
	return &Dispatcher{senders: senders, events: allowed}
}

// Notify delivers payload to all senders. One failing sender does not stop
// delivery to the rest; failures are combined into the returned error.
func (d *Dispatcher) Notify(ctx context.Context, auctionID string, event models.EventType, payload models.EventPayload) error {
	if len(d.events) > 0 && !d.events[event] {
		utils.Debug("notify: event filtered out", map[string]any{"auction_id": auctionID, "event": string(event)})
		return nil
	}

	var errs []string
	for _, s := range d.senders {
		if err := s.Send(ctx, payload); err != nil {
			utils.Warn("notify: sender failed", map[string]any{
				"sender":     s.Name(),
				"auction_id": auctionID,
				"event":      string(event),
				"error":      err.Error(),
			})
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// LogSender writes events to the structured log
type LogSender struct{}

func (LogSender) Send(_ context.Context, payload models.EventPayload) error {
	utils.Info("auction event", map[string]any{
		"auction_id": payload.AuctionID,
		"event":      string(payload.Event),
		"price":      payload.Price,
		"user_id":    payload.UserID,
		"bid_count":  payload.BidCount,
	})
	return nil
}

func (LogSender) Name() string { return "log" }

var (
	_ Notifier = (*Dispatcher)(nil)
	_ Sender   = LogSender{}
)
