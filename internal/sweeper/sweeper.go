// Package sweeper periodically evaluates the lifecycle of every auction so
// deadlines are enforced even when nobody reads or bids on an auction.
package sweeper

import (
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

type lifecycleSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Sweeper runs lifecycleSweeper.Sweep on a cron schedule. A tick that
// starts while the previous one is still running is skipped.
type Sweeper struct {
	service lifecycleSweeper
	cron    *cron.Cron
	timeout time.Duration
}

// New schedules service.Sweep according to spec (e.g. "@every 10s").
// Each run is bounded by timeout when it is positive.
func New(service lifecycleSweeper, spec string, timeout time.Duration) (*Sweeper, error) {
	if service == nil {
		return nil, errors.New("sweeper: service is nil")
	}

	s := &Sweeper{
		service: service,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: timeout,
	}
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("sweeper: schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce performs a single sweep and logs the outcome.
func (s *Sweeper) RunOnce() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	changed, err := s.service.Sweep(ctx)
	if err != nil {
		utils.Error("Lifecycle sweep failed", map[string]any{"error": err.Error()})
		return
	}
	if changed > 0 {
		utils.Info("Lifecycle sweep committed transitions", map[string]any{
			"transitions": changed,
			"duration":    time.Since(start).String(),
		})
	}
}

// Start begins scheduling in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
