package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/config"
	model "auction-engine/internal/models"
	"auction-engine/internal/notify"
	"auction-engine/internal/repository"
	"auction-engine/internal/server"
	"auction-engine/internal/sweeper"
	"auction-engine/utils"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	utils.SetLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		utils.Fatal("invalid configuration", map[string]any{"error": err.Error()})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		utils.Fatal("auction server exited with error", map[string]any{"error": err.Error()})
	}
	utils.Info("auction server stopped", nil)
}

func run(ctx context.Context, cfg *config.Config) error {
	var (
		rdb     *redis.Client
		closers []func()
		checks  []server.HealthCheck
	)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	// Redis is shared by the redis store backend and the redis event sender
	redisClient := func() (*redis.Client, error) {
		if rdb != nil {
			return rdb, nil
		}
		c, err := repository.OpenRedis(ctx, repository.RedisConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return nil, err
		}
		rdb = c
		closers = append(closers, func() { _ = c.Close() })
		checks = append(checks, server.HealthCheck{Name: "redis", Check: func(ctx context.Context) error { return c.Ping(ctx).Err() }})
		return rdb, nil
	}

	var store repository.AuctionStore
	switch strings.ToLower(cfg.Store.Backend) {
	case "redis":
		c, err := redisClient()
		if err != nil {
			return err
		}
		store = repository.NewRedisRepo(c)
	case "postgres":
		pool, err := repository.OpenPostgres(ctx, repository.PostgresConfig{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return err
		}
		closers = append(closers, pool.Close)
		checks = append(checks, server.HealthCheck{Name: "postgres", Check: pool.Ping})

		pg := repository.NewPostgresRepo(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		store = pg
	default:
		store = repository.NewMemoryRepo()
	}

	var senders []notify.Sender
	for _, name := range cfg.Notify.Senders {
		switch strings.ToLower(name) {
		case "log":
			senders = append(senders, notify.LogSender{})
		case "rabbitmq":
			rs := notify.NewRabbitSender(cfg.Notify.RabbitURL, cfg.Notify.RabbitQueue)
			closers = append(closers, func() { _ = rs.Close() })
			senders = append(senders, rs)
		case "redis":
			c, err := redisClient()
			if err != nil {
				return err
			}
			senders = append(senders, notify.NewRedisSender(c, cfg.Notify.RedisChannel))
		}
	}

	biddingSvc := bidding.NewBiddingService(
		store,
		notify.NewDispatcher(senders, cfg.Notify.Events),
		bidding.WithMaxAttempts(cfg.Engine.MaxBidAttempts),
		bidding.WithNotifyTimeout(cfg.Engine.NotifyTimeout.Duration),
		bidding.WithSelfOutbid(cfg.Engine.AllowSelfOutbid),
		bidding.WithEvalConcurrency(cfg.Sweeper.Concurrency),
	)
	defer biddingSvc.Wait()

	if cfg.SeedDemo {
		prepopulateAuctions(ctx, biddingSvc)
	}

	if cfg.Sweeper.Enabled {
		sw, err := sweeper.New(biddingSvc, cfg.Sweeper.Spec, 30*time.Second)
		if err != nil {
			return err
		}
		sw.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sw.Stop(stopCtx); err != nil {
				utils.Warn("sweeper did not stop in time", map[string]any{"error": err.Error()})
			}
		}()
	}

	router := server.SetupRouter(biddingSvc, checks...)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		utils.Info("Starting auction server", map[string]any{
			"addr":    srv.Addr,
			"store":   cfg.Store.Backend,
			"senders": cfg.Notify.Senders,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		utils.Info("HTTP server shutting down", nil)
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// prepopulateAuctions adds demo auctions: one open now, one opening soon, one about to close
func prepopulateAuctions(ctx context.Context, svc *bidding.BiddingService) {
	now := time.Now().UTC()
	auctions := []model.Auction{
		{ID: "demo-watch", Name: "Vintage watch", Description: "Swiss, 1962", StartPrice: 500, MinBidStep: 50, OpenTime: now, TimeoutMinutes: 30},
		{ID: "demo-painting", Name: "Oil painting", Description: "Harbour at dusk", StartPrice: 1200, MinBidStep: 100, OpenTime: now.Add(10 * time.Minute), TimeoutMinutes: 60},
		{ID: "demo-lamp", Name: "Desk lamp", Description: "Brass, working", StartPrice: 40, MinBidStep: 5, OpenTime: now.Add(-4 * time.Minute), TimeoutMinutes: 5},
	}

	for _, a := range auctions {
		if _, err := svc.CreateAuction(ctx, a); err != nil && !errors.Is(err, biddingerrors.ErrAuctionExists) {
			utils.Warn("failed to seed demo auction", map[string]any{"auction_id": a.ID, "error": err.Error()})
		}
	}
}
