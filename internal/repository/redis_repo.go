package repository

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const auctionIndexKey = "auctions:index"

func auctionKey(id string) string { return "auction:" + id }

// createLua writes the document and indexes it in one step, so an auction is
// never stored without being listed.
const createLua = `
if redis.call('SETNX', KEYS[1], ARGV[1]) == 1 then
    redis.call('SADD', KEYS[2], ARGV[2])
    return 1
end
return 0
`

var createScript = redis.NewScript(createLua)

// RedisConfig holds connection parameters for the Redis client
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// OpenRedis creates a Redis client and pings it to verify connectivity
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

// RedisRepo implements AuctionStore with one JSON document per auction.
//
// Key schema:
//
//	auction:{id}    - JSON encoded model.Auction, revision included
//	auctions:index  - set of all auction ids
//
// Create runs as a Lua script. CompareAndSwap uses WATCH/MULTI so a
// concurrent writer aborts the transaction.
type RedisRepo struct {
	rdb *redis.Client
}

// NewRedisRepo creates a RedisRepo backed by the given client
func NewRedisRepo(rdb *redis.Client) *RedisRepo {
	return &RedisRepo{rdb: rdb}
}

// Create stores a new auction at revision 0
func (r *RedisRepo) Create(ctx context.Context, auction model.Auction) error {
	stored := auction.Clone()
	stored.Revision = 0
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("redis: marshal auction %s: %w", auction.ID, err)
	}

	created, err := createScript.Run(ctx, r.rdb, []string{auctionKey(auction.ID), auctionIndexKey}, data, auction.ID).Int()
	if err != nil {
		return storageErr("create auction "+auction.ID, err)
	}
	if created == 0 {
		return fmt.Errorf("redis: create auction %s: %w", auction.ID, biddingerrors.ErrAuctionExists)
	}
	return nil
}

// Get loads a single auction
func (r *RedisRepo) Get(ctx context.Context, auctionID string) (model.Auction, error) {
	raw, err := r.rdb.Get(ctx, auctionKey(auctionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Auction{}, fmt.Errorf("redis: get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, storageErr("get auction "+auctionID, err)
	}
	return decodeAuction(auctionID, raw)
}

// List loads every indexed auction. Ids whose document has vanished are skipped.
func (r *RedisRepo) List(ctx context.Context) ([]model.Auction, error) {
	ids, err := r.rdb.SMembers(ctx, auctionIndexKey).Result()
	if err != nil {
		return nil, storageErr("list auction ids", err)
	}
	if len(ids) == 0 {
		return []model.Auction{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = auctionKey(id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storageErr("load auctions", err)
	}

	auctions := make([]model.Auction, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		a, err := decodeAuction(ids[i], []byte(s))
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, a)
	}
	SortAuctions(auctions)
	return auctions, nil
}

// CompareAndSwap replaces the document if its revision still equals expectedRevision
func (r *RedisRepo) CompareAndSwap(ctx context.Context, auction model.Auction, expectedRevision int64) error {
	key := auctionKey(auction.ID)

	next := auction.Clone()
	next.Revision = expectedRevision + 1
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("redis: marshal auction %s: %w", auction.ID, err)
	}

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis: update auction %s: %w", auction.ID, biddingerrors.ErrAuctionNotFound)
		}
		if err != nil {
			return storageErr("read auction "+auction.ID, err)
		}
		current, err := decodeAuction(auction.ID, raw)
		if err != nil {
			return err
		}
		if current.Revision != expectedRevision {
			return fmt.Errorf("redis: update auction %s at revision %d: %w", auction.ID, expectedRevision, biddingerrors.ErrVersionMismatch)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	err = r.rdb.Watch(ctx, txf, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("redis: update auction %s at revision %d: %w", auction.ID, expectedRevision, biddingerrors.ErrVersionMismatch)
	case errors.Is(err, biddingerrors.ErrAuctionNotFound),
		errors.Is(err, biddingerrors.ErrVersionMismatch),
		errors.Is(err, biddingerrors.ErrStorageUnavailable):
		return err
	default:
		return storageErr("update auction "+auction.ID, err)
	}
}

func decodeAuction(id string, raw []byte) (model.Auction, error) {
	var a model.Auction
	if err := json.Unmarshal(raw, &a); err != nil {
		return model.Auction{}, fmt.Errorf("redis: decode auction %s: %w: %w", id, biddingerrors.ErrStorageUnavailable, err)
	}
	return a, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("redis: %s: %w: %w", op, biddingerrors.ErrStorageUnavailable, err)
}

// Compile-time interface checks.
var (
	_ AuctionStore = (*RedisRepo)(nil)
	_ AuctionStore = (*MemoryRepo)(nil)
)
