package repository

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const auctionsSchema = `
CREATE TABLE IF NOT EXISTS auctions (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	open_time  TIMESTAMPTZ NOT NULL,
	revision   BIGINT NOT NULL DEFAULT 0,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS auctions_status_idx ON auctions (status);`

// PostgresConfig holds connection parameters for the PostgreSQL pool
type PostgresConfig struct {
	DSN      string
	MaxConns int
	MinConns int
}

// OpenPostgres creates a pgx connection pool and pings it
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// PostgresRepo implements AuctionStore on a single auctions table.
// The full record lives in doc; revision is the column the conditional UPDATE keys on.
type PostgresRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresRepo creates a PostgresRepo backed by the given pool
func NewPostgresRepo(pool *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{pool: pool}
}

// EnsureSchema creates the auctions table when missing
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, auctionsSchema); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

// Create inserts a new auction at revision 0
func (r *PostgresRepo) Create(ctx context.Context, auction model.Auction) error {
	stored := auction.Clone()
	stored.Revision = 0
	doc, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("postgres: marshal auction %s: %w", auction.ID, err)
	}

	const query = `
		INSERT INTO auctions (id, status, open_time, revision, doc)
		VALUES ($1, $2, $3, 0, $4)
		ON CONFLICT (id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query, stored.ID, string(stored.Status), stored.OpenTime, string(doc))
	if err != nil {
		return pgStorageErr("create auction "+auction.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: create auction %s: %w", auction.ID, biddingerrors.ErrAuctionExists)
	}
	return nil
}

// Get loads a single auction
func (r *PostgresRepo) Get(ctx context.Context, auctionID string) (model.Auction, error) {
	const query = `SELECT revision, doc FROM auctions WHERE id = $1`

	a, err := scanAuction(r.pool.QueryRow(ctx, query, auctionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Auction{}, fmt.Errorf("postgres: get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, pgStorageErr("get auction "+auctionID, err)
	}
	return a, nil
}

// List loads all auctions ordered by open time, then id
func (r *PostgresRepo) List(ctx context.Context) ([]model.Auction, error) {
	const query = `SELECT revision, doc FROM auctions ORDER BY open_time, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, pgStorageErr("list auctions", err)
	}
	defer rows.Close()

	auctions := []model.Auction{}
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, pgStorageErr("scan auction", err)
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, pgStorageErr("list auctions", err)
	}
	return auctions, nil
}

// CompareAndSwap updates the row only when its revision still equals expectedRevision
func (r *PostgresRepo) CompareAndSwap(ctx context.Context, auction model.Auction, expectedRevision int64) error {
	next := auction.Clone()
	next.Revision = expectedRevision + 1
	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("postgres: marshal auction %s: %w", auction.ID, err)
	}

	const query = `
		UPDATE auctions
		SET doc = $2, status = $3, revision = revision + 1, updated_at = NOW()
		WHERE id = $1 AND revision = $4`

	tag, err := r.pool.Exec(ctx, query, next.ID, string(doc), string(next.Status), expectedRevision)
	if err != nil {
		return pgStorageErr("update auction "+auction.ID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM auctions WHERE id = $1)`, auction.ID).Scan(&exists); err != nil {
		return pgStorageErr("check auction "+auction.ID, err)
	}
	if !exists {
		return fmt.Errorf("postgres: update auction %s: %w", auction.ID, biddingerrors.ErrAuctionNotFound)
	}
	return fmt.Errorf("postgres: update auction %s at revision %d: %w", auction.ID, expectedRevision, biddingerrors.ErrVersionMismatch)
}

func scanAuction(row pgx.Row) (model.Auction, error) {
	var (
		revision int64
		doc      []byte
	)
	if err := row.Scan(&revision, &doc); err != nil {
		return model.Auction{}, err
	}

	var a model.Auction
	if err := json.Unmarshal(doc, &a); err != nil {
		return model.Auction{}, fmt.Errorf("decode auction doc: %w", err)
	}
	a.Revision = revision
	return a, nil
}

func pgStorageErr(op string, err error) error {
	return fmt.Errorf("postgres: %s: %w: %w", op, biddingerrors.ErrStorageUnavailable, err)
}

var _ AuctionStore = (*PostgresRepo)(nil)
