// Package store provides PostgreSQL persistence for caller profiles and
// the usage history log.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Subscription tiers. The daily limit for each tier lives in config, not
// here; adding a tier means adding a limit entry, not new code.
const (
	TierFree   = "free"
	TierPro    = "pro"
	TierMaster = "master"
)

// Profile is a caller's durable subscription state.
type Profile struct {
	ID        string
	Tier      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UsageEntry records one delivered answer.
type UsageEntry struct {
	ID        uuid.UUID
	CallerID  string
	Mode      string
	Model     string
	ElapsedMs int64
}

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// EnsureSchema creates the tables this service needs if they are missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS profiles (
			id         TEXT PRIMARY KEY,
			tier       TEXT NOT NULL DEFAULT 'free',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS usage_log (
			id         UUID PRIMARY KEY,
			caller_id  TEXT NOT NULL,
			mode       TEXT NOT NULL,
			model      TEXT NOT NULL,
			elapsed_ms BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS usage_log_caller_idx ON usage_log (caller_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// GetOrCreate fetches a profile, creating it with the free tier on first
// sight of the caller id.
func (db *DB) GetOrCreate(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	err := db.pool.QueryRow(ctx,
		`INSERT INTO profiles (id) VALUES ($1)
		 ON CONFLICT (id) DO UPDATE SET updated_at = NOW()
		 RETURNING id, tier, created_at, updated_at`,
		id,
	).Scan(&p.ID, &p.Tier, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create profile %s: %w", id, err)
	}
	return &p, nil
}

// SetTier updates a caller's subscription tier, creating the profile if
// needed. Idempotent, so webhook replays are harmless.
func (db *DB) SetTier(ctx context.Context, id, tier string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO profiles (id, tier) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET tier = $2, updated_at = NOW()`,
		id, tier,
	)
	if err != nil {
		return fmt.Errorf("failed to set tier for %s: %w", id, err)
	}
	return nil
}

// LogUsage appends one usage record.
func (db *DB) LogUsage(ctx context.Context, entry UsageEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO usage_log (id, caller_id, mode, model, elapsed_ms)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.CallerID, entry.Mode, entry.Model, entry.ElapsedMs,
	)
	if err != nil {
		return fmt.Errorf("failed to log usage: %w", err)
	}
	return nil
}
