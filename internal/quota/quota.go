// Package quota enforces per-caller daily request limits by subscription
// tier. Durable tier state lives in the profile store; the daily counter
// lives in a Redis hash keyed by caller id.
package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/victor/decision-advisor/internal/store"
)

// GuestID is the sentinel caller id for anonymous requests. Guests are
// never tracked: no profile is created and no counter is read or written.
const GuestID = "guest"

// counterTTL keeps stale usage hashes from accumulating. Two days covers
// the rollover read on the morning after last use.
const counterTTL = 48 * time.Hour

// ProfileStore is the subset of the store the ledger needs.
type ProfileStore interface {
	GetOrCreate(ctx context.Context, id string) (*store.Profile, error)
}

// Profile is the merged quota view of a caller: durable tier plus the
// current day's usage.
type Profile struct {
	ID           string
	Tier         string
	DailyCount   int
	LastUsedDate string // YYYY-MM-DD
}

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed   bool
	Tracked   bool // false for guests and store outages
	Tier      string
	Used      int
	Limit     int
	Remaining int
}

// Ledger reads and updates per-caller daily usage.
type Ledger struct {
	rdb      *redis.Client
	profiles ProfileStore
	limits   map[string]int
	logger   zerolog.Logger
	now      func() time.Time
}

// NewLedger creates a quota ledger. limits maps tier name to daily limit.
func NewLedger(rdb *redis.Client, profiles ProfileStore, limits map[string]int, logger zerolog.Logger) *Ledger {
	return &Ledger{
		rdb:      rdb,
		profiles: profiles,
		limits:   limits,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the ledger's clock. Tests use this to exercise the
// date rollover.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// GetProfile returns the caller's tier and today's usage. If the stored
// counter belongs to a previous day it is reset to zero in Redis before
// being returned, so repeated reads on a new day all see zero.
func (l *Ledger) GetProfile(ctx context.Context, id string) (*Profile, error) {
	today := l.today()
	if id == "" || id == GuestID {
		return &Profile{ID: GuestID, Tier: store.TierFree, DailyCount: 0, LastUsedDate: today}, nil
	}

	durable, err := l.profiles.GetOrCreate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("profile lookup failed for %s: %w", id, err)
	}

	fields, err := l.rdb.HGetAll(ctx, usageKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("usage read failed for %s: %w", id, err)
	}

	count := 0
	if fields["last_used_date"] == today {
		count, _ = strconv.Atoi(fields["daily_count"])
	} else {
		// Persisted reset on date rollover; callers depend on the
		// stored counter, not an in-memory view.
		_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, usageKey(id), "daily_count", 0, "last_used_date", today)
			pipe.Expire(ctx, usageKey(id), counterTTL)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("usage reset failed for %s: %w", id, err)
		}
	}

	return &Profile{
		ID:           id,
		Tier:         durable.Tier,
		DailyCount:   count,
		LastUsedDate: today,
	}, nil
}

// Check evaluates the caller's usage against their tier limit without
// consuming anything. Storage failures are permissive: the caller is
// treated as untracked rather than blocked on an outage.
func (l *Ledger) Check(ctx context.Context, id string) Decision {
	if id == "" || id == GuestID {
		return Decision{Allowed: true, Tracked: false, Tier: store.TierFree}
	}

	p, err := l.GetProfile(ctx, id)
	if err != nil {
		l.logger.Warn().Err(err).Str("caller", id).Msg("quota check degraded to untracked")
		return Decision{Allowed: true, Tracked: false}
	}

	limit := l.limitFor(p.Tier)
	remaining := limit - p.DailyCount
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   p.DailyCount < limit,
		Tracked:   true,
		Tier:      p.Tier,
		Used:      p.DailyCount,
		Limit:     limit,
		Remaining: remaining,
	}
}

// Commit consumes one unit of quota. Called only after a successful
// provider result; a failed call never bills the caller. The increment is
// a server-side HINCRBY, so concurrent commits cannot lose updates.
func (l *Ledger) Commit(ctx context.Context, id string) error {
	if id == "" || id == GuestID {
		return nil
	}
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, usageKey(id), "daily_count", 1)
		pipe.HSet(ctx, usageKey(id), "last_used_date", l.today())
		pipe.Expire(ctx, usageKey(id), counterTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("usage commit failed for %s: %w", id, err)
	}
	return nil
}

func (l *Ledger) limitFor(tier string) int {
	if limit, ok := l.limits[tier]; ok {
		return limit
	}
	return l.limits[store.TierFree]
}

func (l *Ledger) today() string {
	return l.now().Format("2006-01-02")
}

func usageKey(id string) string {
	return "usage:" + id
}
