// Package action implements the Action Pipeline (C7): rate
// limiting, context loading, monster guard checks, LLM streaming, and
// applying the resulting updates envelope.
package action

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/worldforge/server/pkg/config"
	"github.com/worldforge/server/pkg/durable"
)

// RateLimitInfo describes the sliding window's current state, returned to
// the caller on denial.
type RateLimitInfo struct {
	ActionCount     int           `json:"action_count"`
	Limit           int           `json:"limit"`
	IntervalMinutes int           `json:"interval_minutes"`
	TimeUntilReset  time.Duration `json:"time_until_reset"`
}

// Limiter implements the sliding-window rate limiter. The durable
// ActionRecord log is authoritative; no
// in-memory cache is kept, trading a query per action for always-correct
// counts across process restarts and replicas.
type Limiter struct {
	db  *durable.Client
	log *slog.Logger

	mu  sync.RWMutex
	cfg config.RateLimitConfig
}

// NewLimiter builds a Limiter.
func NewLimiter(db *durable.Client, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{db: db, cfg: cfg, log: slog.With("component", "action.limiter")}
}

// Config returns the limiter's current settings.
func (l *Limiter) Config() config.RateLimitConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// SetConfig updates the limiter's settings at runtime (POST
// /rate-limit/config). The durable log stays authoritative, so a wider
// interval or limit takes effect on the very next Check with no backfill
// needed.
func (l *Limiter) SetConfig(cfg config.RateLimitConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = cfg
}

// Check scans playerID's recent ActionRecord history. On a store error it
// fails open: logs a warning and allows the action.
func (l *Limiter) Check(ctx context.Context, playerID string) (allowed bool, info RateLimitInfo, err error) {
	cfg := l.Config()
	now := time.Now()
	since := now.Add(-cfg.Interval)

	records, err := l.db.ListActionRecordsSince(ctx, playerID, since)
	if err != nil {
		l.log.Warn("rate limiter store error, failing open", "player_id", playerID, "error", err)
		return true, RateLimitInfo{Limit: cfg.Limit, IntervalMinutes: int(cfg.Interval.Minutes())}, nil
	}

	info = RateLimitInfo{
		ActionCount:     len(records),
		Limit:           cfg.Limit,
		IntervalMinutes: int(cfg.Interval.Minutes()),
	}

	if len(records) < cfg.Limit {
		return true, info, nil
	}

	// records is ordered newest-first; the oldest entry in the window is
	// the last element.
	oldest := records[len(records)-1].Timestamp
	reset := oldest.Add(cfg.Interval).Sub(now)
	if reset < 0 {
		reset = 0
	}
	info.TimeUntilReset = reset
	return false, info, nil
}
