package engage

import (
	"context"
	"sync"
	"time"

	"promobot/internal/storage"
	logx "promobot/pkg/logx"
)

const (
	// DefaultCeiling is how many events a user may trigger per window.
	DefaultCeiling = 8
	// DefaultWindow is the fixed rate-limit window.
	DefaultWindow = time.Minute
)

// LimiterConfig tunes the fixed-window limiter.
type LimiterConfig struct {
	Ceiling int
	Window  time.Duration
}

func (c LimiterConfig) withDefaults() LimiterConfig {
	if c.Ceiling <= 0 {
		c.Ceiling = DefaultCeiling
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	return c
}

// Limiter gates inbound events per user.
//
// It is a fixed-window limiter: counters are zeroed for ALL users at once by
// a periodic ResetAll tick, not per-user on window expiry. A user who hits
// the ceiling therefore stays denied until the next global tick (at most one
// window duration).
type Limiter struct {
	store storage.Store
	log   logx.Logger

	mu  sync.Mutex
	cfg LimiterConfig
}

func NewLimiter(store storage.Store, cfg LimiterConfig, log logx.Logger) *Limiter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Limiter{store: store, cfg: cfg.withDefaults(), log: log}
}

// Apply swaps the ceiling/window at runtime (config reload).
func (l *Limiter) Apply(cfg LimiterConfig) {
	l.mu.Lock()
	l.cfg = cfg.withDefaults()
	l.mu.Unlock()
}

func (l *Limiter) snapshot() LimiterConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// Admit decides whether one event from userID at time now may be processed.
//
// A brand-new user (no record) is always admitted without any write; the
// dispatcher creates the initial record. A denied call performs no write at
// all. An admitted call atomically bumps the window counter and last-seen.
func (l *Limiter) Admit(ctx context.Context, userID int64, now time.Time) (bool, error) {
	cfg := l.snapshot()

	rec, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return true, nil
	}

	if rec.WindowCount >= cfg.Ceiling && now.Sub(rec.LastSeenAt) < cfg.Window {
		l.log.Warn("rate limit exceeded",
			logx.Int64("user_id", userID),
			logx.Int("window_count", rec.WindowCount),
			logx.Int("ceiling", cfg.Ceiling),
		)
		return false, nil
	}

	if _, _, err := l.store.IncrementWindow(ctx, userID, now); err != nil {
		return false, err
	}
	return true, nil
}

// ResetAll zeroes every user's window counter in one bulk update. Wired to
// the periodic scheduler tick.
func (l *Limiter) ResetAll(ctx context.Context) error {
	if err := l.store.ResetAllWindows(ctx); err != nil {
		return err
	}
	l.log.Debug("rate limit windows reset")
	return nil
}
