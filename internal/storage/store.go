package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "promobot/pkg/logx"
)

// Store is the persistence API used by the dispatch core, the rate limiter
// and the broadcast job.
type Store interface {
	// GetUser returns the record for userID, or (nil, nil) if no record exists.
	GetUser(ctx context.Context, userID int64) (*UserRecord, error)

	// UpsertUser creates or fully overwrites the identified record.
	// The write is atomic; concurrent readers never observe partial fields.
	UpsertUser(ctx context.Context, rec UserRecord) error

	// IncrementWindow atomically bumps the user's window counter and stamps
	// last-seen. It returns the post-increment count together with the
	// last-seen value prior to the update.
	IncrementWindow(ctx context.Context, userID int64, now time.Time) (count int, prevSeen time.Time, err error)

	// ResetAllWindows zeroes every user's window counter in one bulk update.
	ResetAllWindows(ctx context.Context) error

	// ListUsersInStages returns the IDs of all users currently in any of the
	// given stages. The result is a fresh snapshot.
	ListUsersInStages(ctx context.Context, stages ...Stage) ([]int64, error)

	// AppendCampaign appends one immutable campaign row.
	AppendCampaign(ctx context.Context, rec CampaignRecord) error

	CountUsers(ctx context.Context) (int, error)
	CountUsersByStage(ctx context.Context, stage Stage) (int, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
