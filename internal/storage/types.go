package storage

import (
	"errors"
	"time"
)

// ErrUnavailable wraps any backend I/O failure. Callers treat it as
// non-fatal per call (log + generic apology), except during startup.
var ErrUnavailable = errors.New("storage unavailable")

// Stage is the marketing-engagement status of a user record.
//
// Transitions are last-write-wins: whichever event fires last sets the
// stage, with no ordering validation. Reporting and broadcast eligibility
// depend on whichever stage was most recently set.
type Stage string

const (
	StageNew       Stage = "new"
	StageReturning Stage = "returning"
	StageEngaged   Stage = "engaged"
	StageActive    Stage = "active"
)

func (s Stage) Valid() bool {
	switch s {
	case StageNew, StageReturning, StageEngaged, StageActive:
		return true
	}
	return false
}

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "memory": process-local map backend (tests, ephemeral runs)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// UserRecord is one user's engagement state.
//
// UserID is immutable once created; records are never deleted.
type UserRecord struct {
	UserID           int64
	DisplayName      string
	FirstSeenAt      time.Time
	LastSeenAt       time.Time
	InteractionCount int64
	WindowCount      int
	Stage            Stage
}

// CampaignRecord is one broadcast batch, append-only once written.
// RecipientCount is the number of attempted recipients, not confirmed
// deliveries.
type CampaignRecord struct {
	ID             int64
	Name           string
	MessageText    string
	RecipientCount int
	SentAt         time.Time
}
