package config

// Config is the full bot configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Limits    LimitsConfig    `json:"limits"`
	Broadcast BroadcastConfig `json:"broadcast"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// AdminID is the single user allowed to request /stats.
	AdminID int64 `json:"admin_id"`
	// ContactHandle is interpolated into replies that point users at a
	// human (e.g. "@acme_sales").
	ContactHandle string `json:"contact_handle"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./marketing.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// LimitsConfig tunes the per-user fixed-window rate limiter.
//
// Defaults (when fields are omitted/zero):
//   - ceiling: 8
//   - window: "60s"
//   - reset_every: "60s"
type LimitsConfig struct {
	Ceiling    int    `json:"ceiling,omitempty"`
	Window     string `json:"window,omitempty"`
	ResetEvery string `json:"reset_every,omitempty"`
}

// BroadcastConfig controls the daily campaign job.
//
// Defaults:
//   - name: "daily_promo"
//   - daily_at: "12:00"
//   - rate_per_sec: 20
type BroadcastConfig struct {
	Name       string `json:"name,omitempty"`
	DailyAt    string `json:"daily_at,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}
