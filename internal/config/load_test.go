package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  admin_id: 7000
  contact_handle: "@acme_sales"
  poll_timeout: "10s"
logging:
  level: info
  console: true
  file:
    enabled: false
    path: ""
storage:
  driver: sqlite
  path: ./marketing.db
  busy_timeout: "5s"
limits:
  ceiling: 8
  window: "60s"
  reset_every: "60s"
broadcast:
  name: daily_promo
  daily_at: "12:00"
  rate_per_sec: 20
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "bot.yaml", sampleYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.AdminID != 7000 {
		t.Fatalf("admin id = %d", cfg.Telegram.AdminID)
	}
	if cfg.Limits.Ceiling != 8 {
		t.Fatalf("ceiling = %d", cfg.Limits.Ceiling)
	}
	if cfg.Broadcast.DailyAt != "12:00" {
		t.Fatalf("daily at = %q", cfg.Broadcast.DailyAt)
	}

	if got := m.Get(); got != cfg {
		t.Fatal("Get must return the committed config")
	}

	w, err := ParseDurationOrDefault("limits.window", cfg.Limits.Window, time.Minute)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if w != time.Minute {
		t.Fatalf("window = %v", w)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "bot.yaml", sampleYAML+"\nbogus_section:\n  x: 1\n"))
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidateRequiredFields(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{name: "missing token", mut: func(c *Config) { c.Telegram.Token = " " }},
		{name: "missing admin", mut: func(c *Config) { c.Telegram.AdminID = 0 }},
		{name: "bad window", mut: func(c *Config) { c.Limits.Window = "fast" }},
		{name: "negative ceiling", mut: func(c *Config) { c.Limits.Ceiling = -1 }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{
				Telegram: TelegramConfig{Token: "123:abc", AdminID: 1},
			}
			tt.mut(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", "90s"); err != nil || d != 90*time.Second {
		t.Fatalf("got (%v, %v)", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: got (%v, %v)", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("negative duration must fail")
	}
	if _, err := ParseDurationField("x", "soon"); err == nil {
		t.Fatal("junk duration must fail")
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "bot.yaml", sampleYAML))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	next := &Config{Telegram: TelegramConfig{Token: "t", AdminID: 2}}
	m.publish(next)

	select {
	case got := <-ch:
		if got != next {
			t.Fatal("subscriber received wrong config")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive config")
	}
}
