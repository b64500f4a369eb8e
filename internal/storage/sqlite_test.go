package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	logx "promobot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(dir, "bot.db"), BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLiteUserRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	got, err := st.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got != nil {
		t.Fatalf("expected absent record, got %+v", got)
	}

	rec := UserRecord{
		UserID:           42,
		DisplayName:      "alice",
		FirstSeenAt:      now,
		LastSeenAt:       now,
		InteractionCount: 1,
		WindowCount:      1,
		Stage:            StageNew,
	}
	if err := st.UpsertUser(ctx, rec); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	got, err = st.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got == nil {
		t.Fatal("expected record")
	}
	if got.DisplayName != "alice" || got.Stage != StageNew || got.InteractionCount != 1 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.FirstSeenAt.Equal(now) || !got.LastSeenAt.Equal(now) {
		t.Fatalf("timestamps mangled: first=%v last=%v want %v", got.FirstSeenAt, got.LastSeenAt, now)
	}

	// Overwrite semantics: a second upsert replaces the mutable fields.
	rec.Stage = StageActive
	rec.InteractionCount = 5
	if err := st.UpsertUser(ctx, rec); err != nil {
		t.Fatalf("UpsertUser overwrite: %v", err)
	}
	got, err = st.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Stage != StageActive || got.InteractionCount != 5 {
		t.Fatalf("overwrite not applied: %+v", got)
	}
}

func TestSQLiteIncrementWindow(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Millisecond)

	rec := UserRecord{UserID: 7, FirstSeenAt: t0, LastSeenAt: t0, Stage: StageNew}
	if err := st.UpsertUser(ctx, rec); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	t1 := t0.Add(time.Second)
	count, prev, err := st.IncrementWindow(ctx, 7, t1)
	if err != nil {
		t.Fatalf("IncrementWindow: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	if !prev.Equal(t0) {
		t.Fatalf("prevSeen = %v, want %v", prev, t0)
	}

	t2 := t1.Add(time.Second)
	count, prev, err = st.IncrementWindow(ctx, 7, t2)
	if err != nil {
		t.Fatalf("IncrementWindow: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if !prev.Equal(t1) {
		t.Fatalf("prevSeen = %v, want %v", prev, t1)
	}

	if err := st.ResetAllWindows(ctx); err != nil {
		t.Fatalf("ResetAllWindows: %v", err)
	}
	got, err := st.GetUser(ctx, 7)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.WindowCount != 0 {
		t.Fatalf("window count after reset = %d, want 0", got.WindowCount)
	}
	// Reset touches only the counter.
	if !got.LastSeenAt.Equal(t2) {
		t.Fatalf("last seen after reset = %v, want %v", got.LastSeenAt, t2)
	}
}

func TestSQLiteListAndCounts(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, stage := range []Stage{StageNew, StageReturning, StageEngaged, StageActive} {
		rec := UserRecord{UserID: int64(i + 1), FirstSeenAt: now, LastSeenAt: now, Stage: stage}
		if err := st.UpsertUser(ctx, rec); err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
	}

	ids, err := st.ListUsersInStages(ctx, StageNew, StageReturning, StageActive)
	if err != nil {
		t.Fatalf("ListUsersInStages: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("got %d ids, want 3: %v", len(ids), ids)
	}
	for _, id := range ids {
		if id == 3 {
			t.Fatal("engaged user must not be listed")
		}
	}

	total, err := st.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if total != 4 {
		t.Fatalf("total = %d, want 4", total)
	}
	engaged, err := st.CountUsersByStage(ctx, StageEngaged)
	if err != nil {
		t.Fatalf("CountUsersByStage: %v", err)
	}
	if engaged != 1 {
		t.Fatalf("engaged = %d, want 1", engaged)
	}
}

func TestSQLiteCampaignAppend(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	err := st.AppendCampaign(ctx, CampaignRecord{Name: "daily_promo", MessageText: "hello", RecipientCount: 2})
	if err != nil {
		t.Fatalf("AppendCampaign: %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "bolt"}, logx.Nop())
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestErrUnavailableWrap(t *testing.T) {
	if wrap(nil) != nil {
		t.Fatal("wrap(nil) must be nil")
	}
	err := wrap(errors.New("disk on fire"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("wrapped error does not match ErrUnavailable: %v", err)
	}
}
