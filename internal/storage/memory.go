package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var errNoUser = errors.New("no user record")

// memoryStore is a process-local Store. It exists for tests and ephemeral
// runs; it honors the same per-call atomicity contract as the sqlite backend.
type memoryStore struct {
	mu        sync.RWMutex
	users     map[int64]UserRecord
	campaigns []CampaignRecord
	nextID    int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store {
	return &memoryStore{users: map[int64]UserRecord{}, nextID: 1}
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) GetUser(_ context.Context, userID int64) (*UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	cp := rec
	return &cp, nil
}

func (m *memoryStore) UpsertUser(_ context.Context, rec UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[rec.UserID] = rec
	return nil
}

func (m *memoryStore) IncrementWindow(_ context.Context, userID int64, now time.Time) (int, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.users[userID]
	if !ok {
		return 0, time.Time{}, wrap(errNoUser)
	}
	prev := rec.LastSeenAt
	rec.WindowCount++
	rec.LastSeenAt = now
	m.users[userID] = rec
	return rec.WindowCount, prev, nil
}

func (m *memoryStore) ResetAllWindows(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.users {
		rec.WindowCount = 0
		m.users[id] = rec
	}
	return nil
}

func (m *memoryStore) ListUsersInStages(_ context.Context, stages ...Stage) ([]int64, error) {
	want := make(map[Stage]bool, len(stages))
	for _, st := range stages {
		want[st] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for id, rec := range m.users {
		if want[rec.Stage] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memoryStore) AppendCampaign(_ context.Context, rec CampaignRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now()
	}
	rec.ID = m.nextID
	m.nextID++
	m.campaigns = append(m.campaigns, rec)
	return nil
}

func (m *memoryStore) CountUsers(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

func (m *memoryStore) CountUsersByStage(_ context.Context, stage Stage) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rec := range m.users {
		if rec.Stage == stage {
			n++
		}
	}
	return n, nil
}

// Campaigns returns a snapshot of the appended campaign rows (test helper).
func (m *memoryStore) Campaigns() []CampaignRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]CampaignRecord(nil), m.campaigns...)
}
